package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const artifactPrefix = "artifact."

func getArtifactKey(modelID uint) string {
	return servicePrefix + artifactPrefix + strconv.FormatUint(uint64(modelID), 10)
}

func (c *Client) GetArtifact(ctx context.Context, modelID uint) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, getArtifactKey(modelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *Client) SetArtifact(ctx context.Context, modelID uint, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, getArtifactKey(modelID), data, ttl).Err()
}

func (c *Client) DeleteArtifact(ctx context.Context, modelID uint) error {
	return c.client.Del(ctx, getArtifactKey(modelID)).Err()
}

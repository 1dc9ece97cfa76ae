package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache holds artifact bytes by model id.
type Cache interface {
	GetArtifact(ctx context.Context, modelID uint) ([]byte, bool, error)
	SetArtifact(ctx context.Context, modelID uint, data []byte, ttl time.Duration) error
	DeleteArtifact(ctx context.Context, modelID uint) error
}

// Artifacts reads and writes model artifacts. When a cache is configured,
// Fetch reads through it and concurrent misses for one model share a
// single store read. Cache failures are logged and otherwise ignored.
type Artifacts struct {
	store ObjectStore
	cache Cache
	ttl   time.Duration
	group singleflight.Group
}

type ArtifactsOption func(*Artifacts)

// WithCache enables read-through caching with the given TTL.
func WithCache(c Cache, ttl time.Duration) ArtifactsOption {
	return func(a *Artifacts) {
		a.cache = c
		a.ttl = ttl
	}
}

func NewArtifacts(store ObjectStore, opts ...ArtifactsOption) *Artifacts {
	a := &Artifacts{store: store}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Artifacts) Save(ctx context.Context, key string, data []byte) error {
	return a.store.Put(ctx, key, data)
}

func (a *Artifacts) Remove(ctx context.Context, key string) error {
	return a.store.Delete(ctx, key)
}

func (a *Artifacts) URL(ctx context.Context, key string) (string, error) {
	return a.store.PresignedURL(ctx, key, URLExpiry)
}

// Fetch returns the artifact stored at key for model modelID.
func (a *Artifacts) Fetch(ctx context.Context, modelID uint, key string) ([]byte, error) {
	if a.cache == nil {
		return a.store.Get(ctx, key)
	}

	data, ok, err := a.cache.GetArtifact(ctx, modelID)
	if err != nil {
		logrus.WithError(err).WithField("model_id", modelID).Warn("artifact cache read failed")
	}
	if ok {
		return data, nil
	}

	v, err, _ := a.group.Do(strconv.FormatUint(uint64(modelID), 10), func() (interface{}, error) {
		data, err := a.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := a.cache.SetArtifact(ctx, modelID, data, a.ttl); err != nil {
			logrus.WithError(err).WithField("model_id", modelID).Warn("artifact cache write failed")
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops the cached artifact of modelID.
func (a *Artifacts) Invalidate(ctx context.Context, modelID uint) error {
	if a.cache == nil {
		return nil
	}
	return a.cache.DeleteArtifact(ctx, modelID)
}

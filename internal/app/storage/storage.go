// Package storage keeps model artifacts and batch prediction files.
package storage

import (
	"context"
	"time"
)

// ObjectStore is a flat key/value blob store.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get fails with apperr.ErrNotFound when key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// URLExpiry is how long presigned artifact URLs stay valid.
const URLExpiry = time.Hour

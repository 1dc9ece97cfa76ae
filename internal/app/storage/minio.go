package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

type MinIOClient struct {
	client     *minio.Client
	bucketName string
}

var _ ObjectStore = (*MinIOClient)(nil)

// NewMinIOClient connects to MinIO and creates the bucket if it is missing.
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logrus.Infof("Bucket %s created successfully", cfg.Bucket)
	}

	return &MinIOClient{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

func (m *MinIOClient) Put(ctx context.Context, key string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("failed to upload %s: %w", key, err))
	}

	logrus.Infof("Object %s uploaded successfully", key)
	return nil
}

// Get stats the object first so a missing key maps to apperr.ErrNotFound.
func (m *MinIOClient) Get(ctx context.Context, key string) ([]byte, error) {
	if _, err := m.client.StatObject(ctx, m.bucketName, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", key, apperr.ErrNotFound)
		}
		return nil, apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("failed to stat %s: %w", key, err))
	}

	object, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("failed to get %s: %w", key, err))
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("failed to read %s: %w", key, err))
	}
	return data, nil
}

func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("failed to delete %s: %w", key, err))
	}

	logrus.Infof("Object %s deleted successfully", key)
	return nil
}

func (m *MinIOClient) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucketName, key, expiry, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("failed to generate presigned URL: %w", err))
	}
	return url.String(), nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"mlbilling/internal/app/apperr"

	"github.com/spf13/afero"
)

// FSStore keeps objects as files under a root directory. It backs the
// "local" storage driver; tests run it over an in-memory filesystem.
type FSStore struct {
	fs   afero.Fs
	root string
}

var _ ObjectStore = (*FSStore)(nil)

func NewFSStore(fsys afero.Fs, root string) *FSStore {
	return &FSStore{fs: fsys, root: root}
}

func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q: %w", key, apperr.ErrValidation)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return apperr.Wrap(apperr.ErrPersistence, err)
	}
	if err := afero.WriteFile(s.fs, p, data, 0o644); err != nil {
		return apperr.Wrap(apperr.ErrPersistence, err)
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, err)
	}
	return data, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Wrap(apperr.ErrPersistence, err)
	}
	return nil
}

// PresignedURL returns a file URL; local files need no signature.
func (s *FSStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := s.fs.Stat(p); err != nil {
		return "", fmt.Errorf("object %s: %w", key, apperr.ErrNotFound)
	}
	return "file://" + filepath.ToSlash(p), nil
}

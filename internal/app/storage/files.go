package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"mlbilling/internal/app/apperr"
)

// ResultsPrefix is where batch input and result tables are kept.
const ResultsPrefix = "results"

// Files stores batch prediction tables under ResultsPrefix. Names are plain
// file names; the returned paths include the prefix.
type Files struct {
	store ObjectStore
}

func NewFiles(store ObjectStore) *Files {
	return &Files{store: store}
}

func checkName(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q: %w", name, apperr.ErrValidation)
	}
	return nil
}

// Save writes data under name and returns the stored path.
func (f *Files) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	key := path.Join(ResultsPrefix, name)
	if err := f.store.Put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Path returns the stored path of the file called name, the same value Save
// returns for it.
func (f *Files) Path(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return path.Join(ResultsPrefix, name), nil
}

// Open reads the file called name.
func (f *Files) Open(ctx context.Context, name string) ([]byte, error) {
	key, err := f.Path(name)
	if err != nil {
		return nil, err
	}
	return f.store.Get(ctx, key)
}

// Remove deletes a file by the path Save returned.
func (f *Files) Remove(ctx context.Context, stored string) error {
	if !strings.HasPrefix(stored, ResultsPrefix+"/") {
		return fmt.Errorf("path %q is outside %s: %w", stored, ResultsPrefix, apperr.ErrValidation)
	}
	return f.store.Delete(ctx, stored)
}

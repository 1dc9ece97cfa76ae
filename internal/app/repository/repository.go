package repository

import (
	"errors"
	"fmt"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

func New(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err = Migrate(db); err != nil {
		return nil, err
	}

	return &Repository{
		db: db,
	}, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ds.User{},
		&ds.MLModel{},
		&ds.Prediction{},
		&ds.CreditOperation{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// dbError tags a gorm error with the matching taxonomy kind.
func dbError(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	return apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("%s: %w", what, err))
}

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Page normalizes list pagination the same way for every store.
func Page(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return skip, limit
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

func (r *Repository) CreateUser(ctx context.Context, user *ds.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("user %s: %w", user.Email, apperr.ErrAlreadyExists)
		}
		return dbError("create user", err)
	}
	return nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uint) (*ds.User, error) {
	var user ds.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, dbError(fmt.Sprintf("user %d", id), err)
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*ds.User, error) {
	var user ds.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, dbError(fmt.Sprintf("user %s", email), err)
	}
	return &user, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, user *ds.User) error {
	result := r.db.WithContext(ctx).Model(&ds.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"email":           user.Email,
		"full_name":       user.FullName,
		"hashed_password": user.HashedPassword,
	})
	if result.Error != nil {
		var pgErr *pgconn.PgError
		if errors.As(result.Error, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("user %s: %w", user.Email, apperr.ErrAlreadyExists)
		}
		return dbError("update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", user.ID, apperr.ErrNotFound)
	}
	return nil
}

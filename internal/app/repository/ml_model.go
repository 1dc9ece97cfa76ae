package repository

import (
	"context"
	"errors"
	"fmt"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"

	"github.com/jackc/pgx/v5/pgconn"
)

func (r *Repository) CreateModel(ctx context.Context, model *ds.MLModel) error {
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("model %s %s: %w", model.Name, model.Version, apperr.ErrAlreadyExists)
		}
		return dbError("create model", err)
	}
	return nil
}

func (r *Repository) FindModel(ctx context.Context, ownerID uint, name, version string) (*ds.MLModel, error) {
	var model ds.MLModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND name = ? AND version = ?", ownerID, name, version).
		First(&model).Error
	if err != nil {
		return nil, dbError(fmt.Sprintf("model %s %s", name, version), err)
	}
	return &model, nil
}

func (r *Repository) GetModel(ctx context.Context, id uint, includeDeleted bool) (*ds.MLModel, error) {
	var model ds.MLModel
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if err := query.First(&model).Error; err != nil {
		return nil, dbError(fmt.Sprintf("model %d", id), err)
	}
	return &model, nil
}

func (r *Repository) ListModels(ctx context.Context, skip, limit int) ([]ds.MLModel, error) {
	skip, limit = Page(skip, limit)

	var models []ds.MLModel
	err := r.db.WithContext(ctx).
		Where("is_deleted = ? AND is_active = ?", false, true).
		Order("id").
		Offset(skip).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, dbError("list models", err)
	}
	return models, nil
}

func (r *Repository) SoftDeleteModel(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&ds.MLModel{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{"is_deleted": true, "is_active": false})
	if result.Error != nil {
		return dbError("delete model", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("model %d: %w", id, apperr.ErrAlreadyDeleted)
	}
	return nil
}

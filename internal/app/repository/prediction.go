package repository

import (
	"context"
	"fmt"

	"mlbilling/internal/app/ds"
)

func (r *Repository) CreatePrediction(ctx context.Context, prediction *ds.Prediction) error {
	if err := r.db.WithContext(ctx).Create(prediction).Error; err != nil {
		return dbError("create prediction", err)
	}
	return nil
}

func (r *Repository) GetPrediction(ctx context.Context, id uint) (*ds.Prediction, error) {
	var prediction ds.Prediction
	if err := r.db.WithContext(ctx).First(&prediction, id).Error; err != nil {
		return nil, dbError(fmt.Sprintf("prediction %d", id), err)
	}
	return &prediction, nil
}

func (r *Repository) GetPredictionByFile(ctx context.Context, path string) (*ds.Prediction, error) {
	var prediction ds.Prediction
	err := r.db.WithContext(ctx).
		Where("input_file_path = ? OR result_file_path = ?", path, path).
		First(&prediction).Error
	if err != nil {
		return nil, dbError(fmt.Sprintf("prediction file %s", path), err)
	}
	return &prediction, nil
}

func (r *Repository) ListPredictionsByUser(ctx context.Context, userID uint, skip, limit int) ([]ds.Prediction, error) {
	skip, limit = Page(skip, limit)

	var predictions []ds.Prediction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(limit).
		Find(&predictions).Error
	if err != nil {
		return nil, dbError("list predictions", err)
	}
	return predictions, nil
}

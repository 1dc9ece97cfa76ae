// Package catalog manages uploaded models: pricing, registration, listing
// and soft deletion.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/cost"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/inference"
	"mlbilling/internal/app/repository"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MinUploadCredits is the balance a user needs to publish a model.
var MinUploadCredits = decimal.NewFromInt(1)

// Extensions accepted for model artifacts.
var Extensions = []string{".yaml", ".yml", ".json"}

type Loader interface {
	Load(artifact []byte) (inference.Predictor, error)
}

type ArtifactStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
	Invalidate(ctx context.Context, modelID uint) error
}

type Service struct {
	models    repository.ModelStore
	users     repository.UserStore
	artifacts ArtifactStore
	loader    Loader
	validate  *validator.Validate
}

func New(models repository.ModelStore, users repository.UserStore, artifacts ArtifactStore, loader Loader) *Service {
	v := validator.New()
	_ = v.RegisterValidation("modeltype", func(fl validator.FieldLevel) bool {
		return ds.IsModelType(fl.Field().String())
	})

	return &Service{
		models:    models,
		users:     users,
		artifacts: artifacts,
		loader:    loader,
		validate:  v,
	}
}

// UploadRequest describes a model to publish.
type UploadRequest struct {
	Name        string `validate:"required,max=100,excludesall=/\\"`
	Description string `validate:"max=2000"`
	Version     string `validate:"required,max=50,excludesall=/\\"`
	ModelType   string `validate:"required,modeltype"`
	Filename    string `validate:"required"`
	Data        []byte `validate:"required"`
}

func checkFile(filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	supported := false
	for _, e := range Extensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("only %s files are supported: %w", strings.Join(Extensions, ", "), apperr.ErrValidation)
	}
	if len(data) == 0 {
		return fmt.Errorf("file is empty: %w", apperr.ErrValidation)
	}
	return nil
}

// EstimateCost returns the per-prediction price a model would be listed at.
func (s *Service) EstimateCost(filename string, data []byte) (decimal.Decimal, error) {
	if err := checkFile(filename, data); err != nil {
		return decimal.Zero, err
	}
	if _, err := s.loader.Load(data); err != nil {
		return decimal.Zero, err
	}
	return cost.Estimate(int64(len(data))), nil
}

// Upload stores the artifact and registers the model for ownerID.
func (s *Service) Upload(ctx context.Context, ownerID uint, req UploadRequest) (*ds.MLModel, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, err)
	}
	if strings.Contains(req.Name, "..") || strings.Contains(req.Version, "..") {
		return nil, fmt.Errorf("name and version must not contain '..': %w", apperr.ErrValidation)
	}

	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.Credits.LessThan(MinUploadCredits) {
		return nil, fmt.Errorf("publishing needs at least %s credits: %w", MinUploadCredits, apperr.ErrInsufficientFunds)
	}

	price, err := s.EstimateCost(req.Filename, req.Data)
	if err != nil {
		return nil, err
	}

	// Deleted models keep their artifact key, so they count too.
	_, err = s.models.FindModel(ctx, ownerID, req.Name, req.Version)
	switch {
	case err == nil:
		return nil, fmt.Errorf("model %s version %s is already published: %w", req.Name, req.Version, apperr.ErrAlreadyExists)
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	key := ds.ArtifactKey(ownerID, req.Name, req.Version)
	if err := s.artifacts.Save(ctx, key, req.Data); err != nil {
		return nil, err
	}

	model := &ds.MLModel{
		Name:              req.Name,
		Description:       req.Description,
		Version:           req.Version,
		ModelType:         req.ModelType,
		ModelPath:         key,
		CostPerPrediction: price,
		IsActive:          true,
		OwnerID:           ownerID,
	}
	if err := s.models.CreateModel(ctx, model); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// The key belongs to another model row; leave its artifact alone.
			return nil, err
		}
		if rmErr := s.artifacts.Remove(ctx, key); rmErr != nil {
			logrus.WithError(rmErr).WithField("key", key).Warn("failed to remove orphaned artifact")
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"model_id": model.ID,
		"owner_id": ownerID,
		"cost":     price.String(),
	}).Info("model published")
	return model, nil
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]ds.MLModel, error) {
	return s.models.ListModels(ctx, skip, limit)
}

// Get returns a model that is not deleted.
func (s *Service) Get(ctx context.Context, id uint) (*ds.MLModel, error) {
	return s.models.GetModel(ctx, id, false)
}

// Delete soft-deletes a model owned by userID. Admins may delete any model.
func (s *Service) Delete(ctx context.Context, userID uint, admin bool, id uint) (*ds.MLModel, error) {
	model, err := s.models.GetModel(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if model.OwnerID != userID && !admin {
		return nil, fmt.Errorf("model %d belongs to another user: %w", id, apperr.ErrAccessDenied)
	}
	if model.IsDeleted {
		return nil, fmt.Errorf("model %d: %w", id, apperr.ErrAlreadyDeleted)
	}

	if err := s.models.SoftDeleteModel(ctx, id); err != nil {
		return nil, err
	}
	if err := s.artifacts.Invalidate(ctx, id); err != nil {
		logrus.WithError(err).WithField("model_id", id).Warn("failed to invalidate artifact cache")
	}

	model.IsDeleted = true
	model.IsActive = false
	return model, nil
}

// ArtifactURL returns a temporary download link for the owner of a model.
func (s *Service) ArtifactURL(ctx context.Context, userID uint, admin bool, id uint) (string, error) {
	model, err := s.models.GetModel(ctx, id, false)
	if err != nil {
		return "", err
	}
	if model.OwnerID != userID && !admin {
		return "", fmt.Errorf("model %d belongs to another user: %w", id, apperr.ErrAccessDenied)
	}
	url, err := s.artifacts.URL(ctx, model.ModelPath)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
		return "", apperr.Wrap(apperr.ErrPersistence, err)
	}
	return url, nil
}

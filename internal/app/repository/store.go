package repository

import (
	"context"

	"mlbilling/internal/app/ds"

	"github.com/shopspring/decimal"
)

// CreditMutation receives the current balance and returns the new one.
// Returning an error aborts the operation and leaves the balance unchanged.
type CreditMutation func(balance decimal.Decimal) (decimal.Decimal, error)

type UserStore interface {
	CreateUser(ctx context.Context, user *ds.User) error
	GetUserByID(ctx context.Context, id uint) (*ds.User, error)
	GetUserByEmail(ctx context.Context, email string) (*ds.User, error)
	// UpdateProfile stores email, full name and password hash. Credits are
	// not written.
	UpdateProfile(ctx context.Context, user *ds.User) error
}

type BalanceStore interface {
	// ApplyCredits reads the balance of userID, passes it to mutate and
	// stores the result together with op, atomically with respect to any
	// other ApplyCredits call for the same user.
	ApplyCredits(ctx context.Context, userID uint, op ds.CreditOperation, mutate CreditMutation) (*ds.CreditOperation, error)
	ListCreditOperations(ctx context.Context, userID uint) ([]ds.CreditOperation, error)
}

type ModelStore interface {
	CreateModel(ctx context.Context, model *ds.MLModel) error
	GetModel(ctx context.Context, id uint, includeDeleted bool) (*ds.MLModel, error)
	// FindModel looks a model up by its artifact coordinates, deleted
	// models included.
	FindModel(ctx context.Context, ownerID uint, name, version string) (*ds.MLModel, error)
	ListModels(ctx context.Context, skip, limit int) ([]ds.MLModel, error)
	SoftDeleteModel(ctx context.Context, id uint) error
}

type PredictionStore interface {
	CreatePrediction(ctx context.Context, prediction *ds.Prediction) error
	GetPrediction(ctx context.Context, id uint) (*ds.Prediction, error)
	// GetPredictionByFile returns the prediction whose input or result
	// table is stored at path.
	GetPredictionByFile(ctx context.Context, path string) (*ds.Prediction, error)
	ListPredictionsByUser(ctx context.Context, userID uint, skip, limit int) ([]ds.Prediction, error)
}

// Store is everything the service persists.
type Store interface {
	UserStore
	BalanceStore
	ModelStore
	PredictionStore
}

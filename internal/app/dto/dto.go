package dto

import (
	"time"

	"mlbilling/internal/app/ds"

	"github.com/shopspring/decimal"
)

// ============ Common ============

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ============ Users ============

type UserResponse struct {
	ID        uint            `json:"id"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	IsActive  bool            `json:"is_active"`
	Role      string          `json:"role"`
	Credits   decimal.Decimal `json:"credits" swaggertype:"string" example:"10.5"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewUserResponse(u *ds.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		Role:      u.Role.String(),
		Credits:   u.Credits,
		CreatedAt: u.CreatedAt,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        UserResponse `json:"user"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
	FullName *string `json:"full_name" binding:"omitempty,max=100"`
	Password *string `json:"password" binding:"omitempty,min=6"`
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string" example:"25.0"`
}

type BalanceResponse struct {
	Credits decimal.Decimal `json:"credits" swaggertype:"string" example:"35.0"`
}

type CreditOperationResponse struct {
	ID           uint            `json:"id"`
	Operation    string          `json:"operation"`
	Reason       string          `json:"reason"`
	Amount       decimal.Decimal `json:"amount" swaggertype:"string"`
	BalanceAfter decimal.Decimal `json:"balance_after" swaggertype:"string"`
	CreatedAt    time.Time       `json:"created_at"`
}

func NewCreditOperationResponse(op ds.CreditOperation) CreditOperationResponse {
	return CreditOperationResponse{
		ID:           op.ID,
		Operation:    op.Operation,
		Reason:       op.Reason,
		Amount:       op.Amount,
		BalanceAfter: op.BalanceAfter,
		CreatedAt:    op.CreatedAt,
	}
}

// ============ Models ============

type ModelResponse struct {
	ID                uint            `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Version           string          `json:"version"`
	ModelType         string          `json:"model_type"`
	CostPerPrediction decimal.Decimal `json:"cost_per_prediction" swaggertype:"string" example:"0.1"`
	IsActive          bool            `json:"is_active"`
	OwnerID           uint            `json:"owner_id"`
	CreatedAt         time.Time       `json:"created_at"`
}

func NewModelResponse(m *ds.MLModel) ModelResponse {
	return ModelResponse{
		ID:                m.ID,
		Name:              m.Name,
		Description:       m.Description,
		Version:           m.Version,
		ModelType:         m.ModelType,
		CostPerPrediction: m.CostPerPrediction,
		IsActive:          m.IsActive,
		OwnerID:           m.OwnerID,
		CreatedAt:         m.CreatedAt,
	}
}

type ModelListResponse struct {
	Models []ModelResponse `json:"models"`
	Total  int             `json:"total"`
}

type CostEstimateResponse struct {
	Filename          string          `json:"filename"`
	SizeBytes         int             `json:"size_bytes"`
	CostPerPrediction decimal.Decimal `json:"cost_per_prediction" swaggertype:"string" example:"0.1"`
}

type ArtifactURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// ============ Predictions ============

type PredictRequest struct {
	InputData []float64 `json:"input_data" binding:"required,min=1"`
}

type CreatePredictionRequest struct {
	ModelID   uint      `json:"model_id" binding:"required"`
	InputData []float64 `json:"input_data" binding:"required,min=1"`
}

type PredictionResponse struct {
	ID               uint            `json:"id"`
	UserID           uint            `json:"user_id"`
	ModelID          uint            `json:"model_id"`
	InputData        []float64       `json:"input_data"`
	PredictionResult []float64       `json:"prediction_result"`
	Cost             decimal.Decimal `json:"cost" swaggertype:"string" example:"0.2"`
	CreatedAt        time.Time       `json:"created_at"`
	InputFilePath    *string         `json:"input_file_path,omitempty"`
	ResultFilePath   *string         `json:"result_file_path,omitempty"`
}

func NewPredictionResponse(p *ds.Prediction) PredictionResponse {
	return PredictionResponse{
		ID:               p.ID,
		UserID:           p.UserID,
		ModelID:          p.ModelID,
		InputData:        p.InputData,
		PredictionResult: p.PredictionResult,
		Cost:             p.Cost,
		CreatedAt:        p.CreatedAt,
		InputFilePath:    p.InputFilePath,
		ResultFilePath:   p.ResultFilePath,
	}
}

type PredictionListResponse struct {
	Predictions []PredictionResponse `json:"predictions"`
	Total       int                  `json:"total"`
}

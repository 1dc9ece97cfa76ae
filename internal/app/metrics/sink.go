// Package metrics records what happens to predictions and credits.
//
// A Sink is fire-and-forget: methods return nothing and must not block, so a
// broken metrics backend never fails a prediction.
package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Error types reported with PredictionFailed and SystemError.
const (
	ErrorModelLoad         = "model_load_error"
	ErrorPrediction        = "prediction_error"
	ErrorPersistence       = "persistence_error"
	ErrorReconciliationGap = "reconciliation_gap"
)

// Credit operation labels.
const (
	OperationSubtract = "subtract"
	OperationAdd      = "add"
)

// PredictionEvent describes one prediction attempt.
type PredictionEvent struct {
	ModelName string
	UserID    uint
	Records   int
	Cost      decimal.Decimal
	Latency   time.Duration
}

type Sink interface {
	PredictionSucceeded(e PredictionEvent)
	PredictionFailed(e PredictionEvent, errorType string)
	ModelLoaded(modelName string, d time.Duration)
	CreditsChanged(userID uint, operation string, amount, balance decimal.Decimal)
	SystemError(errorType string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) PredictionSucceeded(PredictionEvent) {}
func (Nop) PredictionFailed(PredictionEvent, string) {}
func (Nop) ModelLoaded(string, time.Duration) {}
func (Nop) CreditsChanged(uint, string, decimal.Decimal, decimal.Decimal) {}
func (Nop) SystemError(string) {}

// Multi fans every call out to each sink in order.
type Multi []Sink

func (m Multi) PredictionSucceeded(e PredictionEvent) {
	for _, s := range m {
		s.PredictionSucceeded(e)
	}
}

func (m Multi) PredictionFailed(e PredictionEvent, errorType string) {
	for _, s := range m {
		s.PredictionFailed(e, errorType)
	}
}

func (m Multi) ModelLoaded(modelName string, d time.Duration) {
	for _, s := range m {
		s.ModelLoaded(modelName, d)
	}
}

func (m Multi) CreditsChanged(userID uint, operation string, amount, balance decimal.Decimal) {
	for _, s := range m {
		s.CreditsChanged(userID, operation, amount, balance)
	}
}

func (m Multi) SystemError(errorType string) {
	for _, s := range m {
		s.SystemError(errorType)
	}
}

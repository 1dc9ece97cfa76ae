// Package metricstest provides a recording metrics.Sink for tests.
package metricstest

import (
	"sync"
	"time"

	"mlbilling/internal/app/metrics"

	"github.com/shopspring/decimal"
)

type CreditChange struct {
	UserID    uint
	Operation string
	Amount    decimal.Decimal
	Balance   decimal.Decimal
}

type Failure struct {
	Event     metrics.PredictionEvent
	ErrorType string
}

// Recorder keeps every call it receives.
type Recorder struct {
	mu           sync.Mutex
	Successes    []metrics.PredictionEvent
	Failures     []Failure
	Loads        []string
	Credits      []CreditChange
	SystemErrors []string
	rates        *metrics.SuccessRates
}

var _ metrics.Sink = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{rates: metrics.NewSuccessRates()}
}

func (r *Recorder) PredictionSucceeded(e metrics.PredictionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Successes = append(r.Successes, e)
	r.rates.Success(e.ModelName)
}

func (r *Recorder) PredictionFailed(e metrics.PredictionEvent, errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Failure{Event: e, ErrorType: errorType})
	r.rates.Failure(e.ModelName)
}

func (r *Recorder) ModelLoaded(modelName string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Loads = append(r.Loads, modelName)
}

func (r *Recorder) CreditsChanged(userID uint, operation string, amount, balance decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Credits = append(r.Credits, CreditChange{UserID: userID, Operation: operation, Amount: amount, Balance: balance})
}

func (r *Recorder) SystemError(errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SystemErrors = append(r.SystemErrors, errorType)
}

// SuccessRate returns the rate the recorder computed for model.
func (r *Recorder) SuccessRate(model string) (float64, bool) {
	return r.rates.Rate(model)
}

// Snapshot returns copies of the recorded successes and failures.
func (r *Recorder) Snapshot() ([]metrics.PredictionEvent, []Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.PredictionEvent(nil), r.Successes...), append([]Failure(nil), r.Failures...)
}

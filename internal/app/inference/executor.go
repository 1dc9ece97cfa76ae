// Package inference loads model artifacts and runs them.
//
// The executor does not touch balances or storage. Callers time it and report
// the numbers themselves.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"mlbilling/internal/app/apperr"
)

type Executor struct {
	timeout time.Duration
}

// NewExecutor returns an executor that aborts inference after timeout.
// A zero timeout disables the bound.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Load decodes an artifact. It fails with apperr.ErrInvalidModel when the
// artifact cannot be decoded or has nothing to predict with.
func (e *Executor) Load(artifact []byte) (Predictor, error) {
	return decode(artifact)
}

// Run scores a single record.
func (e *Executor) Run(ctx context.Context, p Predictor, record []float64) (float64, error) {
	out, err := e.RunBatch(ctx, p, [][]float64{record})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// RunBatch scores records in order. Any failure, panic or timeout inside the
// predictor is returned as apperr.ErrInferenceError.
func (e *Executor) RunBatch(ctx context.Context, p Predictor, records [][]float64) ([]float64, error) {
	if len(records) == 0 {
		return nil, apperr.Wrap(apperr.ErrInferenceError, errors.New("no records to score"))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type outcome struct {
		values []float64
		err    error
	}
	// Buffered so an abandoned predictor can finish without blocking.
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		values, err := p.Predict(records)
		done <- outcome{values: values, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.ErrInferenceError, fmt.Errorf("inference aborted: %w", ctx.Err()))
	case o := <-done:
		if o.err != nil {
			return nil, apperr.Wrap(apperr.ErrInferenceError, o.err)
		}
		if len(o.values) != len(records) {
			return nil, apperr.Wrap(apperr.ErrInferenceError,
				fmt.Errorf("model returned %d values for %d records", len(o.values), len(records)))
		}
		for i, v := range o.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperr.Wrap(apperr.ErrInferenceError, fmt.Errorf("record %d: non-finite result", i))
			}
		}
		return o.values, nil
	}
}

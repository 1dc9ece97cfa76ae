package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"mlbilling/internal/app/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearYAML = `
kind: linear
weights: [2, -1]
bias: 0.5
`

const logisticJSON = `{"kind": "logistic", "weights": [1], "bias": 0, "classes": [10, 20]}`

type stubPredictor struct {
	fn func([][]float64) ([]float64, error)
}

func (s stubPredictor) Predict(records [][]float64) ([]float64, error) {
	return s.fn(records)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"linear yaml", linearYAML, false},
		{"logistic json", logisticJSON, false},
		{"empty", "  \n", true},
		{"garbage", "\x00\x01not: [yaml", true},
		{"no weights", "kind: linear\nbias: 1\n", true},
		{"unknown kind", "kind: forest\nweights: [1]\n", true},
		{"bad threshold", "kind: logistic\nweights: [1]\nthreshold: 1.5\n", true},
		{"bad classes", "kind: logistic\nweights: [1]\nclasses: [1, 2, 3]\n", true},
		{"non finite weight", "kind: linear\nweights: [.inf]\n", true},
	}
	e := NewExecutor(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.Load([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidModel)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestRunLinear(t *testing.T) {
	e := NewExecutor(time.Second)
	p, err := e.Load([]byte(linearYAML))
	require.NoError(t, err)

	v, err := e.Run(context.Background(), p, []float64{3, 1})
	require.NoError(t, err)
	assert.InDelta(t, 5.5, v, 1e-9)

	out, err := e.RunBatch(context.Background(), p, [][]float64{{0, 0}, {1, 1}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 1.5}, out, 1e-9)
}

func TestRunLogistic(t *testing.T) {
	e := NewExecutor(time.Second)
	p, err := e.Load([]byte(logisticJSON))
	require.NoError(t, err)

	out, err := e.RunBatch(context.Background(), p, [][]float64{{-3}, {3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, out)
}

func TestRunFeatureMismatch(t *testing.T) {
	e := NewExecutor(time.Second)
	p, err := e.Load([]byte(linearYAML))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), p, []float64{1, 2, 3})
	assert.ErrorIs(t, err, apperr.ErrInferenceError)
}

func TestRunBatchEmpty(t *testing.T) {
	_, err := NewExecutor(0).RunBatch(context.Background(), stubPredictor{}, nil)
	assert.ErrorIs(t, err, apperr.ErrInferenceError)
}

func TestRunIsolatesFailures(t *testing.T) {
	boom := errors.New("runtime exploded")
	tests := []struct {
		name string
		fn   func([][]float64) ([]float64, error)
	}{
		{"error", func([][]float64) ([]float64, error) { return nil, boom }},
		{"panic", func([][]float64) ([]float64, error) { panic("index out of range") }},
		{"wrong length", func([][]float64) ([]float64, error) { return []float64{1, 2}, nil }},
		{"nan", func([][]float64) ([]float64, error) { return []float64{zero() / zero()}, nil }},
	}
	e := NewExecutor(time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), stubPredictor{fn: tt.fn}, []float64{1})
			assert.ErrorIs(t, err, apperr.ErrInferenceError)
		})
	}
}

func zero() float64 { return 0 }

func TestRunTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := stubPredictor{fn: func(r [][]float64) ([]float64, error) {
		<-release
		return []float64{1}, nil
	}}

	start := time.Now()
	_, err := NewExecutor(20*time.Millisecond).Run(context.Background(), slow, []float64{1})
	assert.ErrorIs(t, err, apperr.ErrInferenceError)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)
	blocked := stubPredictor{fn: func([][]float64) ([]float64, error) {
		<-release
		return []float64{1}, nil
	}}

	_, err := NewExecutor(0).Run(ctx, blocked, []float64{1})
	assert.ErrorIs(t, err, context.Canceled)
}

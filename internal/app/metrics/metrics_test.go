package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessRates(t *testing.T) {
	r := NewSuccessRates()

	_, ok := r.Rate("iris")
	assert.False(t, ok)

	assert.Equal(t, 1.0, r.Success("iris"))
	r.Failure("iris")
	assert.InDelta(t, 2.0/3.0, r.Success("iris"), 1e-9)

	rate, ok := r.Rate("iris")
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, rate, 1e-9)

	_, ok = r.Rate("other")
	assert.False(t, ok)
}

func TestPrometheusSink(t *testing.T) {
	p := NewPrometheus()
	ev := PredictionEvent{ModelName: "iris", UserID: 7, Records: 2, Cost: decimal.RequireFromString("0.2"), Latency: 10 * time.Millisecond}

	p.PredictionSucceeded(ev)
	p.PredictionFailed(ev, ErrorPrediction)
	p.PredictionSucceeded(ev)
	p.CreditsChanged(7, OperationSubtract, decimal.RequireFromString("0.2"), decimal.RequireFromString("99.8"))
	p.SystemError(ErrorReconciliationGap)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.predictions.WithLabelValues("iris", "success", "7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.predictions.WithLabelValues("iris", "error", "7")))
	assert.Equal(t, 4.0, testutil.ToFloat64(p.usage.WithLabelValues("iris")))
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(p.successRate.WithLabelValues("iris")), 1e-9)
	assert.InDelta(t, 99.8, testutil.ToFloat64(p.credits.WithLabelValues("7")), 1e-9)
	assert.InDelta(t, 0.2, testutil.ToFloat64(p.creditsHistory.WithLabelValues("7", OperationSubtract)), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.systemErrors.WithLabelValues(ErrorPrediction)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.systemErrors.WithLabelValues(ErrorReconciliationGap)))
}

func TestPrometheusHandler(t *testing.T) {
	p := NewPrometheus()
	p.ModelLoaded("iris", time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "model_load_time_seconds"))
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewPrometheus(), NewPrometheus()
	Multi{a, b, Nop{}}.SystemError(ErrorModelLoad)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.systemErrors.WithLabelValues(ErrorModelLoad)))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.systemErrors.WithLabelValues(ErrorModelLoad)))
}

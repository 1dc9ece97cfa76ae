package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Prometheus exports the sink through its own registry.
type Prometheus struct {
	registry *prometheus.Registry
	rates    *SuccessRates

	predictions    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	cost           *prometheus.CounterVec
	usage          *prometheus.CounterVec
	successRate    *prometheus.GaugeVec
	loadTime       *prometheus.HistogramVec
	credits        *prometheus.GaugeVec
	creditsHistory *prometheus.CounterVec
	systemErrors   *prometheus.CounterVec
}

var _ Sink = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		rates:    NewSuccessRates(),
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_total",
			Help: "Prediction attempts by model, status and user.",
		}, []string{"model_name", "status", "user"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Time spent running and recording a prediction.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model_name"}),
		cost: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prediction_cost_total",
			Help: "Credits charged for predictions.",
		}, []string{"model_name", "user"}),
		usage: f.NewCounterVec(prometheus.CounterOpts{
			Name: "model_usage_total",
			Help: "Records scored per model.",
		}, []string{"model_name"}),
		successRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "model_success_rate",
			Help: "Share of successful prediction attempts per model.",
		}, []string{"model_name"}),
		loadTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "model_load_time_seconds",
			Help:    "Time spent fetching and decoding a model artifact.",
			Buckets: prometheus.DefBuckets,
		}, []string{"model_name"}),
		credits: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "user_credits",
			Help: "Current user balance.",
		}, []string{"user"}),
		creditsHistory: f.NewCounterVec(prometheus.CounterOpts{
			Name: "user_credits_history_total",
			Help: "Credits moved per user and operation.",
		}, []string{"user", "operation"}),
		systemErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Failures by type.",
		}, []string{"error_type"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func userLabel(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (p *Prometheus) PredictionSucceeded(e PredictionEvent) {
	user := userLabel(e.UserID)
	p.predictions.WithLabelValues(e.ModelName, "success", user).Inc()
	p.latency.WithLabelValues(e.ModelName).Observe(e.Latency.Seconds())
	p.cost.WithLabelValues(e.ModelName, user).Add(e.Cost.InexactFloat64())
	p.usage.WithLabelValues(e.ModelName).Add(float64(e.Records))
	p.successRate.WithLabelValues(e.ModelName).Set(p.rates.Success(e.ModelName))
}

func (p *Prometheus) PredictionFailed(e PredictionEvent, errorType string) {
	p.predictions.WithLabelValues(e.ModelName, "error", userLabel(e.UserID)).Inc()
	p.rates.Failure(e.ModelName)
	p.systemErrors.WithLabelValues(errorType).Inc()
}

func (p *Prometheus) ModelLoaded(modelName string, d time.Duration) {
	p.loadTime.WithLabelValues(modelName).Observe(d.Seconds())
}

func (p *Prometheus) CreditsChanged(userID uint, operation string, amount, balance decimal.Decimal) {
	user := userLabel(userID)
	p.creditsHistory.WithLabelValues(user, operation).Add(amount.InexactFloat64())
	p.credits.WithLabelValues(user).Set(balance.InexactFloat64())
}

func (p *Prometheus) SystemError(errorType string) {
	p.systemErrors.WithLabelValues(errorType).Inc()
}

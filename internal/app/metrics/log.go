package metrics

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LogSink writes every event as a structured logrus entry.
type LogSink struct {
	logger *logrus.Logger
	rates  *SuccessRates
}

var _ Sink = (*LogSink)(nil)

func NewLogSink(logger *logrus.Logger) *LogSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSink{logger: logger, rates: NewSuccessRates()}
}

func (l *LogSink) PredictionSucceeded(e PredictionEvent) {
	l.logger.WithFields(logrus.Fields{
		"model":        e.ModelName,
		"user_id":      e.UserID,
		"records":      e.Records,
		"cost":         e.Cost.String(),
		"latency":      e.Latency,
		"success_rate": l.rates.Success(e.ModelName),
	}).Info("prediction succeeded")
}

func (l *LogSink) PredictionFailed(e PredictionEvent, errorType string) {
	l.rates.Failure(e.ModelName)
	l.logger.WithFields(logrus.Fields{
		"model":      e.ModelName,
		"user_id":    e.UserID,
		"records":    e.Records,
		"error_type": errorType,
	}).Warn("prediction failed")
}

func (l *LogSink) ModelLoaded(modelName string, d time.Duration) {
	l.logger.WithFields(logrus.Fields{"model": modelName, "load_time": d}).Debug("model loaded")
}

func (l *LogSink) CreditsChanged(userID uint, operation string, amount, balance decimal.Decimal) {
	l.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"operation": operation,
		"amount":    amount.String(),
		"balance":   balance.String(),
	}).Info("credits changed")
}

func (l *LogSink) SystemError(errorType string) {
	l.logger.WithField("error_type", errorType).Error("system error")
}

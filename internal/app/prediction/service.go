// Package prediction runs charged predictions.
//
// A prediction moves through priced, debited, executed and recorded. Any
// failure after the debit refunds the charge before the error is returned,
// so a user is charged only when a prediction record exists.
package prediction

import (
	"context"
	"fmt"
	"io"
	"time"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/cost"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/inference"
	"mlbilling/internal/app/metrics"
	"mlbilling/internal/app/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type State string

const (
	StatePriced   State = "priced"
	StateDebited  State = "debited"
	StateExecuted State = "executed"
	StateRecorded State = "recorded"
	StateRefunded State = "refunded"
	StateFailed   State = "failed"
)

const (
	DefaultCompensationAttempts = 3
	DefaultCompensationBackoff  = 100 * time.Millisecond
)

type Ledger interface {
	Debit(ctx context.Context, userID uint, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	Credit(ctx context.Context, userID uint, amount decimal.Decimal, reason string) (decimal.Decimal, error)
}

type ArtifactFetcher interface {
	Fetch(ctx context.Context, modelID uint, key string) ([]byte, error)
}

type Executor interface {
	Load(artifact []byte) (inference.Predictor, error)
	RunBatch(ctx context.Context, p inference.Predictor, records [][]float64) ([]float64, error)
}

type FileStore interface {
	Path(name string) (string, error)
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, name string) ([]byte, error)
	Remove(ctx context.Context, stored string) error
}

// Deps are the collaborators a Service needs. All fields are required.
type Deps struct {
	Models      repository.ModelStore
	Users       repository.UserStore
	Predictions repository.PredictionStore
	Ledger      Ledger
	Artifacts   ArtifactFetcher
	Executor    Executor
	Files       FileStore
}

type Service struct {
	Deps

	sink     metrics.Sink
	log      logrus.FieldLogger
	now      func() time.Time
	attempts int
	backoff  time.Duration
}

type Option func(*Service)

func WithSink(s metrics.Sink) Option {
	return func(svc *Service) { svc.sink = s }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(svc *Service) { svc.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithCompensation sets how many times a refund is tried and the linear
// backoff step between tries.
func WithCompensation(attempts int, backoff time.Duration) Option {
	return func(svc *Service) {
		if attempts > 0 {
			svc.attempts = attempts
		}
		svc.backoff = backoff
	}
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		Deps:     deps,
		sink:     metrics.Nop{},
		log:      logrus.StandardLogger(),
		now:      time.Now,
		attempts: DefaultCompensationAttempts,
		backoff:  DefaultCompensationBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// attempt tracks one prediction through its states.
type attempt struct {
	userID  uint
	model   *ds.MLModel
	records int
	charge  decimal.Decimal
	// debited is what the ledger actually took, after rounding. Refunds
	// credit exactly this amount.
	debited decimal.Decimal
	state   State
}

func (a *attempt) fields() logrus.Fields {
	return logrus.Fields{
		"user_id":  a.userID,
		"model_id": a.model.ID,
		"records":  a.records,
		"amount":   a.charge.String(),
		"debited":  a.debited.String(),
		"state":    a.state,
	}
}

type recordFunc func(ctx context.Context, results []float64) (*ds.Prediction, error)

// Predict scores one record with the model and charges its price.
func (s *Service) Predict(ctx context.Context, userID, modelID uint, input []float64) (*ds.Prediction, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("input_data is empty: %w", apperr.ErrValidation)
	}

	a, err := s.price(ctx, userID, modelID, 1)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, a, [][]float64{input}, func(ctx context.Context, results []float64) (*ds.Prediction, error) {
		p := &ds.Prediction{
			UserID:           userID,
			ModelID:          modelID,
			InputData:        input,
			PredictionResult: results,
			Cost:             a.charge,
			CreatedAt:        s.now(),
		}
		if err := s.Predictions.CreatePrediction(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// PredictFile scores every row of a CSV table and charges price times rows.
// The input and result tables are kept as files referenced by the record.
func (s *Service) PredictFile(ctx context.Context, userID, modelID uint, r io.Reader) (*ds.Prediction, error) {
	table, err := ReadTable(r)
	if err != nil {
		return nil, err
	}

	a, err := s.price(ctx, userID, modelID, len(table.Rows))
	if err != nil {
		return nil, err
	}

	return s.run(ctx, a, table.Rows, func(ctx context.Context, results []float64) (*ds.Prediction, error) {
		return s.recordFile(ctx, a, table, results)
	})
}

func (s *Service) recordFile(ctx context.Context, a *attempt, table *Table, results []float64) (*ds.Prediction, error) {
	input, err := table.Encode()
	if err != nil {
		return nil, err
	}
	output, err := table.EncodeWithResults(results)
	if err != nil {
		return nil, err
	}

	stamp := s.now().Format("20060102_150405")
	suffix := uuid.New().String()[:8]

	inputPath, err := s.Files.Save(ctx, fmt.Sprintf("input_%s_%s.csv", stamp, suffix), input)
	if err != nil {
		return nil, err
	}
	resultPath, err := s.Files.Save(ctx, fmt.Sprintf("predictions_%s_%s.csv", stamp, suffix), output)
	if err != nil {
		s.removeFiles(ctx, inputPath)
		return nil, err
	}

	p := &ds.Prediction{
		UserID:           a.userID,
		ModelID:          a.model.ID,
		InputData:        table.Flatten(),
		PredictionResult: results,
		Cost:             a.charge,
		CreatedAt:        s.now(),
		InputFilePath:    &inputPath,
		ResultFilePath:   &resultPath,
	}
	if err := s.Predictions.CreatePrediction(ctx, p); err != nil {
		s.removeFiles(ctx, inputPath, resultPath)
		return nil, err
	}
	return p, nil
}

func (s *Service) removeFiles(ctx context.Context, paths ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, path := range paths {
		if err := s.Files.Remove(ctx, path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("failed to remove orphaned prediction file")
		}
	}
}

// price checks the model and the user's balance without touching it.
func (s *Service) price(ctx context.Context, userID, modelID uint, records int) (*attempt, error) {
	model, err := s.Models.GetModel(ctx, modelID, false)
	if err != nil {
		return nil, err
	}
	if !model.Usable() {
		return nil, fmt.Errorf("model %d is not active: %w", modelID, apperr.ErrNotFound)
	}

	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Credits.LessThan(model.CostPerPrediction) {
		return nil, fmt.Errorf("balance %s, price %s: %w",
			user.Credits, model.CostPerPrediction, apperr.ErrInsufficientFunds)
	}

	return &attempt{
		userID:  userID,
		model:   model,
		records: records,
		charge:  cost.Batch(model.CostPerPrediction, records),
		state:   StatePriced,
	}, nil
}

func (s *Service) run(ctx context.Context, a *attempt, records [][]float64, record recordFunc) (*ds.Prediction, error) {
	debited, err := s.Ledger.Debit(ctx, a.userID, a.charge, ds.ReasonPrediction)
	if err != nil {
		a.state = StateFailed
		return nil, err
	}
	a.debited = debited
	a.state = StateDebited

	start := s.now()
	prediction, errType, err := s.execute(ctx, a, records, record)

	event := metrics.PredictionEvent{
		ModelName: a.model.Name,
		UserID:    a.userID,
		Records:   a.records,
		Cost:      a.charge,
		Latency:   s.now().Sub(start),
	}
	if err != nil {
		s.compensate(ctx, a, err)
		s.sink.PredictionFailed(event, errType)
		return nil, err
	}

	a.state = StateRecorded
	s.sink.PredictionSucceeded(event)
	s.log.WithFields(a.fields()).WithField("prediction_id", prediction.ID).Info("prediction recorded")
	return prediction, nil
}

// execute loads the model, scores records and stores the result. On failure
// it also returns the metrics error type.
func (s *Service) execute(ctx context.Context, a *attempt, records [][]float64, record recordFunc) (*ds.Prediction, string, error) {
	loadStart := s.now()
	artifact, err := s.Artifacts.Fetch(ctx, a.model.ID, a.model.ModelPath)
	if err != nil {
		return nil, metrics.ErrorModelLoad, fmt.Errorf("load model %d: %w", a.model.ID, apperr.Wrap(apperr.ErrPersistence, err))
	}
	predictor, err := s.Executor.Load(artifact)
	if err != nil {
		return nil, metrics.ErrorModelLoad, fmt.Errorf("load model %d: %w", a.model.ID, err)
	}
	s.sink.ModelLoaded(a.model.Name, s.now().Sub(loadStart))

	results, err := s.Executor.RunBatch(ctx, predictor, records)
	if err != nil {
		return nil, metrics.ErrorPrediction, apperr.Wrap(apperr.ErrInferenceError, err)
	}
	a.state = StateExecuted

	prediction, err := record(ctx, results)
	if err != nil {
		return nil, metrics.ErrorPersistence, apperr.Wrap(apperr.ErrPersistence, err)
	}
	return prediction, "", nil
}

// compensate refunds the charge of a failed attempt. The refund ignores
// cancellation of ctx. If every try fails the gap is logged and counted.
func (s *Service) compensate(ctx context.Context, a *attempt, cause error) {
	if !a.debited.IsPositive() {
		s.log.WithFields(a.fields()).WithError(cause).Warn("prediction failed, rounding left nothing to refund")
		a.state = StateFailed
		return
	}
	ctx = context.WithoutCancel(ctx)

	var err error
	for i := 1; i <= s.attempts; i++ {
		if _, err = s.Ledger.Credit(ctx, a.userID, a.debited, ds.ReasonRefund); err == nil {
			a.state = StateRefunded
			s.log.WithFields(a.fields()).WithError(cause).Warn("prediction failed, charge refunded")
			a.state = StateFailed
			return
		}
		if i < s.attempts {
			time.Sleep(s.backoff * time.Duration(i))
		}
	}

	a.state = StateFailed
	s.log.WithFields(a.fields()).WithFields(logrus.Fields{
		"fatal":    true,
		"attempts": s.attempts,
		"cause":    cause.Error(),
	}).WithError(err).Error("reconciliation gap: refund could not be applied")
	s.sink.SystemError(metrics.ErrorReconciliationGap)
}

// Get returns a prediction owned by userID. Admins may read any prediction.
func (s *Service) Get(ctx context.Context, userID uint, admin bool, id uint) (*ds.Prediction, error) {
	p, err := s.Predictions.GetPrediction(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID && !admin {
		return nil, fmt.Errorf("prediction %d belongs to another user: %w", id, apperr.ErrAccessDenied)
	}
	return p, nil
}

// List returns the user's predictions, newest first.
func (s *Service) List(ctx context.Context, userID uint, skip, limit int) ([]ds.Prediction, error) {
	return s.Predictions.ListPredictionsByUser(ctx, userID, skip, limit)
}

// OpenFile returns a stored batch table by file name. Only the owner of the
// prediction that produced the file, or an admin, may read it.
func (s *Service) OpenFile(ctx context.Context, userID uint, admin bool, name string) ([]byte, error) {
	stored, err := s.Files.Path(name)
	if err != nil {
		return nil, err
	}
	p, err := s.Predictions.GetPredictionByFile(ctx, stored)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID && !admin {
		return nil, fmt.Errorf("file %s belongs to another user: %w", name, apperr.ErrAccessDenied)
	}
	return s.Files.Open(ctx, name)
}

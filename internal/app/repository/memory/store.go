// Package memory is an in-process implementation of repository.Store used
// by the "memory" database driver and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/repository"

	"github.com/lib/pq"
)

type Store struct {
	mu          sync.RWMutex
	users       map[uint]*ds.User
	models      map[uint]*ds.MLModel
	predictions map[uint]*ds.Prediction
	operations  []ds.CreditOperation
	nextID      map[string]uint

	// userLocks serializes ApplyCredits per user.
	userLocks sync.Map
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:       make(map[uint]*ds.User),
		models:      make(map[uint]*ds.MLModel),
		predictions: make(map[uint]*ds.Prediction),
		nextID:      make(map[string]uint),
	}
}

func (s *Store) id(table string) uint {
	s.nextID[table]++
	return s.nextID[table]
}

// ──────────────────────────────────────────────────
// Users
// ──────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, user *ds.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("user %s: %w", user.Email, apperr.ErrAlreadyExists)
		}
	}
	user.ID = s.id("users")
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id uint) (*ds.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*ds.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, apperr.ErrNotFound)
}

func (s *Store) UpdateProfile(_ context.Context, user *ds.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %d: %w", user.ID, apperr.ErrNotFound)
	}
	for id, other := range s.users {
		if id != user.ID && strings.EqualFold(other.Email, user.Email) {
			return fmt.Errorf("user %s: %w", user.Email, apperr.ErrAlreadyExists)
		}
	}
	u.Email = user.Email
	u.FullName = user.FullName
	u.HashedPassword = user.HashedPassword
	return nil
}

// ──────────────────────────────────────────────────
// Credits
// ──────────────────────────────────────────────────

func (s *Store) userLock(id uint) *sync.Mutex {
	l, _ := s.userLocks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (s *Store) ApplyCredits(ctx context.Context, userID uint, op ds.CreditOperation, mutate repository.CreditMutation) (*ds.CreditOperation, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.ErrPersistence, err)
	}

	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, apperr.ErrNotFound)
	}

	s.mu.RLock()
	balance := u.Credits
	s.mu.RUnlock()

	next, err := mutate(balance)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u.Credits = next
	op.ID = s.id("credit_operations")
	op.UserID = userID
	op.BalanceAfter = next
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	s.operations = append(s.operations, op)
	return &op, nil
}

func (s *Store) ListCreditOperations(_ context.Context, userID uint) ([]ds.CreditOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ops []ds.CreditOperation
	for _, op := range s.operations {
		if op.UserID == userID {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// ──────────────────────────────────────────────────
// Models
// ──────────────────────────────────────────────────

func (s *Store) CreateModel(_ context.Context, model *ds.MLModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[model.OwnerID]; !ok {
		return apperr.Wrap(apperr.ErrPersistence, fmt.Errorf("owner %d does not exist", model.OwnerID))
	}
	if s.findModel(model.OwnerID, model.Name, model.Version) != nil {
		return fmt.Errorf("model %s %s: %w", model.Name, model.Version, apperr.ErrAlreadyExists)
	}
	model.ID = s.id("ml_models")
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now()
	}
	cp := *model
	s.models[model.ID] = &cp
	return nil
}

func (s *Store) GetModel(_ context.Context, id uint, includeDeleted bool) (*ds.MLModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[id]
	if !ok || (m.IsDeleted && !includeDeleted) {
		return nil, fmt.Errorf("model %d: %w", id, apperr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *Store) FindModel(_ context.Context, ownerID uint, name, version string) (*ds.MLModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.findModel(ownerID, name, version)
	if m == nil {
		return nil, fmt.Errorf("model %s %s: %w", name, version, apperr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *Store) findModel(ownerID uint, name, version string) *ds.MLModel {
	for _, m := range s.models {
		if m.OwnerID == ownerID && m.Name == name && m.Version == version {
			return m
		}
	}
	return nil
}

func (s *Store) ListModels(_ context.Context, skip, limit int) ([]ds.MLModel, error) {
	skip, limit = repository.Page(skip, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	models := make([]ds.MLModel, 0, len(s.models))
	for _, m := range s.models {
		if m.Usable() {
			models = append(models, *m)
		}
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return window(models, skip, limit), nil
}

func (s *Store) SoftDeleteModel(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.models[id]
	if !ok {
		return fmt.Errorf("model %d: %w", id, apperr.ErrNotFound)
	}
	if m.IsDeleted {
		return fmt.Errorf("model %d: %w", id, apperr.ErrAlreadyDeleted)
	}
	m.IsDeleted = true
	m.IsActive = false
	return nil
}

// ──────────────────────────────────────────────────
// Predictions
// ──────────────────────────────────────────────────

func (s *Store) CreatePrediction(_ context.Context, prediction *ds.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prediction.ID = s.id("predictions")
	if prediction.CreatedAt.IsZero() {
		prediction.CreatedAt = time.Now()
	}
	s.predictions[prediction.ID] = clonePrediction(prediction)
	return nil
}

// clonePrediction copies p including its slices and file paths, so stored
// rows never share memory with callers.
func clonePrediction(p *ds.Prediction) *ds.Prediction {
	cp := *p
	cp.InputData = append(pq.Float64Array(nil), p.InputData...)
	cp.PredictionResult = append(pq.Float64Array(nil), p.PredictionResult...)
	if p.InputFilePath != nil {
		v := *p.InputFilePath
		cp.InputFilePath = &v
	}
	if p.ResultFilePath != nil {
		v := *p.ResultFilePath
		cp.ResultFilePath = &v
	}
	return &cp
}

func (s *Store) GetPrediction(_ context.Context, id uint) (*ds.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[id]
	if !ok {
		return nil, fmt.Errorf("prediction %d: %w", id, apperr.ErrNotFound)
	}
	return clonePrediction(p), nil
}

func (s *Store) GetPredictionByFile(_ context.Context, path string) (*ds.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.predictions {
		if (p.InputFilePath != nil && *p.InputFilePath == path) || (p.ResultFilePath != nil && *p.ResultFilePath == path) {
			return clonePrediction(p), nil
		}
	}
	return nil, fmt.Errorf("prediction file %s: %w", path, apperr.ErrNotFound)
}

func (s *Store) ListPredictionsByUser(_ context.Context, userID uint, skip, limit int) ([]ds.Prediction, error) {
	skip, limit = repository.Page(skip, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var predictions []ds.Prediction
	for _, p := range s.predictions {
		if p.UserID == userID {
			predictions = append(predictions, *clonePrediction(p))
		}
	}
	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].CreatedAt.Equal(predictions[j].CreatedAt) {
			return predictions[i].ID > predictions[j].ID
		}
		return predictions[i].CreatedAt.After(predictions[j].CreatedAt)
	})
	return window(predictions, skip, limit), nil
}

func window[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Package account registers and authenticates users and manages their
// profiles and top-ups.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/ledger"
	"mlbilling/internal/app/repository"
	"mlbilling/internal/app/role"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

type Ledger interface {
	Credit(ctx context.Context, userID uint, amount decimal.Decimal, reason string) (decimal.Decimal, error)
	History(ctx context.Context, userID uint) ([]ds.CreditOperation, error)
}

type Service struct {
	users    repository.UserStore
	ledger   Ledger
	validate *validator.Validate
	cost     int
}

func New(users repository.UserStore, l Ledger) *Service {
	return &Service{
		users:    users,
		ledger:   l,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
	}
}

func (s *Service) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email,max=100"); err != nil {
		return fmt.Errorf("invalid email %q: %w", email, apperr.ErrValidation)
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, apperr.ErrValidation)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrValidation, err)
	}
	return string(hashed), nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active user with an empty balance.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*ds.User, error) {
	email = normalize(email)
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	hashed, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := &ds.User{
		Email:          email,
		HashedPassword: hashed,
		FullName:       strings.TrimSpace(fullName),
		IsActive:       true,
		Role:           role.User,
		Credits:        decimal.Zero,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	logrus.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Authenticate returns the active user with the given credentials. Any
// mismatch is reported as apperr.ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*ds.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normalize(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("wrong email or password: %w", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, fmt.Errorf("wrong email or password: %w", apperr.ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %d is inactive: %w", user.ID, apperr.ErrUnauthorized)
	}
	return user, nil
}

func (s *Service) Profile(ctx context.Context, userID uint) (*ds.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// Update holds profile changes. Nil fields are left as they are.
type Update struct {
	Email    *string
	FullName *string
	Password *string
}

func (s *Service) Update(ctx context.Context, userID uint, u Update) (*ds.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.Email != nil {
		email := normalize(*u.Email)
		if err := s.checkEmail(email); err != nil {
			return nil, err
		}
		user.Email = email
	}
	if u.FullName != nil {
		user.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Password != nil {
		hashed, err := s.hash(*u.Password)
		if err != nil {
			return nil, err
		}
		user.HashedPassword = hashed
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TopUp adds amount, rounded to the balance precision, to the user's balance
// and returns the new balance.
func (s *Service) TopUp(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	amount = ledger.Round(amount)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("top-up amount must be at least 0.1: %w", apperr.ErrValidation)
	}
	return s.ledger.Credit(ctx, userID, amount, ds.ReasonTopUp)
}

func (s *Service) History(ctx context.Context, userID uint) ([]ds.CreditOperation, error) {
	return s.ledger.History(ctx, userID)
}

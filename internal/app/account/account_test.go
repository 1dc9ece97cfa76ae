package account

import (
	"context"
	"testing"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/ledger"
	"mlbilling/internal/app/repository/memory"
	"mlbilling/internal/app/role"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService() (*Service, *memory.Store) {
	store := memory.New()
	svc := New(store, ledger.New(store))
	svc.cost = bcrypt.MinCost
	return svc, store
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	user, err := svc.Register(ctx, " Ada@Example.com ", "secret1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, role.User, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.Credits.IsZero())
	assert.NotEqual(t, "secret1", user.HashedPassword)

	got, err := svc.Authenticate(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Register(ctx, "not-an-email", "secret1", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Register(ctx, "a@example.com", "short", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Register(ctx, "a@example.com", "secret1", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "A@example.com", "secret2", "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestAuthenticateInactiveUser(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.CreateUser(ctx, &ds.User{Email: "off@example.com", HashedPassword: string(hashed)}))

	_, err = svc.Authenticate(ctx, "off@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	user, err := svc.Register(ctx, "a@example.com", "secret1", "A")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "b@example.com", "secret1", "B")
	require.NoError(t, err)

	name, password := "Alice", "newsecret"
	updated, err := svc.Update(ctx, user.ID, Update{FullName: &name, Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.FullName)
	assert.Equal(t, "a@example.com", updated.Email)

	_, err = svc.Authenticate(ctx, "a@example.com", "newsecret")
	assert.NoError(t, err)

	taken := "b@example.com"
	_, err = svc.Update(ctx, user.ID, Update{Email: &taken})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	short := "123"
	_, err = svc.Update(ctx, user.ID, Update{Password: &short})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTopUp(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	user, err := svc.Register(ctx, "a@example.com", "secret1", "")
	require.NoError(t, err)

	balance, err := svc.TopUp(ctx, user.ID, decimal.RequireFromString("10.26"))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.3").Equal(balance), balance.String())

	_, err = svc.TopUp(ctx, user.ID, decimal.RequireFromString("0.04"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.TopUp(ctx, user.ID, decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ds.ReasonTopUp, history[0].Reason)
}

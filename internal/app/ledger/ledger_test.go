package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/metrics"
	"mlbilling/internal/app/metrics/metricstest"
	"mlbilling/internal/app/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestLedger(t *testing.T, balance string) (*Ledger, *memory.Store, uint, *metricstest.Recorder) {
	t.Helper()
	store := memory.New()
	user := &ds.User{Email: "u@example.com", HashedPassword: "x", IsActive: true}
	require.NoError(t, store.CreateUser(context.Background(), user))

	rec := metricstest.New()
	l := New(store, WithSink(rec))
	if b := d(balance); b.IsPositive() {
		_, err := l.Credit(context.Background(), user.ID, b, ds.ReasonTopUp)
		require.NoError(t, err)
	}
	return l, store, user.ID, rec
}

func balanceOf(t *testing.T, store *memory.Store, userID uint) decimal.Decimal {
	t.Helper()
	u, err := store.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	return u.Credits
}

func TestDebit(t *testing.T) {
	l, store, userID, rec := newTestLedger(t, "100")

	debited, err := l.Debit(context.Background(), userID, d("0.2"), ds.ReasonPrediction)
	require.NoError(t, err)
	assert.True(t, d("0.2").Equal(debited))
	assert.True(t, d("99.8").Equal(balanceOf(t, store, userID)))

	last := rec.Credits[len(rec.Credits)-1]
	assert.Equal(t, metrics.OperationSubtract, last.Operation)
	assert.True(t, d("0.2").Equal(last.Amount))
}

func TestDebitInsufficientFunds(t *testing.T) {
	l, store, userID, _ := newTestLedger(t, "1")

	_, err := l.Debit(context.Background(), userID, d("1.5"), ds.ReasonPrediction)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.True(t, d("1").Equal(balanceOf(t, store, userID)))

	ops, err := l.History(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, ops, 1, "only the top-up is recorded")
}

func TestDebitWholeBalance(t *testing.T) {
	l, store, userID, _ := newTestLedger(t, "2.5")

	_, err := l.Debit(context.Background(), userID, d("2.5"), ds.ReasonPrediction)
	require.NoError(t, err)
	assert.True(t, balanceOf(t, store, userID).IsZero())
}

func TestRejectsNonPositiveAmounts(t *testing.T) {
	l, _, userID, _ := newTestLedger(t, "10")
	ctx := context.Background()

	for _, amount := range []string{"0", "-1"} {
		_, err := l.Debit(ctx, userID, d(amount), ds.ReasonPrediction)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = l.Credit(ctx, userID, d(amount), ds.ReasonTopUp)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
}

func TestUnknownUser(t *testing.T) {
	l, _, _, _ := newTestLedger(t, "0")

	_, err := l.Debit(context.Background(), 999, d("1"), ds.ReasonPrediction)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBalanceRoundedToOneDecimal(t *testing.T) {
	l, store, userID, _ := newTestLedger(t, "10")

	debited, err := l.Debit(context.Background(), userID, d("0.123"), ds.ReasonPrediction)
	require.NoError(t, err)
	assert.True(t, d("0.1").Equal(debited), "got %s", debited)
	assert.True(t, d("9.9").Equal(balanceOf(t, store, userID)))

	balance, err := l.Credit(context.Background(), userID, d("0.123"), ds.ReasonRefund)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(balance), "got %s", balance)
}

func TestDebitedAmountIsExactInverse(t *testing.T) {
	tests := []struct {
		price   string
		debited string
	}{
		{"0.15", "0.1"},
		{"0.25", "0.2"},
		{"0.35", "0.3"},
		{"0.04", "0"},
		{"1.0", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			l, store, userID, _ := newTestLedger(t, "10")

			debited, err := l.Debit(context.Background(), userID, d(tt.price), ds.ReasonPrediction)
			require.NoError(t, err)
			assert.True(t, d(tt.debited).Equal(debited), "got %s", debited)

			if debited.IsPositive() {
				_, err = l.Credit(context.Background(), userID, debited, ds.ReasonRefund)
				require.NoError(t, err)
			}
			assert.True(t, d("10").Equal(balanceOf(t, store, userID)))
		})
	}
}

func TestConservation(t *testing.T) {
	l, store, userID, _ := newTestLedger(t, "50")
	ctx := context.Background()

	debits := []string{"0.5", "1.2", "3", "0.1", "7.7"}
	credits := []string{"2.5", "0.3", "10"}

	for _, a := range debits {
		_, err := l.Debit(ctx, userID, d(a), ds.ReasonPrediction)
		require.NoError(t, err)
	}
	for _, a := range credits {
		_, err := l.Credit(ctx, userID, d(a), ds.ReasonRefund)
		require.NoError(t, err)
	}

	want := d("50")
	for _, a := range debits {
		want = want.Sub(d(a))
	}
	for _, a := range credits {
		want = want.Add(d(a))
	}
	assert.True(t, want.Equal(balanceOf(t, store, userID)), "want %s", want)

	ops, err := l.History(ctx, userID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, op := range ops {
		sum = sum.Add(op.Signed())
	}
	assert.True(t, sum.Equal(balanceOf(t, store, userID)), "operations sum to the balance")
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	const n = 50
	l, store, userID, _ := newTestLedger(t, "10")
	amount := d("10").Div(decimal.NewFromInt(n))

	var ok, insufficient atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(context.Background(), userID, amount, ds.ReasonPrediction)
			switch {
			case err == nil:
				ok.Add(1)
			case apperr.KindOf(err) == apperr.ErrInsufficientFunds:
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), ok.Load())
	assert.Equal(t, int32(n), insufficient.Load())
	assert.True(t, balanceOf(t, store, userID).IsZero())
}

// Package ledger owns user balances. Every change goes through Debit or
// Credit, each applied as a single read-modify-write in the balance store.
//
// Balances are kept at one decimal place and rounded after every operation.
// Charges carry up to three decimals, so long runs of small charges drift
// from the exact sum; the drift is accepted.
package ledger

import (
	"context"
	"fmt"

	"mlbilling/internal/app/apperr"
	"mlbilling/internal/app/ds"
	"mlbilling/internal/app/metrics"
	"mlbilling/internal/app/repository"

	"github.com/shopspring/decimal"
)

// BalancePrecision is the number of decimal places balances are stored with.
const BalancePrecision = 1

type Ledger struct {
	store repository.BalanceStore
	sink  metrics.Sink
}

type Option func(*Ledger)

func WithSink(s metrics.Sink) Option {
	return func(l *Ledger) {
		l.sink = s
	}
}

func New(store repository.BalanceStore, opts ...Option) *Ledger {
	l := &Ledger{store: store}
	for _, opt := range opts {
		opt(l)
	}
	if l.sink == nil {
		l.sink = metrics.Nop{}
	}
	return l
}

// Round rounds a balance to BalancePrecision.
func Round(balance decimal.Decimal) decimal.Decimal {
	return balance.Round(BalancePrecision)
}

// Debit subtracts amount from the user's balance. It returns the amount the
// balance actually went down by, which differs from amount when rounding
// kicks in; crediting it back restores the balance exactly.
// It fails with apperr.ErrInsufficientFunds, leaving the balance untouched,
// when amount exceeds the balance.
func (l *Ledger) Debit(ctx context.Context, userID uint, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("debit %s: %w", amount, apperr.ErrValidation)
	}

	var before decimal.Decimal
	op := ds.CreditOperation{Operation: ds.OperationDebit, Reason: reason, Amount: amount}
	applied, err := l.store.ApplyCredits(ctx, userID, op, func(balance decimal.Decimal) (decimal.Decimal, error) {
		if amount.GreaterThan(balance) {
			return balance, fmt.Errorf("balance %s, charge %s: %w", balance, amount, apperr.ErrInsufficientFunds)
		}
		before = balance
		return Round(balance.Sub(amount)), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	l.sink.CreditsChanged(userID, metrics.OperationSubtract, amount, applied.BalanceAfter)
	return before.Sub(applied.BalanceAfter), nil
}

// Credit adds amount to the user's balance and returns the new balance.
// There is no upper bound.
func (l *Ledger) Credit(ctx context.Context, userID uint, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("credit %s: %w", amount, apperr.ErrValidation)
	}

	op := ds.CreditOperation{Operation: ds.OperationCredit, Reason: reason, Amount: amount}
	applied, err := l.store.ApplyCredits(ctx, userID, op, func(balance decimal.Decimal) (decimal.Decimal, error) {
		return Round(balance.Add(amount)), nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	l.sink.CreditsChanged(userID, metrics.OperationAdd, amount, applied.BalanceAfter)
	return applied.BalanceAfter, nil
}

// History returns the user's credit operations, oldest first.
func (l *Ledger) History(ctx context.Context, userID uint) ([]ds.CreditOperation, error) {
	return l.store.ListCreditOperations(ctx, userID)
}

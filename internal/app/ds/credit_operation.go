package ds

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OperationDebit  = "debit"
	OperationCredit = "credit"
)

const (
	ReasonPrediction = "prediction"
	ReasonRefund     = "refund"
	ReasonTopUp      = "top_up"
)

// CreditOperation is an append-only audit row written in the same
// transaction as the balance change it describes.
type CreditOperation struct {
	ID           uint            `gorm:"primaryKey"`
	UserID       uint            `gorm:"not null;index"`
	Operation    string          `gorm:"type:varchar(10);not null"`
	Reason       string          `gorm:"type:varchar(20);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(12,1);not null"`
	CreatedAt    time.Time       `gorm:"not null"`
}

// Signed returns the amount with the sign of its effect on the balance.
func (o CreditOperation) Signed() decimal.Decimal {
	if o.Operation == OperationDebit {
		return o.Amount.Neg()
	}
	return o.Amount
}

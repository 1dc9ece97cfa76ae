package ds

import (
	"time"

	"mlbilling/internal/app/role"

	"github.com/shopspring/decimal"
)

// User owns a credit balance. Credits are changed only through the ledger.
type User struct {
	ID             uint            `gorm:"primaryKey"`
	Email          string          `gorm:"type:varchar(100);uniqueIndex;not null"`
	HashedPassword string          `gorm:"type:varchar(255);not null"`
	FullName       string          `gorm:"type:varchar(100)"`
	IsActive       bool            `gorm:"type:boolean;default:true;not null"`
	Role           role.Role       `gorm:"type:int;default:0;not null"`
	Credits        decimal.Decimal `gorm:"type:decimal(12,1);default:0;not null"`
	CreatedAt      time.Time       `gorm:"not null"`
}

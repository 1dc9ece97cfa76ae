package ds

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Prediction records one charged inference. Rows are never updated or deleted.
type Prediction struct {
	ID               uint            `gorm:"primaryKey"`
	UserID           uint            `gorm:"not null;index"`
	ModelID          uint            `gorm:"not null;index"`
	InputData        pq.Float64Array `gorm:"type:float8[]"`
	PredictionResult pq.Float64Array `gorm:"type:float8[]"`
	Cost             decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	CreatedAt        time.Time       `gorm:"not null;index"`
	InputFilePath    *string         `gorm:"type:varchar(255)"`
	ResultFilePath   *string         `gorm:"type:varchar(255)"`
}

package ds

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ModelTypeClassification = "classification"
	ModelTypeRegression     = "regression"
)

// IsModelType reports whether t is a supported model type.
func IsModelType(t string) bool {
	return t == ModelTypeClassification || t == ModelTypeRegression
}

// MLModel is an uploaded model. It is soft-deleted only, so that predictions
// referencing it stay valid.
type MLModel struct {
	ID                uint            `gorm:"primaryKey"`
	Name              string          `gorm:"type:varchar(100);not null;index;uniqueIndex:idx_ml_models_owner_name_version,priority:2"`
	Description       string          `gorm:"type:text"`
	Version           string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_ml_models_owner_name_version,priority:3"`
	ModelType         string          `gorm:"type:varchar(20);not null"`
	ModelPath         string          `gorm:"type:varchar(255);not null"`
	CostPerPrediction decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	IsActive          bool            `gorm:"type:boolean;default:true;not null"`
	IsDeleted         bool            `gorm:"type:boolean;default:false;not null"`
	OwnerID           uint            `gorm:"not null;index;uniqueIndex:idx_ml_models_owner_name_version,priority:1"`
	CreatedAt         time.Time       `gorm:"not null"`
}

func (MLModel) TableName() string {
	return "ml_models"
}

// Usable reports whether new predictions may target the model.
func (m *MLModel) Usable() bool {
	return m.IsActive && !m.IsDeleted
}

// ArtifactKey is the object storage key of a model artifact.
func ArtifactKey(ownerID uint, name, version string) string {
	return fmt.Sprintf("models/%d/%s_%s", ownerID, name, version)
}

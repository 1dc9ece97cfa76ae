package repository

import (
	"context"
	"fmt"

	"mlbilling/internal/app/ds"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ApplyCredits locks the user row with SELECT ... FOR UPDATE, so concurrent
// operations on one user serialize while other users proceed in parallel.
func (r *Repository) ApplyCredits(ctx context.Context, userID uint, op ds.CreditOperation, mutate CreditMutation) (*ds.CreditOperation, error) {
	var mutateErr error

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user ds.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "credits").
			First(&user, userID).Error
		if err != nil {
			return err
		}

		next, err := mutate(user.Credits)
		if err != nil {
			mutateErr = err
			return err
		}

		err = tx.Model(&ds.User{}).Where("id = ?", userID).Update("credits", next).Error
		if err != nil {
			return err
		}

		op.ID = 0
		op.UserID = userID
		op.BalanceAfter = next
		return tx.Create(&op).Error
	})
	if mutateErr != nil {
		return nil, mutateErr
	}
	if err != nil {
		return nil, dbError(fmt.Sprintf("credits of user %d", userID), err)
	}
	return &op, nil
}

func (r *Repository) ListCreditOperations(ctx context.Context, userID uint) ([]ds.CreditOperation, error) {
	var ops []ds.CreditOperation
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&ops).Error
	if err != nil {
		return nil, dbError("list credit operations", err)
	}
	return ops, nil
}

package promotion

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the promotion access used inside a checkout transaction
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// FindByCode loads a promotion and its applicable books. With lock set the
// promotion row stays locked until the transaction ends.
func (s *Store) FindByCode(tx *gorm.DB, code string, lock bool) (*Promotion, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p Promotion
	if err := q.Where("code = ?", NormalizeCode(code)).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromotionNotFound
		}
		return nil, fmt.Errorf("failed to load promotion: %w", err)
	}

	if err := tx.Where("promotion_id = ?", p.ID).Find(&p.Books).Error; err != nil {
		return nil, fmt.Errorf("failed to load promotion books: %w", err)
	}
	return &p, nil
}

// IncrementUsage counts one use. The guard in the WHERE clause keeps
// usage_count from passing usage_limit under concurrent checkouts.
func (s *Store) IncrementUsage(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Model(&Promotion{}).
		Where("id = ? AND usage_count < usage_limit", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to increment promotion usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &InvalidPromotionError{Code: id.String(), Reason: ReasonUsageExhausted}
	}
	return nil
}

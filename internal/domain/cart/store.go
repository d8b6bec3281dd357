package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the cart access used inside a checkout transaction
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Items returns the user's cart lines, limited to bookIDs when given.
// A user without a cart simply has no items.
func (s *Store) Items(tx *gorm.DB, userID uuid.UUID, bookIDs []uuid.UUID) ([]CartItem, error) {
	c, err := s.find(tx, userID)
	if err != nil || c == nil {
		return nil, err
	}

	q := tx.Where("cart_id = ?", c.ID)
	if len(bookIDs) > 0 {
		q = q.Where("book_id IN ?", bookIDs)
	}

	var items []CartItem
	if err := q.Order("created_at, id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve cart items: %w", err)
	}
	return items, nil
}

// Clear removes the user's cart lines, or only bookIDs when given
func (s *Store) Clear(tx *gorm.DB, userID uuid.UUID, bookIDs []uuid.UUID) error {
	c, err := s.find(tx, userID)
	if err != nil || c == nil {
		return err
	}

	q := tx.Where("cart_id = ?", c.ID)
	if len(bookIDs) > 0 {
		q = q.Where("book_id IN ?", bookIDs)
	}
	if err := q.Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *Store) find(tx *gorm.DB, userID uuid.UUID) (*Cart, error) {
	var c Cart
	err := tx.Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &c, nil
}

func (s *Store) findOrCreate(tx *gorm.DB, userID uuid.UUID) (*Cart, error) {
	c, err := s.find(tx, userID)
	if err != nil || c != nil {
		return c, err
	}

	c = &Cart{UserID: userID}
	if err := tx.Create(c).Error; err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return c, nil
}

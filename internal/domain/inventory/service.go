// internal/domain/inventory/service.go
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"gorm.io/gorm"
)

// Service exposes read access to stock levels and their audit trail
type Service struct {
	db    *gorm.DB
	store *Store
}

// NewService creates a new inventory service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		store: NewStore(),
	}
}

// StockView is a book's current stock with its most recent movements
type StockView struct {
	Book      *book.Book `json:"book"`
	Movements []Movement `json:"movements"`
}

// GetStock returns the stock counter and the latest movements for a book
func (s *Service) GetStock(ctx context.Context, bookID uuid.UUID, limit int) (*StockView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	db := s.db.WithContext(ctx)
	b, err := s.store.Get(db, bookID)
	if err != nil {
		return nil, err
	}

	var movements []Movement
	if err := db.Where("book_id = ?", bookID).
		Order("created_at DESC").
		Limit(limit).
		Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve stock movements: %w", err)
	}

	return &StockView{Book: b, Movements: movements}, nil
}

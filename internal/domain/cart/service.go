// internal/domain/cart/service.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"gorm.io/gorm"
)

// Service handles cart business logic
type Service struct {
	db    *gorm.DB
	store *Store
}

// NewService creates a new cart service
func NewService(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		store: NewStore(),
	}
}

// CartItemResponse represents a cart line priced at the current catalog price
type CartItemResponse struct {
	BookID   uuid.UUID `json:"book_id"`
	Title    string    `json:"title"`
	Quantity int       `json:"quantity"`
	Price    int64     `json:"price"`
	Subtotal int64     `json:"subtotal"`
	InStock  bool      `json:"in_stock"`
	AddedAt  time.Time `json:"added_at"`
}

// CartResponse represents a shopping cart with items and summary
type CartResponse struct {
	UserID uuid.UUID          `json:"user_id"`
	Items  []CartItemResponse `json:"items"`
	Totals CartTotals         `json:"totals"`
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	BookID   uuid.UUID `json:"book_id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest represents update cart item request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// GetCart retrieves the user's cart
func (s *Service) GetCart(ctx context.Context, userID uuid.UUID) (*CartResponse, error) {
	db := s.db.WithContext(ctx)

	items, err := s.store.Items(db, userID, nil)
	if err != nil {
		return nil, err
	}

	resp := &CartResponse{UserID: userID, Items: make([]CartItemResponse, 0, len(items))}
	if len(items) == 0 {
		return resp, nil
	}

	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.BookID
	}

	var books []book.Book
	if err := db.Where("id IN ?", ids).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to load books: %w", err)
	}
	byID := make(map[uuid.UUID]book.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	for _, item := range items {
		b, ok := byID[item.BookID]
		if !ok {
			continue
		}
		line := CartItemResponse{
			BookID:   item.BookID,
			Title:    b.Title,
			Quantity: item.Quantity,
			Price:    b.Price,
			Subtotal: b.Price * int64(item.Quantity),
			InStock:  b.StockQuantity >= item.Quantity,
			AddedAt:  item.CreatedAt,
		}
		resp.Items = append(resp.Items, line)
		resp.Totals.ItemCount++
		resp.Totals.TotalQuantity += line.Quantity
		resp.Totals.SubTotal += line.Subtotal
	}

	return resp, nil
}

// AddToCart adds quantity of a book, merging with an existing line
func (s *Service) AddToCart(ctx context.Context, userID uuid.UUID, req *AddToCartRequest) (*CartResponse, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b book.Book
		if err := tx.Where("id = ?", req.BookID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return book.ErrBookNotFound
			}
			return fmt.Errorf("failed to load book: %w", err)
		}

		c, err := s.store.findOrCreate(tx, userID)
		if err != nil {
			return err
		}

		var existing CartItem
		err = tx.Where("cart_id = ? AND book_id = ?", c.ID, req.BookID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if b.StockQuantity < req.Quantity {
				return &inventory.InsufficientStockError{BookID: b.ID, Title: b.Title, Requested: req.Quantity, Available: b.StockQuantity}
			}
			return tx.Create(&CartItem{CartID: c.ID, BookID: req.BookID, Quantity: req.Quantity}).Error
		case err != nil:
			return fmt.Errorf("failed to load cart item: %w", err)
		}

		newQuantity := existing.Quantity + req.Quantity
		if b.StockQuantity < newQuantity {
			return &inventory.InsufficientStockError{BookID: b.ID, Title: b.Title, Requested: newQuantity, Available: b.StockQuantity}
		}
		return tx.Model(&existing).Update("quantity", newQuantity).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

// UpdateCartItem sets the quantity of a line; zero removes it
func (s *Service) UpdateCartItem(ctx context.Context, userID, bookID uuid.UUID, req *UpdateCartItemRequest) (*CartResponse, error) {
	if req.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.store.find(tx, userID)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrItemNotFound
		}

		if req.Quantity == 0 {
			res := tx.Where("cart_id = ? AND book_id = ?", c.ID, bookID).Delete(&CartItem{})
			if res.Error != nil {
				return fmt.Errorf("failed to remove cart item: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrItemNotFound
			}
			return nil
		}

		var b book.Book
		if err := tx.Where("id = ?", bookID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return book.ErrBookNotFound
			}
			return fmt.Errorf("failed to load book: %w", err)
		}
		if b.StockQuantity < req.Quantity {
			return &inventory.InsufficientStockError{BookID: b.ID, Title: b.Title, Requested: req.Quantity, Available: b.StockQuantity}
		}

		res := tx.Model(&CartItem{}).
			Where("cart_id = ? AND book_id = ?", c.ID, bookID).
			Update("quantity", req.Quantity)
		if res.Error != nil {
			return fmt.Errorf("failed to update cart item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrItemNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

// RemoveFromCart removes a book from the cart
func (s *Service) RemoveFromCart(ctx context.Context, userID, bookID uuid.UUID) (*CartResponse, error) {
	return s.UpdateCartItem(ctx, userID, bookID, &UpdateCartItemRequest{Quantity: 0})
}

// ClearCart removes all items from the cart
func (s *Service) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return s.store.Clear(s.db.WithContext(ctx), userID, nil)
}

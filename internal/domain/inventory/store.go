package inventory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store mutates book stock. Every method runs on the caller's transaction so
// the counter moves together with the order that caused it.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Get loads a book without locking it
func (s *Store) Get(tx *gorm.DB, bookID uuid.UUID) (*book.Book, error) {
	var b book.Book
	if err := tx.Where("id = ?", bookID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", book.ErrBookNotFound, bookID)
		}
		return nil, fmt.Errorf("failed to load book: %w", err)
	}
	return &b, nil
}

// LockBooks row-locks the given books in id order, which keeps two
// checkouts over overlapping carts from deadlocking each other.
func (s *Store) LockBooks(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]book.Book, error) {
	sorted := make([]string, 0, len(ids))
	for _, id := range ids {
		sorted = append(sorted, id.String())
	}
	sort.Strings(sorted)

	var books []book.Book
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock books: %w", err)
	}

	byID := make(map[uuid.UUID]book.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("%w: %s", book.ErrBookNotFound, id)
		}
	}
	return byID, nil
}

// Decrement removes qty units. The conditional update never lets the
// counter go negative; a short counter yields InsufficientStockError.
func (s *Store) Decrement(tx *gorm.DB, bookID uuid.UUID, qty int, ref Reference) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity %d", qty)
	}

	res := tx.Model(&book.Book{}).
		Where("id = ? AND stock_quantity >= ?", bookID, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to decrement stock: %w", res.Error)
	}

	current, err := s.Get(tx, bookID)
	if err != nil {
		return err
	}

	if res.RowsAffected == 0 {
		return &InsufficientStockError{
			BookID:    bookID,
			Title:     current.Title,
			Requested: qty,
			Available: current.StockQuantity,
		}
	}

	return s.record(tx, Movement{
		BookID:           bookID,
		MovementType:     MovementTypeOutbound,
		Reason:           ReasonSale,
		Quantity:         qty,
		PreviousQuantity: current.StockQuantity + qty,
		NewQuantity:      current.StockQuantity,
	}, ref)
}

// Restore puts qty units back, e.g. when an order is cancelled
func (s *Store) Restore(tx *gorm.DB, bookID uuid.UUID, qty int, ref Reference) error {
	if qty <= 0 {
		return fmt.Errorf("invalid quantity %d", qty)
	}

	res := tx.Model(&book.Book{}).
		Where("id = ?", bookID).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("failed to restore stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", book.ErrBookNotFound, bookID)
	}

	current, err := s.Get(tx, bookID)
	if err != nil {
		return err
	}

	return s.record(tx, Movement{
		BookID:           bookID,
		MovementType:     MovementTypeInbound,
		Reason:           ReasonReturn,
		Quantity:         qty,
		PreviousQuantity: current.StockQuantity - qty,
		NewQuantity:      current.StockQuantity,
	}, ref)
}

func (s *Store) record(tx *gorm.DB, m Movement, ref Reference) error {
	if ref.ID != uuid.Nil {
		id := ref.ID
		m.ReferenceType = ref.Type
		m.ReferenceID = &id
	}
	if err := tx.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to record stock movement: %w", err)
	}
	return nil
}

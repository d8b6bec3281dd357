// internal/domain/inventory/entity.go
package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError reports the book that could not cover the requested quantity
type InsufficientStockError struct {
	BookID    uuid.UUID `json:"book_id"`
	Title     string    `json:"title,omitempty"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for book %s: available %d, requested %d", e.BookID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// MovementType represents the direction of a stock movement
type MovementType string

const (
	MovementTypeInbound  MovementType = "inbound"
	MovementTypeOutbound MovementType = "outbound"
)

// MovementReason represents the reason for a stock movement
type MovementReason string

const (
	ReasonSale       MovementReason = "sale"
	ReasonReturn     MovementReason = "return"
	ReasonAdjustment MovementReason = "adjustment"
)

// Reference points a movement at the document that caused it
type Reference struct {
	Type string
	ID   uuid.UUID
}

// Movement is an append-only record of one change to a book's stock counter
type Movement struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	BookID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"book_id"`
	MovementType     MovementType   `gorm:"not null;size:20" json:"movement_type"`
	Reason           MovementReason `gorm:"not null;size:20" json:"reason"`
	Quantity         int            `gorm:"not null" json:"quantity"`
	PreviousQuantity int            `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int            `gorm:"not null" json:"new_quantity"`
	ReferenceType    string         `gorm:"size:50" json:"reference_type"`
	ReferenceID      *uuid.UUID     `gorm:"type:uuid;index" json:"reference_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// TableName overrides the table name
func (Movement) TableName() string {
	return "inventory_movements"
}

// BeforeCreate assigns an id when the caller did not
func (m *Movement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

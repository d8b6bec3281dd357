// internal/domain/book/entity.go
package book

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrBookNotFound = errors.New("book not found")

// Book is the part of the catalog record that checkout depends on: the
// current price and the on-hand stock counter. Prices are whole VND.
type Book struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string    `gorm:"not null;size:255" json:"title"`
	Author        string    `gorm:"size:255" json:"author"`
	ISBN          string    `gorm:"size:20;index" json:"isbn"`
	Price         int64     `gorm:"not null" json:"price"`
	StockQuantity int       `gorm:"not null;default:0;check:chk_books_stock_non_negative,stock_quantity >= 0" json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Book) TableName() string {
	return "books"
}

// BeforeCreate assigns an id when the caller did not
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

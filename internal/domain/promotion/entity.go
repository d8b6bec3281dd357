// internal/domain/promotion/entity.go
package promotion

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidPromotion  = errors.New("invalid promotion")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrDuplicateCode     = errors.New("promotion code already exists")
)

// Status represents the lifecycle state of a promotion
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusExpired  Status = "EXPIRED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired:
		return true
	}
	return false
}

// Promotion is a percentage discount code with a validity window and a usage cap
type Promotion struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Code            string          `gorm:"not null;size:50;uniqueIndex" json:"code"`
	Name            string          `gorm:"not null;size:255" json:"name"`
	Description     string          `gorm:"type:text" json:"description"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"discount_percent"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         time.Time       `gorm:"not null" json:"end_date"`
	UsageCount      int             `gorm:"not null;default:0;check:chk_promotions_usage_within_limit,usage_count <= usage_limit" json:"usage_count"`
	UsageLimit      int             `gorm:"not null" json:"usage_limit"`
	Status          Status          `gorm:"not null;size:20;index" json:"status"`
	Books           []PromotionBook `gorm:"foreignKey:PromotionID" json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Promotion) TableName() string {
	return "promotions"
}

func (p *Promotion) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	p.Code = NormalizeCode(p.Code)
	return nil
}

// ApplicableBookIDs returns the restricted book set; empty means every book
func (p *Promotion) ApplicableBookIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(p.Books))
	for i, b := range p.Books {
		ids[i] = b.BookID
	}
	return ids
}

// PromotionBook restricts a promotion to a book
type PromotionBook struct {
	PromotionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"promotion_id"`
	BookID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"book_id"`
}

// TableName overrides the table name
func (PromotionBook) TableName() string {
	return "promotion_books"
}

// InvalidPromotionError carries the first failed check
type InvalidPromotionError struct {
	Code   string
	Reason Reason
}

func (e *InvalidPromotionError) Error() string {
	return fmt.Sprintf("promotion %q is not valid: %s", e.Code, e.Reason)
}

func (e *InvalidPromotionError) Is(target error) bool {
	return target == ErrInvalidPromotion
}

// NormalizeCode makes code lookups case-insensitive
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

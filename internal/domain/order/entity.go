// internal/domain/order/entity.go
package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound            = errors.New("order not found")
	ErrInvalidTransition        = errors.New("invalid order status transition")
	ErrOrderNotCancellable      = errors.New("order cannot be cancelled in its current status")
	ErrPaymentMethodRequired    = errors.New("payment method is required")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusCompleted},
}

// CanTransitionTo reports whether the status machine allows from -> to
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod is how the customer intends to pay for the order
type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodVNPay   PaymentMethod = "VNPAY"
	PaymentMethodZaloPay PaymentMethod = "ZALOPAY"
	PaymentMethodMoMo    PaymentMethod = "MOMO"
)

// ParsePaymentMethod accepts any casing of a supported method
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return "", ErrPaymentMethodRequired
	}
	switch m := PaymentMethod(raw); m {
	case PaymentMethodCOD, PaymentMethodVNPay, PaymentMethodZaloPay, PaymentMethodMoMo:
		return m, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedPaymentMethod, raw)
}

// Order is the immutable snapshot taken at checkout. Only Status and the
// status timestamps change afterwards.
type Order struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber    string        `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID         uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	Status         OrderStatus   `gorm:"not null;size:20;index" json:"status"`
	PaymentMethod  PaymentMethod `gorm:"not null;size:20" json:"payment_method"`
	Subtotal       int64         `gorm:"not null" json:"subtotal"`
	DiscountAmount int64         `gorm:"not null;default:0" json:"discount_amount"`
	Total          int64         `gorm:"not null" json:"total"`
	PromotionID    *uuid.UUID    `gorm:"type:uuid;index" json:"promotion_id,omitempty"`
	PromotionCode  string        `gorm:"size:50" json:"promotion_code,omitempty"`

	ShippingAddress Address `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	Note            string  `gorm:"type:text" json:"note"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem is a book line with the unit price frozen at checkout
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	BookID    uuid.UUID `gorm:"type:uuid;not null;index" json:"book_id"`
	Title     string    `gorm:"not null;size:255" json:"title"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Subtotal  int64     `gorm:"not null" json:"subtotal"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"size:20" json:"from_status,omitempty"`
	Status     OrderStatus `gorm:"not null;size:20" json:"status"`
	Comment    string      `gorm:"type:text" json:"comment"`
	CreatedBy  *uuid.UUID  `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Address is the delivery address embedded in Order
type Address struct {
	RecipientName string `gorm:"size:100" json:"recipient_name"`
	Phone         string `gorm:"size:20" json:"phone"`
	AddressLine   string `gorm:"size:255" json:"address_line"`
	Ward          string `gorm:"size:100" json:"ward"`
	District      string `gorm:"size:100" json:"district"`
	City          string `gorm:"size:100" json:"city"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (OrderStatusHistory) TableName() string { return "order_status_histories" }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OrderNumber == "" {
		o.OrderNumber = o.GenerateOrderNumber()
	}
	return nil
}

func (oi *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if oi.ID == uuid.Nil {
		oi.ID = uuid.New()
	}
	return nil
}

func (h *OrderStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// GenerateOrderNumber generates a unique order number
func (o *Order) GenerateOrderNumber() string {
	// Format: ORD-YYYYMMDD-XXXXXXXX
	suffix := strings.ToUpper(strings.ReplaceAll(o.ID.String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), suffix)
}

// CanBeCancelled checks if order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// BookIDs lists the books on the order
func (o *Order) BookIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.BookID
	}
	return ids
}

// AddStatusHistory adds a new status change to history
func (o *Order) AddStatusHistory(from, to OrderStatus, comment string, createdBy *uuid.UUID) {
	o.StatusHistory = append(o.StatusHistory, OrderStatusHistory{
		OrderID:    o.ID,
		FromStatus: from,
		Status:     to,
		Comment:    comment,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	})
}

// InvalidTransitionError describes a refused status change
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

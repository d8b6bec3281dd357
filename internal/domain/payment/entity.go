// internal/domain/payment/entity.go
package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentTerminal      = errors.New("payment is already completed or failed")
	ErrAmountMismatch       = errors.New("amount does not match order total")
	ErrOrderNotPayable      = errors.New("order is not awaiting payment")
	ErrInvalidTransactionID = errors.New("invalid transaction id")
	ErrNothingToPay         = errors.New("order total is zero, nothing to pay")
)

// Failure codes stored in ResponseCode when the system, not the gateway,
// closes a payment
const (
	CodeExpired        = "EXPIRED"
	CodeSuperseded     = "SUPERSEDED"
	CodeOrderCancelled = "ORDER_CANCELLED"
)

// Status represents the payment status
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payment is one attempt to pay an order through a gateway
type Payment struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID        string          `gorm:"uniqueIndex;not null;size:64" json:"transaction_id"`
	OrderID              uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Gateway              gateway.Gateway `gorm:"not null;size:20" json:"gateway"`
	Amount               int64           `gorm:"not null" json:"amount"`
	Status               Status          `gorm:"not null;size:20;index" json:"status"`
	GatewayTransactionNo string          `gorm:"size:100" json:"gateway_transaction_no,omitempty"`
	ResponseCode         string          `gorm:"size:20" json:"response_code,omitempty"`
	ResponseMessage      string          `gorm:"type:text" json:"response_message,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Expired reports whether a pending payment is older than ttl
func (p *Payment) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) >= ttl
}

// Complete marks a pending payment as paid
func (p *Payment) Complete(gatewayTxnNo, code, message string, at time.Time) error {
	if p.Status.IsTerminal() {
		return ErrPaymentTerminal
	}
	p.Status = StatusCompleted
	p.GatewayTransactionNo = gatewayTxnNo
	p.ResponseCode = code
	p.ResponseMessage = message
	p.PaidAt = &at
	return nil
}

// Fail marks a pending payment as failed
func (p *Payment) Fail(gatewayTxnNo, code, message string) error {
	if p.Status.IsTerminal() {
		return ErrPaymentTerminal
	}
	p.Status = StatusFailed
	if gatewayTxnNo != "" {
		p.GatewayTransactionNo = gatewayTxnNo
	}
	p.ResponseCode = code
	p.ResponseMessage = message
	return nil
}

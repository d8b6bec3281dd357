// internal/domain/payment/service.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
	"gorm.io/gorm"
)

// Service creates payments and reports their state
type Service struct {
	db         *gorm.DB
	store      *Store
	orders     *order.Store
	registry   *gateway.Registry
	logger     logrus.FieldLogger
	txOpts     database.TxOptions
	pendingTTL time.Duration
	now        func() time.Time
}

// NewService creates a new payment service. Pending payments older than
// pendingTTL are replaced instead of reused.
func NewService(db *gorm.DB, registry *gateway.Registry, logger logrus.FieldLogger, txOpts database.TxOptions, pendingTTL time.Duration) *Service {
	return &Service{
		db:         db,
		store:      NewStore(),
		orders:     order.NewStore(),
		registry:   registry,
		logger:     logger,
		txOpts:     txOpts,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

// CreateRequest starts a payment for an order. Amount 0 means the order total.
type CreateRequest struct {
	OrderID  uuid.UUID       `json:"orderId" binding:"required"`
	Amount   int64           `json:"amount" binding:"min=0"`
	UserID   uuid.UUID       `json:"-"`
	Gateway  gateway.Gateway `json:"-"`
	ClientIP string          `json:"-"`
}

// CreateResult is what the client needs to redirect the customer
type CreateResult struct {
	TransactionID string          `json:"transactionId"`
	OrderID       uuid.UUID       `json:"orderId"`
	Gateway       gateway.Gateway `json:"gateway"`
	Amount        int64           `json:"amount"`
	RedirectURL   string          `json:"redirectUrl"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	Reused        bool            `json:"reused"`
}

// StatusView is a payment together with its order's current status
type StatusView struct {
	Payment     *Payment          `json:"payment"`
	OrderNumber string            `json:"orderNumber"`
	OrderStatus order.OrderStatus `json:"orderStatus"`
}

// CreatePayment opens (or reuses) the order's pending payment and asks the
// gateway for a redirect. The gateway is called after commit so no row lock
// is held across the network call; a gateway failure leaves the payment
// PENDING for a retry.
func (s *Service) CreatePayment(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	adapter, err := s.registry.Get(req.Gateway)
	if err != nil {
		return nil, err
	}
	g := adapter.Name()

	var p *Payment
	reused := false
	err = database.WithRetry(ctx, s.db, s.txOpts, func(tx *gorm.DB) error {
		reused = false

		o, err := s.orders.Lock(tx, req.OrderID)
		if err != nil {
			return err
		}
		if o.UserID != req.UserID {
			return order.ErrOrderNotFound
		}
		if o.Status != order.OrderStatusPending {
			return fmt.Errorf("%w: status is %s", ErrOrderNotPayable, o.Status)
		}

		if o.Total <= 0 {
			return fmt.Errorf("%w: order %s", ErrNothingToPay, o.OrderNumber)
		}

		amount := req.Amount
		if amount == 0 {
			amount = o.Total
		}
		if amount != o.Total {
			return fmt.Errorf("%w: got %d, order total is %d", ErrAmountMismatch, amount, o.Total)
		}

		existing, err := s.store.FindPendingByOrder(tx, o.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Gateway == g && !existing.Expired(s.now(), s.pendingTTL) {
				p = existing
				reused = true
				return nil
			}

			code, msg := CodeSuperseded, "Replaced by a payment on "+string(g)
			if existing.Expired(s.now(), s.pendingTTL) {
				code, msg = CodeExpired, "Payment window expired"
			}
			if err := existing.Fail("", code, msg); err != nil {
				return err
			}
			if err := s.store.Save(tx, existing); err != nil {
				return err
			}
		}

		txid, err := NewTransactionID()
		if err != nil {
			return err
		}
		p = &Payment{
			TransactionID: txid,
			OrderID:       o.ID,
			Gateway:       g,
			Amount:        amount,
			Status:        StatusPending,
		}
		if err := s.store.Save(tx, p); err != nil {
			return err
		}

		if o.PaymentMethod != order.PaymentMethod(g) {
			err := tx.Model(&order.Order{}).Where("id = ?", o.ID).Update("payment_method", order.PaymentMethod(g)).Error
			if err != nil {
				return fmt.Errorf("failed to update order payment method: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordPaymentRequest(string(g), "rejected")
		return nil, err
	}

	redirect, err := adapter.CreatePaymentRequest(ctx, gateway.PaymentRequest{
		TransactionID: p.TransactionID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		ClientIP:      req.ClientIP,
		CreatedAt:     p.CreatedAt,
	})
	if err != nil {
		metrics.RecordPaymentRequest(string(g), "gateway_error")
		s.logger.WithError(err).WithFields(logrus.Fields{
			"transaction_id": p.TransactionID,
			"gateway":        g,
		}).Error("Gateway refused payment request")
		return nil, err
	}

	metrics.RecordPaymentRequest(string(g), "created")
	s.logger.WithFields(logrus.Fields{
		"transaction_id": p.TransactionID,
		"order_id":       p.OrderID,
		"gateway":        g,
		"amount":         p.Amount,
		"reused":         reused,
	}).Info("Payment request created")

	return &CreateResult{
		TransactionID: p.TransactionID,
		OrderID:       p.OrderID,
		Gateway:       g,
		Amount:        p.Amount,
		RedirectURL:   redirect,
		ExpiresAt:     p.CreatedAt.Add(s.pendingTTL),
		Reused:        reused,
	}, nil
}

// GetByTransactionID returns the payment and its order status. With userID
// set, payments on other users' orders are reported as not found.
func (s *Service) GetByTransactionID(ctx context.Context, txid string, userID *uuid.UUID) (*StatusView, error) {
	db := s.db.WithContext(ctx)

	p, err := s.store.FindByTransactionID(db, txid, false)
	if err != nil {
		return nil, err
	}

	var o order.Order
	if err := db.Where("id = ?", p.OrderID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if userID != nil && o.UserID != *userID {
		return nil, ErrPaymentNotFound
	}

	return &StatusView{Payment: p, OrderNumber: o.OrderNumber, OrderStatus: o.Status}, nil
}

// ListByOrder returns all payment attempts of an order
func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	return s.store.ListByOrder(s.db.WithContext(ctx), orderID)
}

// StatusQuerier is implemented by adapters that can look a transaction up
type StatusQuerier interface {
	QueryStatus(ctx context.Context, txid string, createdAt time.Time) (*gateway.QueryResult, error)
}

// QueryGateway asks the payment's gateway for its view of the transaction.
// It never changes local state.
func (s *Service) QueryGateway(ctx context.Context, txid string) (*gateway.QueryResult, error) {
	p, err := s.store.FindByTransactionID(s.db.WithContext(ctx), txid, false)
	if err != nil {
		return nil, err
	}

	adapter, err := s.registry.Get(p.Gateway)
	if err != nil {
		return nil, err
	}
	querier, ok := adapter.(StatusQuerier)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not support status queries", gateway.ErrUnknownGateway, p.Gateway)
	}
	return querier.QueryStatus(ctx, p.TransactionID, p.CreatedAt)
}

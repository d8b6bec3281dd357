// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/promotion"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"github.com/your-org/bookstore-backend/internal/pkg/events"
	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
	"gorm.io/gorm"
)

var ErrEmptyCart = errors.New("cart is empty")

var timeNow = time.Now

// Service turns a cart into an order
type Service struct {
	db         *gorm.DB
	carts      *cart.Store
	inventory  *inventory.Store
	promotions *promotion.Store
	orders     *order.Store
	publisher  events.Publisher
	logger     logrus.FieldLogger
	txOpts     database.TxOptions
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, publisher events.Publisher, logger logrus.FieldLogger, txOpts database.TxOptions) *Service {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &Service{
		db:         db,
		carts:      cart.NewStore(),
		inventory:  inventory.NewStore(),
		promotions: promotion.NewStore(),
		orders:     order.NewStore(),
		publisher:  publisher,
		logger:     logger,
		txOpts:     txOpts,
	}
}

// Request represents checkout data. BookIDs limits the checkout to part of
// the cart; empty means the whole cart.
type Request struct {
	UserID          uuid.UUID     `json:"-"`
	PaymentMethod   string        `json:"payment_method"`
	DiscountCode    string        `json:"discount_code,omitempty"`
	BookIDs         []uuid.UUID   `json:"book_ids,omitempty"`
	ShippingAddress order.Address `json:"shipping_address"`
	Note            string        `json:"note,omitempty"`
}

// Checkout reserves stock, applies the promotion and creates a PENDING
// order in a single transaction. Nothing is kept when any step fails.
func (s *Service) Checkout(ctx context.Context, req *Request) (*order.Order, error) {
	o, err := s.checkout(ctx, req)
	metrics.RecordCheckout(outcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       o.ID,
		"order_number":   o.OrderNumber,
		"user_id":        o.UserID,
		"total":          o.Total,
		"payment_method": o.PaymentMethod,
	}).Info("Order created")

	event := events.New(events.TypeOrderCreated, o.ID.String(), map[string]interface{}{
		"order_id":       o.ID,
		"order_number":   o.OrderNumber,
		"user_id":        o.UserID,
		"subtotal":       o.Subtotal,
		"discount":       o.DiscountAmount,
		"total":          o.Total,
		"payment_method": o.PaymentMethod,
		"items":          len(o.Items),
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("order_id", o.ID).Warn("Failed to publish order.created")
	}

	return o, nil
}

func (s *Service) checkout(ctx context.Context, req *Request) (*order.Order, error) {
	method, err := order.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var created *order.Order
	err = database.WithRetry(ctx, s.db, s.txOpts, func(tx *gorm.DB) error {
		items, err := s.carts.Items(tx, req.UserID, req.BookIDs)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		bookIDs := make([]uuid.UUID, len(items))
		for i, item := range items {
			bookIDs[i] = item.BookID
		}

		books, err := s.inventory.LockBooks(tx, bookIDs)
		if err != nil {
			return err
		}

		o := &order.Order{
			ID:              uuid.New(),
			UserID:          req.UserID,
			Status:          order.OrderStatusPending,
			PaymentMethod:   method,
			ShippingAddress: req.ShippingAddress,
			Note:            req.Note,
		}

		for _, item := range items {
			b := books[item.BookID]
			line := int64(item.Quantity) * b.Price
			o.Items = append(o.Items, order.OrderItem{
				BookID:    b.ID,
				Title:     b.Title,
				Quantity:  item.Quantity,
				UnitPrice: b.Price,
				Subtotal:  line,
			})
			o.Subtotal += line
		}

		var promo *promotion.Promotion
		if req.DiscountCode != "" {
			code := promotion.NormalizeCode(req.DiscountCode)
			p, err := s.promotions.FindByCode(tx, code, true)
			if err != nil && !errors.Is(err, promotion.ErrPromotionNotFound) {
				return err
			}
			result := promotion.Validate(p, bookIDs, timeNow())
			if !result.Valid {
				return &promotion.InvalidPromotionError{Code: code, Reason: result.Reason}
			}
			promo = p
			o.DiscountAmount = promotion.Discount(o.Subtotal, result.DiscountPercent)
			o.PromotionID = &p.ID
			o.PromotionCode = p.Code
		}
		o.Total = o.Subtotal - o.DiscountAmount

		ref := inventory.Reference{Type: "order", ID: o.ID}
		for _, item := range items {
			if err := s.inventory.Decrement(tx, item.BookID, item.Quantity, ref); err != nil {
				return err
			}
		}

		o.AddStatusHistory("", order.OrderStatusPending, "Order placed", &req.UserID)
		if err := s.orders.Create(tx, o); err != nil {
			return err
		}

		if promo != nil {
			if err := s.promotions.IncrementUsage(tx, promo.ID); err != nil {
				var invalid *promotion.InvalidPromotionError
				if errors.As(err, &invalid) {
					invalid.Code = promo.Code
				}
				return err
			}
		}

		if err := s.carts.Clear(tx, req.UserID, bookIDs); err != nil {
			return err
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, promotion.ErrInvalidPromotion):
		return "invalid_promotion"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, order.ErrPaymentMethodRequired), errors.Is(err, order.ErrUnsupportedPaymentMethod):
		return "invalid_payment_method"
	default:
		return "error"
	}
}

// CheckoutSummary is a dry run of the totals for the current cart
type CheckoutSummary struct {
	Items          []order.OrderItem `json:"items"`
	Subtotal       int64             `json:"subtotal"`
	DiscountAmount int64             `json:"discount_amount"`
	Total          int64             `json:"total"`
	Promotion      *promotion.Result `json:"promotion,omitempty"`
}

// Summary prices the cart the way Checkout would without reserving anything
func (s *Service) Summary(ctx context.Context, userID uuid.UUID, bookIDs []uuid.UUID, code string) (*CheckoutSummary, error) {
	db := s.db.WithContext(ctx)

	items, err := s.carts.Items(db, userID, bookIDs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	summary := &CheckoutSummary{}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		b, err := s.inventory.Get(db, item.BookID)
		if err != nil {
			return nil, err
		}
		line := int64(item.Quantity) * b.Price
		summary.Items = append(summary.Items, order.OrderItem{
			BookID:    b.ID,
			Title:     b.Title,
			Quantity:  item.Quantity,
			UnitPrice: b.Price,
			Subtotal:  line,
		})
		summary.Subtotal += line
		ids = append(ids, b.ID)
	}

	if code != "" {
		p, err := s.promotions.FindByCode(db, code, false)
		if err != nil && !errors.Is(err, promotion.ErrPromotionNotFound) {
			return nil, fmt.Errorf("failed to look up promotion: %w", err)
		}
		result := promotion.Validate(p, ids, timeNow())
		summary.Promotion = &result
		if result.Valid {
			summary.DiscountAmount = promotion.Discount(summary.Subtotal, result.DiscountPercent)
		}
	}
	summary.Total = summary.Subtotal - summary.DiscountAmount
	return summary, nil
}

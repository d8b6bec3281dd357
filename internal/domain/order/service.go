// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"github.com/your-org/bookstore-backend/internal/pkg/events"
	"gorm.io/gorm"
)

// PaymentCanceller fails the open payment of an order that is being
// cancelled. It runs inside the cancel transaction.
type PaymentCanceller interface {
	FailPendingForOrder(tx *gorm.DB, orderID uuid.UUID, reason string) error
}

// Service handles order business logic
type Service struct {
	db        *gorm.DB
	store     *Store
	inventory *inventory.Store
	payments  PaymentCanceller
	publisher events.Publisher
	logger    logrus.FieldLogger
	txOpts    database.TxOptions
}

// NewService creates a new order service. payments may be nil when no
// gateway is configured.
func NewService(db *gorm.DB, payments PaymentCanceller, publisher events.Publisher, logger logrus.FieldLogger, txOpts database.TxOptions) *Service {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &Service{
		db:        db,
		store:     NewStore(),
		inventory: inventory.NewStore(),
		payments:  payments,
		publisher: publisher,
		logger:    logger,
		txOpts:    txOpts,
	}
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page      int         `form:"page,default=1"`
	Limit     int         `form:"limit,default=20"`
	Status    OrderStatus `form:"status"`
	UserID    uuid.UUID   `form:"-"`
	SortBy    string      `form:"sort_by,default=created_at"`
	SortOrder string      `form:"sort_order,default=desc"`
	DateFrom  string      `form:"date_from"`
	DateTo    string      `form:"date_to"`
}

// OrderResponse represents order response with pagination
type OrderResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// UpdateStatusRequest is the admin status change body
type UpdateStatusRequest struct {
	Status  OrderStatus `json:"status" binding:"required"`
	Comment string      `json:"comment"`
}

// CancelRequest carries an optional cancellation reason
type CancelRequest struct {
	Reason string `json:"reason"`
}

// Stats summarizes orders for the admin dashboard
type Stats struct {
	TotalOrders int64                 `json:"total_orders"`
	ByStatus    map[OrderStatus]int64 `json:"by_status"`
	Revenue     int64                 `json:"revenue"`
}

// GetOrders retrieves orders with pagination and filtering
func (s *Service) GetOrders(ctx context.Context, req *OrderListRequest) (*OrderResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	var orders []Order
	var total int64

	query := s.db.WithContext(ctx).Model(&Order{})

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	if req.UserID != uuid.Nil {
		query = query.Where("user_id = ?", req.UserID)
	}

	if req.DateFrom != "" {
		query = query.Where("created_at >= ?", req.DateFrom)
	}

	if req.DateTo != "" {
		query = query.Where("created_at <= ?", req.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	err := query.Preload("Items").
		Order(buildOrderClause(req.SortBy, req.SortOrder)).
		Offset(offset).Limit(req.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &OrderResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}, nil
}

// GetUserOrders retrieves a customer's own orders, newest first
func (s *Service) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderResponse, error) {
	return s.GetOrders(ctx, &OrderListRequest{
		Page:      page,
		Limit:     limit,
		UserID:    userID,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
}

// GetOrder retrieves a single order with items and history
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &o, nil
}

// GetUserOrder retrieves an order owned by userID; anyone else's order is
// reported as not found.
func (s *Service) GetUserOrder(ctx context.Context, userID, id uuid.UUID) (*Order, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// UpdateOrderStatus moves an order along the fulfilment flow. Cancelling
// goes through CancelOrder so stock is restored.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus, comment string, updatedBy *uuid.UUID) (*Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	if status == OrderStatusCancelled {
		return s.cancel(ctx, orderID, nil, comment, updatedBy)
	}

	err := database.WithRetry(ctx, s.db, s.txOpts, func(tx *gorm.DB) error {
		o, err := s.store.Lock(tx, orderID)
		if err != nil {
			return err
		}
		return s.store.Transition(tx, o, status, comment, updatedBy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("Order status updated")

	return s.GetOrder(ctx, orderID)
}

// CancelOrder cancels a customer's own order
func (s *Service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID, reason string) (*Order, error) {
	return s.cancel(ctx, orderID, &userID, reason, &userID)
}

func (s *Service) cancel(ctx context.Context, orderID uuid.UUID, owner *uuid.UUID, reason string, by *uuid.UUID) (*Order, error) {
	if reason == "" {
		reason = "Order cancelled"
	}

	var cancelled *Order
	err := database.WithRetry(ctx, s.db, s.txOpts, func(tx *gorm.DB) error {
		o, err := s.store.Lock(tx, orderID)
		if err != nil {
			return err
		}
		if owner != nil && o.UserID != *owner {
			return ErrOrderNotFound
		}
		if !o.CanBeCancelled() {
			return fmt.Errorf("%w: status is %s", ErrOrderNotCancellable, o.Status)
		}

		ref := inventory.Reference{Type: "order", ID: o.ID}
		for _, item := range o.Items {
			if err := s.inventory.Restore(tx, item.BookID, item.Quantity, ref); err != nil {
				return err
			}
		}

		if s.payments != nil {
			if err := s.payments.FailPendingForOrder(tx, o.ID, "ORDER_CANCELLED"); err != nil {
				return err
			}
		}

		if err := s.store.Transition(tx, o, OrderStatusCancelled, reason, by); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     cancelled.ID,
		"order_number": cancelled.OrderNumber,
	}).Info("Order cancelled")

	event := events.New(events.TypeOrderCancelled, cancelled.ID.String(), map[string]interface{}{
		"order_id":     cancelled.ID,
		"order_number": cancelled.OrderNumber,
		"user_id":      cancelled.UserID,
		"reason":       reason,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("order_id", cancelled.ID).Warn("Failed to publish order.cancelled")
	}

	return s.GetOrder(ctx, orderID)
}

// GetStats counts orders per status. Revenue sums orders that were paid or
// accepted for delivery, i.e. everything outside PENDING and CANCELLED.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Status OrderStatus
		Count  int64
		Amount int64
	}
	err := s.db.WithContext(ctx).Model(&Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS amount").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute order stats: %w", err)
	}

	stats := &Stats{ByStatus: make(map[OrderStatus]int64, len(rows))}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
		stats.TotalOrders += r.Count
		if r.Status != OrderStatusPending && r.Status != OrderStatusCancelled {
			stats.Revenue += r.Amount
		}
	}
	return stats, nil
}

func buildOrderClause(sortBy, sortOrder string) string {
	validSortFields := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"total":        true,
		"status":       true,
		"order_number": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}

	return fmt.Sprintf("%s %s", sortBy, sortOrder)
}

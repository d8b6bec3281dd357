package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the order access shared by checkout, payment reconciliation and
// the order service. Every method runs on the caller's transaction.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Create inserts the order together with its items and status history
func (s *Store) Create(tx *gorm.DB, o *Order) error {
	if err := tx.Create(o).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// Lock loads the order row FOR UPDATE, items included
func (s *Store) Lock(tx *gorm.DB, id uuid.UUID) (*Order, error) {
	var o Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if err := tx.Where("order_id = ?", o.ID).Order("created_at, id").Find(&o.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return &o, nil
}

// Transition moves o to status `to` and records the change. The update is
// conditional on the status o was read with, so a concurrent change makes
// it fail instead of silently overwriting.
func (s *Store) Transition(tx *gorm.DB, o *Order, to OrderStatus, comment string, by *uuid.UUID) error {
	from := o.Status
	if !from.CanTransitionTo(to) {
		return &InvalidTransitionError{From: from, To: to}
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case OrderStatusConfirmed:
		updates["confirmed_at"] = now
	case OrderStatusShipped:
		updates["shipped_at"] = now
	case OrderStatusDelivered:
		updates["delivered_at"] = now
	case OrderStatusCancelled:
		updates["cancelled_at"] = now
	}

	res := tx.Model(&Order{}).Where("id = ? AND status = ?", o.ID, from).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &InvalidTransitionError{From: from, To: to}
	}

	history := OrderStatusHistory{
		OrderID:    o.ID,
		FromStatus: from,
		Status:     to,
		Comment:    comment,
		CreatedBy:  by,
	}
	if err := tx.Create(&history).Error; err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}

	o.Status = to
	o.UpdatedAt = now
	switch to {
	case OrderStatusConfirmed:
		o.ConfirmedAt = &now
	case OrderStatusShipped:
		o.ShippedAt = &now
	case OrderStatusDelivered:
		o.DeliveredAt = &now
	case OrderStatusCancelled:
		o.CancelledAt = &now
	}
	o.StatusHistory = append(o.StatusHistory, history)
	return nil
}

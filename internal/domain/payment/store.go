package payment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the payment access used inside create and callback transactions
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

// Save inserts a new payment or writes back a changed one
func (s *Store) Save(tx *gorm.DB, p *Payment) error {
	if err := tx.Save(p).Error; err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// FindByTransactionID loads a payment, optionally FOR UPDATE
func (s *Store) FindByTransactionID(tx *gorm.DB, txid string, lock bool) (*Payment, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p Payment
	if err := q.Where("transaction_id = ?", txid).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

// FindPendingByOrder returns the order's open payment, or nil
func (s *Store) FindPendingByOrder(tx *gorm.DB, orderID uuid.UUID) (*Payment, error) {
	var p Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND status = ?", orderID, StatusPending).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending payment: %w", err)
	}
	return &p, nil
}

// ListByOrder returns every attempt for an order, newest first
func (s *Store) ListByOrder(tx *gorm.DB, orderID uuid.UUID) ([]Payment, error) {
	var payments []Payment
	if err := tx.Where("order_id = ?", orderID).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// FailPendingForOrder closes the order's open payment, if any. The order
// service calls it while cancelling.
func (s *Store) FailPendingForOrder(tx *gorm.DB, orderID uuid.UUID, reason string) error {
	p, err := s.FindPendingByOrder(tx, orderID)
	if err != nil || p == nil {
		return err
	}
	if err := p.Fail("", reason, "Order cancelled before payment"); err != nil {
		return err
	}
	return s.Save(tx, p)
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	redislock "github.com/your-org/bookstore-backend/internal/infrastructure/database/redis"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"github.com/your-org/bookstore-backend/internal/pkg/events"
	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
	"gorm.io/gorm"
)

// Locker serializes callback processing per transaction id across instances
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(context.Context) error, error)
}

// Result is the outcome of one callback. Duplicate is set when the payment
// had already reached a terminal state and nothing changed.
type Result struct {
	Payment   *Payment
	Duplicate bool
	Callback  gateway.CallbackResult
}

// Reconciler applies gateway callbacks exactly once
type Reconciler struct {
	db        *gorm.DB
	registry  *gateway.Registry
	store     *Store
	orders    *order.Store
	locker    Locker
	publisher events.Publisher
	logger    logrus.FieldLogger
	txOpts    database.TxOptions
	lockTTL   time.Duration
	lockWait  time.Duration
	now       func() time.Time
}

// ReconcilerConfig holds the callback lock timings
type ReconcilerConfig struct {
	LockTTL  time.Duration
	LockWait time.Duration
	TxOpts   database.TxOptions
}

// NewReconciler wires the reconciler. A nil locker leaves the payment row
// lock as the only guard, which is enough on a single instance.
func NewReconciler(db *gorm.DB, registry *gateway.Registry, locker Locker, publisher events.Publisher, logger logrus.FieldLogger, cfg ReconcilerConfig) *Reconciler {
	if publisher == nil {
		publisher = events.Nop()
	}
	return &Reconciler{
		db:        db,
		registry:  registry,
		store:     NewStore(),
		orders:    order.NewStore(),
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		txOpts:    cfg.TxOpts,
		lockTTL:   cfg.LockTTL,
		lockWait:  cfg.LockWait,
		now:       time.Now,
	}
}

// Handle verifies a callback and applies it. Nothing is written unless the
// signature checks out and the amount matches the payment.
func (r *Reconciler) Handle(ctx context.Context, g gateway.Gateway, raw gateway.RawCallback) (*Result, error) {
	adapter, err := r.registry.Get(g)
	if err != nil {
		metrics.RecordCallback(string(g), "unknown_gateway")
		return nil, err
	}

	cb, err := adapter.VerifyCallback(raw)
	if err != nil {
		outcome := "malformed"
		if errors.Is(err, gateway.ErrInvalidSignature) {
			outcome = "invalid_signature"
		}
		metrics.RecordCallback(string(g), outcome)
		r.logger.WithError(err).WithField("gateway", g).Warn("Rejected payment callback")
		return nil, err
	}

	log := r.logger.WithFields(logrus.Fields{
		"gateway":        g,
		"transaction_id": cb.TransactionID,
		"response_code":  cb.ResponseCode,
	})

	release, err := r.lock(ctx, cb.TransactionID, log)
	if err != nil {
		metrics.RecordCallback(string(g), "error")
		return nil, fmt.Errorf("failed to lock payment %s: %w", cb.TransactionID, err)
	}
	defer release()

	var result *Result
	var confirmed *order.Order
	err = database.WithRetry(ctx, r.db, r.txOpts, func(tx *gorm.DB) error {
		result, confirmed = nil, nil

		// Order row before payment row, as in cancel and CreatePayment.
		found, err := r.store.FindByTransactionID(tx, cb.TransactionID, false)
		if err != nil {
			return err
		}
		o, err := r.orders.Lock(tx, found.OrderID)
		if err != nil {
			return err
		}
		p, err := r.store.FindByTransactionID(tx, cb.TransactionID, true)
		if err != nil {
			return err
		}
		if p.Gateway != g {
			return fmt.Errorf("%w: payment %s belongs to %s", ErrPaymentNotFound, p.TransactionID, p.Gateway)
		}

		if p.Status.IsTerminal() {
			result = &Result{Payment: p, Duplicate: true, Callback: cb}
			return nil
		}

		if cb.Amount != p.Amount {
			return fmt.Errorf("%w: callback %d, payment %d", ErrAmountMismatch, cb.Amount, p.Amount)
		}

		if cb.Success {
			if err := p.Complete(cb.GatewayTransactionNo, cb.ResponseCode, cb.Message, r.now().UTC()); err != nil {
				return err
			}
		} else if err := p.Fail(cb.GatewayTransactionNo, cb.ResponseCode, cb.Message); err != nil {
			return err
		}
		if err := r.store.Save(tx, p); err != nil {
			return err
		}

		if p.Status == StatusCompleted {
			if o.Status == order.OrderStatusPending {
				comment := fmt.Sprintf("Payment %s received via %s", p.TransactionID, g)
				if err := r.orders.Transition(tx, o, order.OrderStatusConfirmed, comment, nil); err != nil {
					return err
				}
				confirmed = o
			} else {
				log.WithField("order_status", o.Status).Warn("Payment completed for an order that is no longer pending")
			}
		}

		result = &Result{Payment: p, Callback: cb}
		return nil
	})
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			outcome = "not_found"
		case errors.Is(err, ErrAmountMismatch):
			outcome = "amount_mismatch"
		}
		metrics.RecordCallback(string(g), outcome)
		log.WithError(err).Warn("Payment callback not applied")
		return nil, err
	}

	if result.Duplicate {
		metrics.RecordCallback(string(g), "duplicate")
		log.WithField("status", result.Payment.Status).Info("Duplicate payment callback ignored")
		return result, nil
	}

	p := result.Payment
	metrics.RecordCallback(string(g), string(p.Status))
	log.WithFields(logrus.Fields{
		"order_id": p.OrderID,
		"status":   p.Status,
	}).Info("Payment callback applied")

	eventType := events.TypePaymentFailed
	if p.Status == StatusCompleted {
		eventType = events.TypePaymentCompleted
	}
	data := map[string]interface{}{
		"transaction_id":         p.TransactionID,
		"order_id":               p.OrderID,
		"gateway":                p.Gateway,
		"amount":                 p.Amount,
		"status":                 p.Status,
		"gateway_transaction_no": p.GatewayTransactionNo,
		"response_code":          p.ResponseCode,
	}
	if confirmed != nil {
		data["order_number"] = confirmed.OrderNumber
		data["order_status"] = confirmed.Status
	}
	if err := r.publisher.Publish(ctx, events.New(eventType, p.OrderID.String(), data)); err != nil {
		log.WithError(err).Warn("Failed to publish payment event")
	}

	return result, nil
}

// lock takes the cross-instance callback lock. When Redis itself is
// unreachable the callback proceeds under the row locks alone; only a lock
// still held by someone else after the wait, or a cancelled request, fails.
func (r *Reconciler) lock(ctx context.Context, txid string, log logrus.FieldLogger) (func(), error) {
	noop := func() {}
	if r.locker == nil {
		return noop, nil
	}

	release, err := r.locker.Acquire(ctx, "payment:lock:"+txid, r.lockTTL, r.lockWait)
	switch {
	case err == nil:
		return func() {
			if err := release(context.Background()); err != nil {
				log.WithError(err).Warn("Failed to release payment lock")
			}
		}, nil
	case errors.Is(err, redislock.ErrLockNotAcquired), ctx.Err() != nil:
		return nil, err
	default:
		log.WithError(err).Warn("Payment lock unavailable, relying on row locks")
		return noop, nil
	}
}

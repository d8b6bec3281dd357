package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"github.com/your-org/bookstore-backend/internal/pkg/database/dbtest"
	"github.com/your-org/bookstore-backend/internal/pkg/events"
	"github.com/your-org/bookstore-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

const (
	vnpaySecret = "VNPAYSECRET"
	zaloKey1    = "key1-secret"
	zaloKey2    = "key2-secret"
)

// fakeMoMo stands in for an HTTP gateway
type fakeMoMo struct {
	mu    sync.Mutex
	calls []gateway.PaymentRequest
	err   error
}

func (f *fakeMoMo) Name() gateway.Gateway { return gateway.MoMo }

func (f *fakeMoMo) CreatePaymentRequest(_ context.Context, req gateway.PaymentRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	return "https://momo.example/pay/" + req.TransactionID, nil
}

func (f *fakeMoMo) VerifyCallback(gateway.RawCallback) (gateway.CallbackResult, error) {
	return gateway.CallbackResult{}, errors.New("not used")
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
	momo      *fakeMoMo
	vnpay     *gateway.VNPayAdapter
	registry  *gateway.Registry
	publisher *capturePublisher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&book.Book{}, &inventory.Movement{},
		&order.Order{}, &order.OrderItem{}, &order.OrderStatusHistory{},
		&Payment{},
	)

	vnpay := gateway.NewVNPay(config.VNPayConfig{
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example/return",
		TmnCode:    "TESTTMN1",
		HashSecret: vnpaySecret,
		Version:    "2.1.0",
		Command:    "pay",
		OrderType:  "other",
	})
	zalopay := gateway.NewZaloPay(config.ZaloPayConfig{
		AppID: "2553",
		Key1:  zaloKey1,
		Key2:  zaloKey2,
	}, gateway.NewHTTPClient(time.Second))
	momo := &fakeMoMo{}
	registry := gateway.NewRegistry(vnpay, zalopay, momo)

	return &fixture{
		db:        db,
		svc:       NewService(db, registry, logger.Discard(), database.DefaultTxOptions(), 15*time.Minute),
		momo:      momo,
		vnpay:     vnpay,
		registry:  registry,
		publisher: &capturePublisher{},
	}
}

func (f *fixture) reconciler(locker Locker) *Reconciler {
	return NewReconciler(f.db, f.registry, locker, f.publisher, logger.Discard(), ReconcilerConfig{
		LockTTL:  5 * time.Second,
		LockWait: 5 * time.Second,
		TxOpts:   database.DefaultTxOptions(),
	})
}

func (f *fixture) order(t *testing.T, userID uuid.UUID, total int64) *order.Order {
	t.Helper()
	o := &order.Order{
		UserID:        userID,
		Status:        order.OrderStatusPending,
		PaymentMethod: order.PaymentMethodCOD,
		Subtotal:      total,
		Total:         total,
	}
	require.NoError(t, order.NewStore().Create(f.db, o))
	return o
}

func (f *fixture) reload(t *testing.T, txid string) *Payment {
	t.Helper()
	p, err := NewStore().FindByTransactionID(f.db, txid, false)
	require.NoError(t, err)
	return p
}

func (f *fixture) orderStatus(t *testing.T, id uuid.UUID) order.OrderStatus {
	t.Helper()
	var o order.Order
	require.NoError(t, f.db.First(&o, "id = ?", id).Error)
	return o.Status
}

func (f *fixture) history(t *testing.T, id uuid.UUID, status order.OrderStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&order.OrderStatusHistory{}).
		Where("order_id = ? AND status = ?", id, status).Count(&n).Error)
	return n
}

func (f *fixture) vnpayCallback(txid string, amount int64, code, status string) gateway.RawCallback {
	q := url.Values{}
	q.Set("vnp_TmnCode", "TESTTMN1")
	q.Set("vnp_Amount", itoa(amount*100))
	q.Set("vnp_ResponseCode", code)
	q.Set("vnp_TransactionStatus", status)
	q.Set("vnp_TransactionNo", "14123456")
	q.Set("vnp_TxnRef", txid)
	q.Set("vnp_SecureHash", f.vnpay.Sign(q))
	return gateway.RawCallback{Query: q}
}

func zaloPayCallback(t *testing.T, txid string, amount int64) gateway.RawCallback {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"app_id":       2553,
		"app_trans_id": gateway.AppTransID(txid, time.Now()),
		"amount":       amount,
		"zp_trans_id":  240301000000123,
		"server_time":  time.Now().UnixMilli(),
	})
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte(zaloKey2))
	mac.Write(data)
	body, err := json.Marshal(map[string]interface{}{
		"data": string(data),
		"mac":  hex.EncodeToString(mac.Sum(nil)),
		"type": 1,
	})
	require.NoError(t, err)
	return gateway.RawCallback{Body: body}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

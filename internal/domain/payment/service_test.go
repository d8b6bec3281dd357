package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
)

func TestTransactionIDFormat(t *testing.T) {
	at := time.UnixMilli(1772334000123)
	txid, err := newTransactionID(at)
	require.NoError(t, err)
	assert.Regexp(t, `^PAY_[A-Z0-9]{8}_1772334000123$`, txid)

	parsed, err := ParseTransactionID(txid)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id, err := NewTransactionID()
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate transaction id %s", id)
		seen[id] = true
	}
}

func TestParseTransactionIDRejectsGarbage(t *testing.T) {
	for _, txid := range []string{"", "PAY_abc_123", "PAY_ABCDEFGH_12", "ORD_ABCDEFGH_1772334000123"} {
		_, err := ParseTransactionID(txid)
		assert.ErrorIs(t, err, ErrInvalidTransactionID, txid)
	}
}

func TestPaymentStateMachine(t *testing.T) {
	p := &Payment{Status: StatusPending}
	require.NoError(t, p.Complete("123", "00", "ok", time.Now()))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.NotNil(t, p.PaidAt)

	assert.ErrorIs(t, p.Fail("", "24", "cancelled"), ErrPaymentTerminal)
	assert.ErrorIs(t, p.Complete("", "00", "", time.Now()), ErrPaymentTerminal)
	assert.Equal(t, StatusCompleted, p.Status)

	q := &Payment{Status: StatusPending}
	require.NoError(t, q.Fail("", CodeExpired, "expired"))
	assert.True(t, q.Status.IsTerminal())
	assert.Nil(t, q.PaidAt)
}

func TestCreatePaymentReusesOpenAttempt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	o := f.order(t, userID, 150000)

	first, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Equal(t, int64(150000), first.Amount)
	assert.Contains(t, first.RedirectURL, first.TransactionID)

	second, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, Amount: 150000, UserID: userID, Gateway: gateway.MoMo})
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.TransactionID, second.TransactionID)

	payments, err := f.svc.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Len(t, f.momo.calls, 2)

	var stored order.Order
	require.NoError(t, f.db.First(&stored, "id = ?", o.ID).Error)
	assert.Equal(t, order.PaymentMethodMoMo, stored.PaymentMethod)
}

func TestCreatePaymentReplacesExpiredAttempt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	o := f.order(t, userID, 90000)

	first, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	second, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	require.NoError(t, err)
	assert.False(t, second.Reused)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)

	old := f.reload(t, first.TransactionID)
	assert.Equal(t, StatusFailed, old.Status)
	assert.Equal(t, CodeExpired, old.ResponseCode)
	assert.Equal(t, StatusPending, f.reload(t, second.TransactionID).Status)
}

func TestCreatePaymentSupersedesOtherGateway(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	o := f.order(t, userID, 90000)

	viaVNPay, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.VNPay, ClientIP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Contains(t, viaVNPay.RedirectURL, "vnp_SecureHash=")

	viaMoMo, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	require.NoError(t, err)
	assert.False(t, viaMoMo.Reused)

	old := f.reload(t, viaVNPay.TransactionID)
	assert.Equal(t, StatusFailed, old.Status)
	assert.Equal(t, CodeSuperseded, old.ResponseCode)

	var pending int64
	require.NoError(t, f.db.Model(&Payment{}).Where("order_id = ? AND status = ?", o.ID, StatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestCreatePaymentValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	o := f.order(t, userID, 50000)

	_, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, Amount: 49999, UserID: userID, Gateway: gateway.MoMo})
	assert.ErrorIs(t, err, ErrAmountMismatch)

	_, err = f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: uuid.New(), Gateway: gateway.MoMo})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = f.svc.CreatePayment(ctx, &CreateRequest{OrderID: uuid.New(), UserID: userID, Gateway: gateway.MoMo})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.Gateway("PAYPAL")})
	assert.ErrorIs(t, err, gateway.ErrUnknownGateway)

	require.NoError(t, f.db.Model(&order.Order{}).Where("id = ?", o.ID).Update("status", order.OrderStatusConfirmed).Error)
	_, err = f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	assert.ErrorIs(t, err, ErrOrderNotPayable)

	var count int64
	require.NoError(t, f.db.Model(&Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreatePaymentGatewayFailureKeepsPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	o := f.order(t, userID, 70000)

	f.momo.err = gateway.ErrGatewayUnavailable
	_, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)

	payments, err := f.svc.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, StatusPending, payments[0].Status)

	f.momo.err = nil
	res, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, payments[0].TransactionID, res.TransactionID)
}

func TestGetByTransactionIDHidesOtherUsers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	o := f.order(t, userID, 70000)

	res, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.MoMo})
	require.NoError(t, err)

	view, err := f.svc.GetByTransactionID(ctx, res.TransactionID, &userID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, view.OrderNumber)
	assert.Equal(t, order.OrderStatusPending, view.OrderStatus)

	stranger := uuid.New()
	_, err = f.svc.GetByTransactionID(ctx, res.TransactionID, &stranger)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	view, err = f.svc.GetByTransactionID(ctx, res.TransactionID, nil)
	require.NoError(t, err)
	assert.Equal(t, res.TransactionID, view.Payment.TransactionID)

	_, err = f.svc.GetByTransactionID(ctx, "PAY_NOPE0000_1772334000000", nil)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestQueryGatewayRequiresQuerier(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	userID := uuid.New()
	o := f.order(t, userID, 70000)

	res, err := f.svc.CreatePayment(ctx, &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.VNPay})
	require.NoError(t, err)

	_, err = f.svc.QueryGateway(ctx, res.TransactionID)
	assert.ErrorIs(t, err, gateway.ErrUnknownGateway)
}

func TestCreatePaymentRejectsZeroTotal(t *testing.T) {
	f := setup(t)
	userID := uuid.New()
	o := f.order(t, userID, 0)

	_, err := f.svc.CreatePayment(context.Background(), &CreateRequest{OrderID: o.ID, UserID: userID, Gateway: gateway.VNPay})
	assert.ErrorIs(t, err, ErrNothingToPay)

	var count int64
	require.NoError(t, f.db.Model(&Payment{}).Where("order_id = ?", o.ID).Count(&count).Error)
	assert.Zero(t, count)
}

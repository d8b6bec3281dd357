package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/checkout"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	"github.com/your-org/bookstore-backend/internal/domain/promotion"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"github.com/your-org/bookstore-backend/internal/pkg/database/dbtest"
	"github.com/your-org/bookstore-backend/internal/pkg/logger"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubGateway answers CreatePaymentRequest with a fixed URL or err
type stubGateway struct {
	name      gateway.Gateway
	err       error
	verifyErr error
}

func (s *stubGateway) Name() gateway.Gateway { return s.name }

func (s *stubGateway) CreatePaymentRequest(_ context.Context, req gateway.PaymentRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://pay.example/" + req.TransactionID, nil
}

func (s *stubGateway) VerifyCallback(gateway.RawCallback) (gateway.CallbackResult, error) {
	return gateway.CallbackResult{}, s.verifyErr
}

type testEnv struct {
	db     *gorm.DB
	router *gin.Engine
	jwt    *auth.JWTManager
	vnpay  *gateway.VNPayAdapter
	momo   *stubGateway
	carts  *cart.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t,
		&book.Book{}, &inventory.Movement{},
		&promotion.Promotion{}, &promotion.PromotionBook{},
		&cart.Cart{}, &cart.CartItem{},
		&order.Order{}, &order.OrderItem{}, &order.OrderStatusHistory{},
		&payment.Payment{},
	)

	vnpay := gateway.NewVNPay(config.VNPayConfig{
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://shop.example/return",
		TmnCode:    "TESTTMN1",
		HashSecret: "VNPAYSECRET",
		Version:    "2.1.0",
		Command:    "pay",
		OrderType:  "other",
	})
	zalopay := gateway.NewZaloPay(config.ZaloPayConfig{AppID: "2553", Key1: "key1", Key2: "key2"}, gateway.NewHTTPClient(time.Second))
	momo := &stubGateway{name: gateway.MoMo, verifyErr: gateway.ErrInvalidSignature}
	registry := gateway.NewRegistry(vnpay, zalopay, momo)

	log := logger.Discard()
	txOpts := database.DefaultTxOptions()
	carts := cart.NewService(db)
	payments := payment.NewService(db, registry, log, txOpts, 15*time.Minute)
	reconciler := payment.NewReconciler(db, registry, nil, nil, log, payment.ReconcilerConfig{
		LockTTL:  time.Second,
		LockWait: time.Second,
		TxOpts:   txOpts,
	})
	orders := order.NewService(db, payment.NewStore(), nil, log, txOpts)

	jwtManager := auth.NewJWTManager(config.JWTConfig{Secret: "handler-test-secret"})

	r := gin.New()
	api := r.Group("/api/v1")

	callbacks := NewCallbackHandler(reconciler)
	api.GET("/payments/vnpay/ipn", callbacks.VNPayIPN)
	api.GET("/payments/vnpay/return", callbacks.VNPayReturn)
	api.POST("/payments/zalopay/callback", callbacks.ZaloPayCallback)
	api.POST("/payments/momo/ipn", callbacks.MoMoIPN)

	user := api.Group("")
	user.Use(middleware.AuthMiddleware(jwtManager))
	checkouts := NewCheckoutHandler(checkout.NewService(db, nil, log, txOpts), payments, log)
	user.POST("/checkout", checkouts.Checkout)
	user.POST("/checkout/:gateway", checkouts.CheckoutAndPay)
	paymentHandler := NewPaymentHandler(payments)
	user.POST("/payments/:gateway", paymentHandler.CreatePayment)
	user.GET("/payments/:transactionId", paymentHandler.GetPayment)
	orderHandler := NewOrderHandler(orders)
	user.GET("/orders/:id", orderHandler.GetOrder)
	user.POST("/orders/:id/cancel", orderHandler.CancelOrder)

	return &testEnv{db: db, router: r, jwt: jwtManager, vnpay: vnpay, momo: momo, carts: carts}
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := e.jwt.GenerateToken(userID, "buyer@example.com", nil, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// fillCart stocks a book and puts qty copies in the user's cart
func (e *testEnv) fillCart(t *testing.T, userID uuid.UUID, price int64, qty int) *book.Book {
	t.Helper()
	b := &book.Book{Title: "Tắt Đèn", Author: "Ngô Tất Tố", ISBN: uuid.NewString()[:13], Price: price, StockQuantity: 10}
	require.NoError(t, e.db.Create(b).Error)
	_, err := e.carts.AddToCart(context.Background(), userID, &cart.AddToCartRequest{BookID: b.ID, Quantity: qty})
	require.NoError(t, err)
	return b
}

var shipping = gin.H{
	"shipping_address": gin.H{
		"recipient_name": "Nguyen Van A",
		"phone":          "0901234567",
		"address_line":   "12 Nguyen Hue",
		"city":           "Ho Chi Minh",
	},
}

type checkoutPayResponse struct {
	Error string `json:"error"`
	Data  struct {
		Order struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
			Total  int64     `json:"total"`
		} `json:"order"`
		Payment payment.CreateResult `json:"payment"`
	} `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (e *testEnv) vnpayQuery(txid string, amount int64, code string) string {
	q := url.Values{}
	q.Set("vnp_TmnCode", "TESTTMN1")
	q.Set("vnp_Amount", fmt.Sprintf("%d", amount*100))
	q.Set("vnp_ResponseCode", code)
	q.Set("vnp_TransactionStatus", code)
	q.Set("vnp_TransactionNo", "14123456")
	q.Set("vnp_TxnRef", txid)
	q.Set("vnp_SecureHash", e.vnpay.Sign(q))
	return q.Encode()
}

func TestStatusForMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{checkout.ErrEmptyCart, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", order.ErrOrderNotFound), http.StatusNotFound},
		{payment.ErrOrderNotPayable, http.StatusConflict},
		{fmt.Errorf("create: %w", payment.ErrNothingToPay), http.StatusConflict},
		{gateway.ErrInvalidAmount, http.StatusBadRequest},
		{gateway.ErrGatewayUnavailable, http.StatusBadGateway},
		{gateway.ErrUnknownGateway, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Len(t, c.Errors, 1)
}

func TestCheckoutRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/checkout", "", shipping)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	body := gin.H{"payment_method": "COD", "shipping_address": shipping["shipping_address"]}

	w := env.do(t, http.MethodPost, "/api/v1/checkout", env.token(t, uuid.New()), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "cart is empty")
}

func TestCheckoutRequiresPaymentMethod(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.fillCart(t, userID, 50000, 1)

	w := env.do(t, http.MethodPost, "/api/v1/checkout", env.token(t, userID), shipping)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutAndPayWithVNPay(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.fillCart(t, userID, 75000, 2)

	w := env.do(t, http.MethodPost, "/api/v1/checkout/vnpay", env.token(t, userID), shipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp checkoutPayResponse
	decode(t, w, &resp)
	assert.Equal(t, string(order.OrderStatusPending), resp.Data.Order.Status)
	assert.Equal(t, int64(150000), resp.Data.Order.Total)
	assert.Equal(t, int64(150000), resp.Data.Payment.Amount)
	assert.True(t, strings.HasPrefix(resp.Data.Payment.RedirectURL, "https://sandbox.vnpayment.vn/"))
	assert.True(t, strings.HasPrefix(resp.Data.Payment.TransactionID, "PAY_"))
}

func TestCheckoutAndPayUnknownGateway(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.fillCart(t, userID, 75000, 1)

	w := env.do(t, http.MethodPost, "/api/v1/checkout/paypal", env.token(t, userID), shipping)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, env.db.Model(&order.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutAndPayGatewayDownKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	env.momo.err = fmt.Errorf("%w: connection reset", gateway.ErrGatewayUnavailable)
	userID := uuid.New()
	env.fillCart(t, userID, 99000, 1)

	w := env.do(t, http.MethodPost, "/api/v1/checkout/momo", env.token(t, userID), shipping)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())

	var resp checkoutPayResponse
	decode(t, w, &resp)
	require.NotEqual(t, uuid.Nil, resp.Data.Order.ID)
	assert.Equal(t, string(order.OrderStatusPending), resp.Data.Order.Status)

	// retry once the gateway is back
	env.momo.err = nil
	w = env.do(t, http.MethodPost, "/api/v1/payments/momo", env.token(t, userID), gin.H{"orderId": resp.Data.Order.ID})
	assert.Contains(t, []int{http.StatusOK, http.StatusCreated}, w.Code, w.Body.String())
}

func TestCreatePaymentForSomeoneElsesOrder(t *testing.T) {
	env := newTestEnv(t)
	owner := uuid.New()
	env.fillCart(t, owner, 30000, 1)

	w := env.do(t, http.MethodPost, "/api/v1/checkout", env.token(t, owner), gin.H{
		"payment_method":   "VNPAY",
		"shipping_address": shipping["shipping_address"],
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data order.Order `json:"data"`
	}
	decode(t, w, &created)

	w = env.do(t, http.MethodPost, "/api/v1/payments/vnpay", env.token(t, uuid.New()), gin.H{"orderId": created.Data.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVNPayIPNResponseCodes(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.fillCart(t, userID, 120000, 1)

	w := env.do(t, http.MethodPost, "/api/v1/checkout/vnpay", env.token(t, userID), shipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp checkoutPayResponse
	decode(t, w, &resp)
	txid := resp.Data.Payment.TransactionID

	ipn := func(query string) string {
		w := env.do(t, http.MethodGet, "/api/v1/payments/vnpay/ipn?"+query, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			RspCode string `json:"RspCode"`
		}
		decode(t, w, &body)
		return body.RspCode
	}

	tampered := strings.Replace(env.vnpayQuery(txid, 120000, "00"), "vnp_Amount=12000000", "vnp_Amount=100", 1)
	assert.Equal(t, "97", ipn(tampered))
	assert.Equal(t, "01", ipn(env.vnpayQuery("PAY_ABCDEFGH_1772334000000", 120000, "00")))
	assert.Equal(t, "04", ipn(env.vnpayQuery(txid, 1000, "00")))
	assert.Equal(t, "00", ipn(env.vnpayQuery(txid, 120000, "00")))
	assert.Equal(t, "02", ipn(env.vnpayQuery(txid, 120000, "00")))

	w = env.do(t, http.MethodGet, "/api/v1/orders/"+resp.Data.Order.ID.String(), env.token(t, userID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(order.OrderStatusConfirmed))

	w = env.do(t, http.MethodGet, "/api/v1/payments/"+txid, env.token(t, userID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(payment.StatusCompleted))
}

func TestVNPayReturnSettlesLikeIPN(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	env.fillCart(t, userID, 64000, 1)

	w := env.do(t, http.MethodPost, "/api/v1/checkout/vnpay", env.token(t, userID), shipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp checkoutPayResponse
	decode(t, w, &resp)

	w = env.do(t, http.MethodGet, "/api/v1/payments/vnpay/return?"+env.vnpayQuery(resp.Data.Payment.TransactionID, 64000, "24"), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var ret struct {
		Data struct {
			Status  string `json:"status"`
			Success bool   `json:"success"`
		} `json:"data"`
	}
	decode(t, w, &ret)
	assert.False(t, ret.Data.Success)
	assert.Equal(t, string(payment.StatusFailed), ret.Data.Status)
}

func TestZaloPayCallbackBadMAC(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/payments/zalopay/callback", "", gin.H{
		"data": `{"app_trans_id":"260301_PAY_ABCDEFGH_1772334000000","amount":1000}`,
		"mac":  "deadbeef",
		"type": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ReturnCode int `json:"return_code"`
	}
	decode(t, w, &body)
	assert.Equal(t, -1, body.ReturnCode)
}

func TestZaloPayCallbackMalformed(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/zalopay/callback", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"return_code":-1`)
	assert.Contains(t, w.Body.String(), `"return_message":"invalid callback"`)
}

func TestZaloPayCallbackUnknownTransactionIsFinal(t *testing.T) {
	env := newTestEnv(t)
	data := `{"app_id":2553,"app_trans_id":"260301_PAY_ABCDEFGH_1772334000000","amount":1000,"zp_trans_id":240301000000123}`
	mac := hmac.New(sha256.New, []byte("key2"))
	mac.Write([]byte(data))

	w := env.do(t, http.MethodPost, "/api/v1/payments/zalopay/callback", "", gin.H{
		"data": data,
		"mac":  hex.EncodeToString(mac.Sum(nil)),
		"type": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ReturnCode    int    `json:"return_code"`
		ReturnMessage string `json:"return_message"`
	}
	decode(t, w, &body)
	assert.Equal(t, -1, body.ReturnCode)
	assert.Equal(t, "transaction not found", body.ReturnMessage)
}

func TestZaloPayRejectionCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{fmt.Errorf("verify: %w", gateway.ErrInvalidSignature), -1, "mac not equal"},
		{fmt.Errorf("lookup: %w", payment.ErrPaymentNotFound), -1, "transaction not found"},
		{fmt.Errorf("check: %w", payment.ErrAmountMismatch), -1, "amount mismatch"},
		{fmt.Errorf("decode: %w", gateway.ErrMalformedCallback), -1, "invalid callback"},
		{errors.New("connection reset by peer"), 0, "internal error, retry later"},
		{context.DeadlineExceeded, 0, "internal error, retry later"},
	}
	for _, tt := range tests {
		code, msg := zaloPayRejection(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.msg, msg, tt.err.Error())
	}
}

func TestMoMoIPNRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/payments/momo/ipn", "", gin.H{"orderId": "PAY_ABCDEFGH_1772334000000"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestCancelOrderFailsOpenPayment(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	b := env.fillCart(t, userID, 45000, 3)

	w := env.do(t, http.MethodPost, "/api/v1/checkout/momo", env.token(t, userID), shipping)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp checkoutPayResponse
	decode(t, w, &resp)

	w = env.do(t, http.MethodPost, "/api/v1/orders/"+resp.Data.Order.ID.String()+"/cancel", env.token(t, userID), gin.H{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p payment.Payment
	require.NoError(t, env.db.Where("transaction_id = ?", resp.Data.Payment.TransactionID).First(&p).Error)
	assert.Equal(t, payment.StatusFailed, p.Status)

	var restocked book.Book
	require.NoError(t, env.db.First(&restocked, "id = ?", b.ID).Error)
	assert.Equal(t, 10, restocked.StockQuantity)

	// cancelling twice is a conflict
	w = env.do(t, http.MethodPost, "/api/v1/orders/"+resp.Data.Order.ID.String()+"/cancel", env.token(t, userID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetOrderInvalidID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", env.token(t, uuid.New()), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/pkg/database/dbtest"
	"github.com/your-org/bookstore-backend/internal/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "bookstore-api", Version: "test", Environment: "test"},
		Server: config.ServerConfig{
			Port:           "0",
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		JWT: config.JWTConfig{Secret: "server-test-secret"},
		Security: config.SecurityConfig{
			RateLimitPerMinute: 1000,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		},
		Payment: config.PaymentConfig{
			PendingTTL:      15 * time.Minute,
			GatewayTimeout:  time.Second,
			CallbackLockTTL: time.Second,
			LockWait:        time.Second,
			VNPay: config.VNPayConfig{
				Enabled:    true,
				PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
				ReturnURL:  "https://shop.example/return",
				TmnCode:    "TESTTMN1",
				HashSecret: "VNPAYSECRET",
				Version:    "2.1.0",
				Command:    "pay",
				OrderType:  "other",
			},
		},
	}
}

func newTestServer(t *testing.T) (*Server, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t, postgres.Models()...)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := NewServer(testConfig(), db, rdb, nil, logger.Discard())
	require.NoError(t, err)
	return s, mr
}

func serve(s *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthAndReadiness(t *testing.T) {
	s, mr := newTestServer(t)

	w := serve(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = serve(s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	mr.Close()
	w = serve(s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	serve(s, http.MethodGet, "/health", "")

	w := serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRoutesEnforceAuthAndAdmin(t *testing.T) {
	s, _ := newTestServer(t)
	jwtManager := auth.NewJWTManager(s.config.JWT)

	user, err := jwtManager.GenerateToken(uuid.New(), "reader@example.com", nil, time.Hour)
	require.NoError(t, err)
	admin, err := jwtManager.GenerateToken(uuid.New(), "admin@example.com", []string{auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/v1/cart", "").Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/v1/cart", user).Code)

	assert.Equal(t, http.StatusForbidden, serve(s, http.MethodGet, "/api/v1/admin/orders/stats", user).Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/v1/admin/orders/stats", admin).Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/v1/admin/promotions", admin).Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/v1/admin/inventory/"+uuid.NewString(), admin).Code)
}

func TestDisabledGatewayIsRejected(t *testing.T) {
	s, _ := newTestServer(t)
	token, err := auth.NewJWTManager(s.config.JWT).GenerateToken(uuid.New(), "reader@example.com", nil, time.Hour)
	require.NoError(t, err)

	// only VNPay is enabled in testConfig
	w := serve(s, http.MethodPost, "/api/v1/payments/momo", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallbacksArePublic(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/v1/payments/vnpay/ipn?vnp_TxnRef=PAY_ABCDEFGH_1772334000000&vnp_SecureHash=00", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"RspCode":"97"`)
}

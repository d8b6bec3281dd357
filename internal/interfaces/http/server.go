// internal/interfaces/http/server.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/checkout"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	"github.com/your-org/bookstore-backend/internal/domain/promotion"
	redislock "github.com/your-org/bookstore-backend/internal/infrastructure/database/redis"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/handlers"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/routes"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/pkg/database"
	"github.com/your-org/bookstore-backend/internal/pkg/events"
	"github.com/your-org/bookstore-backend/internal/pkg/pdf"
	"gorm.io/gorm"
)

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	gin         *gin.Engine
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
	publisher   events.Publisher
	logger      logrus.FieldLogger
	startedAt   time.Time
}

// NewServer wires services and handlers and builds the gin engine.
// redisClient may be nil, in which case rate limiting and the callback
// lock are skipped.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, publisher events.Publisher, logger logrus.FieldLogger) (*Server, error) {
	if publisher == nil {
		publisher = events.Nop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:      cfg,
		gin:         gin.New(),
		db:          db,
		redisClient: redisClient,
		publisher:   publisher,
		logger:      logger,
		startedAt:   time.Now(),
	}

	if err := s.gin.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Handler exposes the engine, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.gin,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Infof("🚀 HTTP Server starting on port %s", s.config.Server.Port)
	s.logger.Infof("🌐 API Base URL: http://localhost:%s/api/v1", s.config.Server.Port)
	s.logger.Infof("📊 Health Check: http://localhost:%s/health", s.config.Server.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("🛑 Shutting down HTTP server...")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	s.logger.Info("✅ HTTP server stopped gracefully")
	return nil
}

// setupMiddleware configures all middleware for the server
func (s *Server) setupMiddleware() {
	s.gin.Use(gin.Recovery())
	s.gin.Use(middleware.RequestID())
	s.gin.Use(middleware.Logger(s.logger))
	s.gin.Use(middleware.Metrics())
	s.gin.Use(middleware.CORS(s.config.Security))
	s.gin.Use(middleware.SecurityHeaders(s.config.Security))

	if s.redisClient != nil {
		s.gin.Use(middleware.RateLimit(s.redisClient, s.config.Security.RateLimitPerMinute, s.logger))
	}

	s.gin.Use(middleware.RequestSizeLimit(s.config.Server.MaxBodyBytes))
	s.gin.Use(middleware.Timeout(s.config.Server.RequestTimeout))
}

func (s *Server) txOptions() database.TxOptions {
	opts := database.DefaultTxOptions()
	if s.config.Database.TxMaxRetries > 0 {
		opts.MaxRetries = s.config.Database.TxMaxRetries
	}
	return opts
}

// gatewayRegistry registers the enabled gateways only
func (s *Server) gatewayRegistry() *gateway.Registry {
	p := s.config.Payment
	client := gateway.NewHTTPClient(p.GatewayTimeout)

	var adapters []gateway.Adapter
	if p.VNPay.Enabled {
		adapters = append(adapters, gateway.NewVNPay(p.VNPay))
	}
	if p.ZaloPay.Enabled {
		adapters = append(adapters, gateway.NewZaloPay(p.ZaloPay, client))
	}
	if p.MoMo.Enabled {
		adapters = append(adapters, gateway.NewMoMo(p.MoMo, client))
	}

	registry := gateway.NewRegistry(adapters...)
	s.logger.WithField("gateways", registry.Enabled()).Info("💳 Payment gateways registered")
	return registry
}

func (s *Server) buildHandlers() *routes.Handlers {
	txOpts := s.txOptions()
	registry := s.gatewayRegistry()

	var locker payment.Locker
	if s.redisClient != nil {
		locker = redislock.NewLocker(s.redisClient)
	}

	cartService := cart.NewService(s.db)
	checkoutService := checkout.NewService(s.db, s.publisher, s.logger, txOpts)
	orderService := order.NewService(s.db, payment.NewStore(), s.publisher, s.logger, txOpts)
	paymentService := payment.NewService(s.db, registry, s.logger, txOpts, s.config.Payment.PendingTTL)
	reconciler := payment.NewReconciler(s.db, registry, locker, s.publisher, s.logger, payment.ReconcilerConfig{
		LockTTL:  s.config.Payment.CallbackLockTTL,
		LockWait: s.config.Payment.LockWait,
		TxOpts:   txOpts,
	})

	return &routes.Handlers{
		Cart:      handlers.NewCartHandler(cartService),
		Checkout:  handlers.NewCheckoutHandler(checkoutService, paymentService, s.logger),
		Order:     handlers.NewOrderHandler(orderService),
		Invoice:   handlers.NewInvoiceHandler(orderService, pdf.NewService(s.config.Invoice)),
		Payment:   handlers.NewPaymentHandler(paymentService),
		Callback:  handlers.NewCallbackHandler(reconciler),
		Promotion: handlers.NewPromotionHandler(promotion.NewService(s.db, s.logger)),
		Inventory: handlers.NewInventoryHandler(inventory.NewService(s.db)),
	}
}

// setupRoutes configures all routes for the server
func (s *Server) setupRoutes() {
	s.gin.GET("/health", s.healthCheck)
	s.gin.GET("/ready", s.readinessCheck)
	s.gin.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := s.gin.Group("/api/v1")
	routes.SetupRoutes(apiV1, s.buildHandlers(), auth.NewJWTManager(s.config.JWT))

	if s.config.IsDevelopment() {
		s.gin.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message":     "Bookstore API",
				"version":     s.config.App.Version,
				"environment": s.config.App.Environment,
				"health":      "/health",
				"endpoints": gin.H{
					"cart":       "/api/v1/cart",
					"checkout":   "/api/v1/checkout",
					"orders":     "/api/v1/orders",
					"payments":   "/api/v1/payments",
					"promotions": "/api/v1/promotions",
					"admin":      "/api/v1/admin",
				},
			})
		})
	}
}

// healthCheck reports liveness only
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     s.config.App.Version,
		"environment": s.config.App.Environment,
	})
}

// readinessCheck pings the database and Redis
func (s *Server) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.logger.WithError(err).Warn("Readiness check: database ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "database ping failed",
		})
		return
	}

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			s.logger.WithError(err).Warn("Readiness check: redis ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  "redis ping failed",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

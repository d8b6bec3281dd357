// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/handlers"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
)

// Handlers bundles every HTTP handler mounted under /api/v1
type Handlers struct {
	Cart      *handlers.CartHandler
	Checkout  *handlers.CheckoutHandler
	Order     *handlers.OrderHandler
	Invoice   *handlers.InvoiceHandler
	Payment   *handlers.PaymentHandler
	Callback  *handlers.CallbackHandler
	Promotion *handlers.PromotionHandler
	Inventory *handlers.InventoryHandler
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, h *Handlers, authRequired gin.HandlerFunc) {
	cart := rg.Group("/cart")
	cart.Use(authRequired)
	{
		cart.GET("", h.Cart.GetCart)
		cart.POST("/items", h.Cart.AddToCart)
		cart.PUT("/items/:bookId", h.Cart.UpdateCartItem)
		cart.DELETE("/items/:bookId", h.Cart.RemoveFromCart)
		cart.DELETE("", h.Cart.ClearCart)
	}
}

// SetupCheckoutRoutes sets up checkout related routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, h *Handlers, authRequired gin.HandlerFunc) {
	checkout := rg.Group("/checkout")
	checkout.Use(authRequired)
	{
		checkout.POST("", h.Checkout.Checkout)
		checkout.POST("/summary", h.Checkout.Summary)
		checkout.POST("/:gateway", h.Checkout.CheckoutAndPay)
	}
}

// SetupOrderRoutes sets up order related routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *Handlers, authRequired gin.HandlerFunc) {
	orders := rg.Group("/orders")
	orders.Use(authRequired)
	{
		orders.GET("", h.Order.GetOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.POST("/:id/cancel", h.Order.CancelOrder)
		orders.GET("/:id/invoice", h.Invoice.GenerateInvoice)
	}
}

// SetupPaymentRoutes sets up payment routes. Gateway callbacks are public;
// they authenticate through their signatures.
func SetupPaymentRoutes(rg *gin.RouterGroup, h *Handlers, authRequired gin.HandlerFunc) {
	payments := rg.Group("/payments")
	{
		payments.GET("/vnpay/return", h.Callback.VNPayReturn)
		payments.GET("/vnpay/ipn", h.Callback.VNPayIPN)
		payments.POST("/zalopay/callback", h.Callback.ZaloPayCallback)
		payments.POST("/momo/ipn", h.Callback.MoMoIPN)

		payments.POST("/:gateway", authRequired, h.Payment.CreatePayment)
		payments.GET("/:transactionId", authRequired, h.Payment.GetPayment)
	}
}

// SetupPromotionRoutes sets up promotion related routes
func SetupPromotionRoutes(rg *gin.RouterGroup, h *Handlers, authRequired gin.HandlerFunc) {
	promotions := rg.Group("/promotions")
	promotions.Use(authRequired)
	{
		promotions.POST("/validate", h.Promotion.ValidateCode)
	}
}

// SetupAdminRoutes sets up admin related routes
func SetupAdminRoutes(rg *gin.RouterGroup, h *Handlers, authRequired gin.HandlerFunc) {
	admin := rg.Group("/admin")
	admin.Use(authRequired, middleware.AdminMiddleware())
	{
		orders := admin.Group("/orders")
		{
			orders.GET("", h.Order.AdminGetOrders)
			orders.GET("/stats", h.Order.AdminGetStats)
			orders.GET("/:id", h.Order.AdminGetOrder)
			orders.PUT("/:id/status", h.Order.AdminUpdateOrderStatus)
			orders.GET("/:id/payments", h.Payment.ListOrderPayments)
		}

		promotions := admin.Group("/promotions")
		{
			promotions.POST("", h.Promotion.CreatePromotion)
			promotions.GET("", h.Promotion.ListPromotions)
			promotions.PATCH("/:id/status", h.Promotion.UpdateStatus)
		}

		admin.GET("/inventory/:bookId", h.Inventory.GetStock)
		admin.GET("/payments/:transactionId/query", h.Payment.QueryGateway)
	}
}

// SetupRoutes sets up all API routes
func SetupRoutes(rg *gin.RouterGroup, h *Handlers, jwtManager *auth.JWTManager) {
	authRequired := middleware.AuthMiddleware(jwtManager)

	SetupCartRoutes(rg, h, authRequired)
	SetupCheckoutRoutes(rg, h, authRequired)
	SetupOrderRoutes(rg, h, authRequired)
	SetupPaymentRoutes(rg, h, authRequired)
	SetupPromotionRoutes(rg, h, authRequired)
	SetupAdminRoutes(rg, h, authRequired)
}

// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
)

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	paymentService *payment.Service
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *payment.Service) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreatePayment handles POST /payments/:gateway
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	g, err := gateway.ParseGateway(c.Param("gateway"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req payment.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID
	req.Gateway = g
	req.ClientIP = c.ClientIP()

	result, err := h.paymentService.CreatePayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"message": "Payment request created successfully",
		"data":    result,
	})
}

// GetPayment handles GET /payments/:transactionId. Admins may read any payment.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	owner := &userID
	if middleware.IsAdminFromContext(c) {
		owner = nil
	}

	view, err := h.paymentService.GetByTransactionID(c.Request.Context(), c.Param("transactionId"), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment retrieved successfully",
		"data":    view,
	})
}

// QueryGateway handles GET /admin/payments/:transactionId/query
func (h *PaymentHandler) QueryGateway(c *gin.Context) {
	result, err := h.paymentService.QueryGateway(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Gateway status retrieved successfully",
		"data": gin.H{
			"result": result,
			"paid":   result.Paid(),
		},
	})
}

// ListOrderPayments handles GET /admin/orders/:id/payments
func (h *PaymentHandler) ListOrderPayments(c *gin.Context) {
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payments retrieved successfully",
		"data":    payments,
	})
}

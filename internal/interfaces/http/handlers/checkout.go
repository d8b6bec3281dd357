// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/domain/checkout"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
)

// CheckoutHandler handles checkout endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	paymentService  *payment.Service
	logger          logrus.FieldLogger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkoutService *checkout.Service, paymentService *payment.Service, logger logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		paymentService:  paymentService,
		logger:          logger,
	}
}

type summaryRequest struct {
	DiscountCode string      `json:"discount_code"`
	BookIDs      []uuid.UUID `json:"book_ids"`
}

// Summary handles POST /checkout/summary
func (h *CheckoutHandler) Summary(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	summary, err := h.checkoutService.Summary(c.Request.Context(), userID, req.BookIDs, req.DiscountCode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout summary calculated successfully",
		"data":    summary,
	})
}

// Checkout handles POST /checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID

	created, err := h.checkoutService.Checkout(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"data":    created,
	})
}

// CheckoutAndPay handles POST /checkout/:gateway. The order is created first;
// if the gateway then fails, the order stays PENDING and the client can retry
// through POST /payments/:gateway.
func (h *CheckoutHandler) CheckoutAndPay(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	g, err := gateway.ParseGateway(c.Param("gateway"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.UserID = userID
	req.PaymentMethod = string(g)

	created, err := h.checkoutService.Checkout(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.paymentService.CreatePayment(c.Request.Context(), &payment.CreateRequest{
		OrderID:  created.ID,
		UserID:   userID,
		Gateway:  g,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": created.ID,
			"gateway":  g,
		}).Warn("Order created but payment request failed")
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{
			"error": err.Error(),
			"data":  gin.H{"order": orderSummary(created)},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created, redirect to payment",
		"data": gin.H{
			"order":   orderSummary(created),
			"payment": result,
		},
	})
}

func orderSummary(o *order.Order) gin.H {
	return gin.H{
		"id":             o.ID,
		"order_number":   o.OrderNumber,
		"status":         o.Status,
		"payment_method": o.PaymentMethod,
		"subtotal":       o.Subtotal,
		"discount":       o.DiscountAmount,
		"total":          o.Total,
	}
}

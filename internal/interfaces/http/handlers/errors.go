// internal/interfaces/http/handlers/errors.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/domain/book"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/checkout"
	"github.com/your-org/bookstore-backend/internal/domain/inventory"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
	"github.com/your-org/bookstore-backend/internal/domain/promotion"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
)

type errorMapping struct {
	target error
	status int
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	// Validation
	{checkout.ErrEmptyCart, http.StatusBadRequest},
	{promotion.ErrInvalidPromotion, http.StatusBadRequest},
	{inventory.ErrInsufficientStock, http.StatusConflict},
	{order.ErrPaymentMethodRequired, http.StatusBadRequest},
	{order.ErrUnsupportedPaymentMethod, http.StatusBadRequest},
	{payment.ErrAmountMismatch, http.StatusBadRequest},
	{payment.ErrInvalidTransactionID, http.StatusBadRequest},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},

	// Protocol
	{gateway.ErrInvalidSignature, http.StatusBadRequest},
	{gateway.ErrMalformedCallback, http.StatusBadRequest},
	{gateway.ErrUnknownGateway, http.StatusBadRequest},
	{gateway.ErrInvalidAmount, http.StatusBadRequest},

	// Not found
	{order.ErrOrderNotFound, http.StatusNotFound},
	{payment.ErrPaymentNotFound, http.StatusNotFound},
	{promotion.ErrPromotionNotFound, http.StatusNotFound},
	{book.ErrBookNotFound, http.StatusNotFound},
	{cart.ErrItemNotFound, http.StatusNotFound},

	// Conflict
	{promotion.ErrDuplicateCode, http.StatusConflict},
	{payment.ErrOrderNotPayable, http.StatusConflict},
	{payment.ErrNothingToPay, http.StatusConflict},
	{order.ErrInvalidTransition, http.StatusConflict},
	{order.ErrOrderNotCancellable, http.StatusConflict},
	{payment.ErrPaymentTerminal, http.StatusConflict},

	// Transient
	{gateway.ErrGatewayUnavailable, http.StatusBadGateway},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

func statusFor(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes the JSON error body for err. Internal errors are
// logged by the access log middleware and never echoed to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "Internal server error"
	}

	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		body["details"] = stockErr
	}
	var promoErr *promotion.InvalidPromotionError
	if errors.As(err, &promoErr) {
		body["reason"] = promoErr.Reason
	}

	c.JSON(status, body)
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
		})
		return uuid.Nil, false
	}
	return userID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}

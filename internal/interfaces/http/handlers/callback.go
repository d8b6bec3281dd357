// internal/interfaces/http/handlers/callback.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/payment/gateway"
)

const maxCallbackBody = 64 << 10

// CallbackHandler receives gateway notifications. None of its routes are
// authenticated; every payload is verified by the reconciler.
type CallbackHandler struct {
	reconciler *payment.Reconciler
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(reconciler *payment.Reconciler) *CallbackHandler {
	return &CallbackHandler{reconciler: reconciler}
}

// VNPayReturn handles GET /payments/vnpay/return, the browser redirect.
// It applies the result like the IPN so a missed IPN still settles.
func (h *CallbackHandler) VNPayReturn(c *gin.Context) {
	res, err := h.reconciler.Handle(c.Request.Context(), gateway.VNPay, gateway.RawCallback{Query: c.Request.URL.Query()})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": res.Callback.Message,
		"data": gin.H{
			"transaction_id": res.Payment.TransactionID,
			"order_id":       res.Payment.OrderID,
			"status":         res.Payment.Status,
			"response_code":  res.Callback.ResponseCode,
			"success":        res.Payment.Status == payment.StatusCompleted,
		},
	})
}

// VNPayIPN handles GET /payments/vnpay/ipn. VNPay expects HTTP 200 with an
// RspCode in every case.
func (h *CallbackHandler) VNPayIPN(c *gin.Context) {
	res, err := h.reconciler.Handle(c.Request.Context(), gateway.VNPay, gateway.RawCallback{Query: c.Request.URL.Query()})

	code, message := "00", "Confirm Success"
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		code, message = "97", "Invalid signature"
	case errors.Is(err, payment.ErrPaymentNotFound):
		code, message = "01", "Order not found"
	case errors.Is(err, payment.ErrAmountMismatch):
		code, message = "04", "Invalid amount"
	case err != nil:
		code, message = "99", "Unknown error"
	case res.Duplicate:
		code, message = "02", "Order already confirmed"
	}

	c.JSON(http.StatusOK, gin.H{"RspCode": code, "Message": message})
}

// ZaloPayCallback handles POST /payments/zalopay/callback
func (h *CallbackHandler) ZaloPayCallback(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"return_code": 0, "return_message": "cannot read body"})
		return
	}

	res, err := h.reconciler.Handle(c.Request.Context(), gateway.ZaloPay, gateway.RawCallback{Body: body})
	switch {
	case err != nil:
		code, msg := zaloPayRejection(err)
		c.JSON(http.StatusOK, gin.H{"return_code": code, "return_message": msg})
	case res.Duplicate:
		c.JSON(http.StatusOK, gin.H{"return_code": 2, "return_message": "already processed"})
	default:
		c.JSON(http.StatusOK, gin.H{"return_code": 1, "return_message": "success"})
	}
}

// zaloPayRejection maps a reconcile error to ZaloPay's return_code. Only 0
// makes ZaloPay retry, so it is reserved for failures on our side.
func zaloPayRejection(err error) (int, string) {
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		return -1, "mac not equal"
	case errors.Is(err, payment.ErrPaymentNotFound):
		return -1, "transaction not found"
	case errors.Is(err, payment.ErrAmountMismatch):
		return -1, "amount mismatch"
	case statusFor(err) < http.StatusInternalServerError:
		return -1, "invalid callback"
	default:
		return 0, "internal error, retry later"
	}
}

// MoMoIPN handles POST /payments/momo/ipn. MoMo only looks at the status code.
func (h *CallbackHandler) MoMoIPN(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	_, err = h.reconciler.Handle(c.Request.Context(), gateway.MoMo, gateway.RawCallback{Body: body})
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			status = http.StatusInternalServerError
		} else {
			status = http.StatusBadRequest
		}
		c.Status(status)
		return
	}
	c.Status(http.StatusNoContent)
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
}

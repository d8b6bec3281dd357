// Package gateway speaks the VNPay, ZaloPay and MoMo protocols: building
// signed payment requests and verifying their callbacks.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSignature   = errors.New("invalid callback signature")
	ErrMalformedCallback  = errors.New("malformed callback payload")
	ErrUnknownGateway     = errors.New("unknown payment gateway")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidAmount      = errors.New("invalid payment amount")
)

// Gateway identifies a payment provider
type Gateway string

const (
	VNPay   Gateway = "VNPAY"
	ZaloPay Gateway = "ZALOPAY"
	MoMo    Gateway = "MOMO"
)

// ParseGateway accepts any casing of a known gateway name
func ParseGateway(name string) (Gateway, error) {
	switch g := Gateway(strings.ToUpper(strings.TrimSpace(name))); g {
	case VNPay, ZaloPay, MoMo:
		return g, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownGateway, name)
}

// PaymentRequest is what an adapter needs to build a redirect
type PaymentRequest struct {
	TransactionID string
	OrderID       uuid.UUID
	Amount        int64
	ClientIP      string
	CreatedAt     time.Time
}

// RawCallback is the unparsed callback as received over HTTP. Query holds
// the URL parameters (VNPay), Body the request body (ZaloPay, MoMo).
type RawCallback struct {
	Query url.Values
	Body  []byte
}

// CallbackResult is a verified, gateway-neutral callback
type CallbackResult struct {
	TransactionID        string
	Amount               int64
	Success              bool
	GatewayTransactionNo string
	ResponseCode         string
	Message              string
}

// Adapter is implemented once per gateway
type Adapter interface {
	Name() Gateway
	CreatePaymentRequest(ctx context.Context, req PaymentRequest) (string, error)
	VerifyCallback(raw RawCallback) (CallbackResult, error)
}

// Registry resolves adapters by gateway name
type Registry struct {
	adapters map[Gateway]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Gateway]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns ErrUnknownGateway for gateways that are not registered
func (r *Registry) Get(g Gateway) (Adapter, error) {
	a, ok := r.adapters[g]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, g)
	}
	return a, nil
}

// Enabled lists registered gateways in name order
func (r *Registry) Enabled() []Gateway {
	names := make([]Gateway, 0, len(r.adapters))
	for g := range r.adapters {
		names = append(names, g)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

var vietnam = loadVietnam()

func loadVietnam() *time.Location {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		return time.FixedZone("ICT", 7*60*60)
	}
	return loc
}

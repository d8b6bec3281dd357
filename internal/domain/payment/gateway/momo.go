package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/your-org/bookstore-backend/internal/config"
)

// MoMoAdapter talks to the MoMo v2 create API
type MoMoAdapter struct {
	cfg    config.MoMoConfig
	client *http.Client
}

func NewMoMo(cfg config.MoMoConfig, client *http.Client) *MoMoAdapter {
	return &MoMoAdapter{cfg: cfg, client: client}
}

func (a *MoMoAdapter) Name() Gateway { return MoMo }

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
	Lang        string `json:"lang"`
}

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

// CreatePaymentRequest returns MoMo's payUrl. The transaction id doubles as
// both orderId and requestId.
func (a *MoMoAdapter) CreatePaymentRequest(ctx context.Context, req PaymentRequest) (string, error) {
	body := momoCreateRequest{
		PartnerCode: a.cfg.PartnerCode,
		AccessKey:   a.cfg.AccessKey,
		RequestID:   req.TransactionID,
		Amount:      req.Amount,
		OrderID:     req.TransactionID,
		OrderInfo:   "Thanh toán đơn hàng " + req.TransactionID,
		RedirectURL: a.cfg.RedirectURL,
		IPNURL:      a.cfg.IPNURL,
		ExtraData:   a.cfg.ExtraData,
		RequestType: a.cfg.RequestType,
		Lang:        "vi",
	}

	raw := "accessKey=" + body.AccessKey +
		"&amount=" + strconv.FormatInt(body.Amount, 10) +
		"&extraData=" + body.ExtraData +
		"&ipnUrl=" + body.IPNURL +
		"&orderId=" + body.OrderID +
		"&orderInfo=" + body.OrderInfo +
		"&partnerCode=" + body.PartnerCode +
		"&redirectUrl=" + body.RedirectURL +
		"&requestId=" + body.RequestID +
		"&requestType=" + body.RequestType
	body.Signature = hmacSHA256(a.cfg.SecretKey, raw)

	var resp momoCreateResponse
	if err := postJSON(ctx, a.client, MoMo, a.cfg.Endpoint, body, &resp); err != nil {
		return "", err
	}
	if resp.ResultCode != 0 || resp.PayURL == "" {
		return "", fmt.Errorf("%w: momo resultCode %d: %s", ErrGatewayUnavailable, resp.ResultCode, resp.Message)
	}
	return resp.PayURL, nil
}

// MoMoCallback is the IPN body
type MoMoCallback struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// rawSignature is the string MoMo signs in an IPN, keys in alphabetical order
func (c MoMoCallback) rawSignature(accessKey string) string {
	return "accessKey=" + accessKey +
		"&amount=" + strconv.FormatInt(c.Amount, 10) +
		"&extraData=" + c.ExtraData +
		"&message=" + c.Message +
		"&orderId=" + c.OrderID +
		"&orderInfo=" + c.OrderInfo +
		"&orderType=" + c.OrderType +
		"&partnerCode=" + c.PartnerCode +
		"&payType=" + c.PayType +
		"&requestId=" + c.RequestID +
		"&responseTime=" + strconv.FormatInt(c.ResponseTime, 10) +
		"&resultCode=" + strconv.Itoa(c.ResultCode) +
		"&transId=" + strconv.FormatInt(c.TransID, 10)
}

// Sign fills in Signature; used to build test callbacks
func (c *MoMoCallback) Sign(accessKey, secretKey string) {
	c.Signature = hmacSHA256(secretKey, c.rawSignature(accessKey))
}

func (a *MoMoAdapter) VerifyCallback(raw RawCallback) (CallbackResult, error) {
	var cb MoMoCallback
	if err := json.Unmarshal(raw.Body, &cb); err != nil {
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if cb.OrderID == "" || cb.Signature == "" {
		return CallbackResult{}, fmt.Errorf("%w: missing orderId or signature", ErrMalformedCallback)
	}
	if !signatureEqual(hmacSHA256(a.cfg.SecretKey, cb.rawSignature(a.cfg.AccessKey)), cb.Signature) {
		return CallbackResult{}, ErrInvalidSignature
	}

	return CallbackResult{
		TransactionID:        cb.OrderID,
		Amount:               cb.Amount,
		Success:              cb.ResultCode == 0,
		GatewayTransactionNo: strconv.FormatInt(cb.TransID, 10),
		ResponseCode:         strconv.Itoa(cb.ResultCode),
		Message:              cb.Message,
	}, nil
}

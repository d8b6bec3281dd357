package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/bookstore-backend/internal/config"
)

const vnpayDateLayout = "20060102150405"

var vnpayMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Transaction suspected of fraud",
	"09": "Card not registered for internet banking",
	"10": "Card authentication failed more than 3 times",
	"11": "Payment timeout. Please try again",
	"12": "Card is locked",
	"13": "Invalid OTP",
	"24": "Transaction canceled",
	"51": "Insufficient account balance",
	"65": "Account exceeded daily transaction limit",
	"75": "Bank is under maintenance",
	"79": "Incorrect payment password more than allowed",
	"99": "Unknown error",
}

// VNPayMessage describes a vnp_ResponseCode
func VNPayMessage(code string) string {
	if msg, ok := vnpayMessages[code]; ok {
		return msg
	}
	return vnpayMessages["99"]
}

// VNPayAdapter builds signed redirect URLs; VNPay needs no server-to-server
// call to start a payment.
type VNPayAdapter struct {
	cfg config.VNPayConfig
	now func() time.Time
}

func NewVNPay(cfg config.VNPayConfig) *VNPayAdapter {
	return &VNPayAdapter{cfg: cfg, now: time.Now}
}

func (a *VNPayAdapter) Name() Gateway { return VNPay }

// CreatePaymentRequest returns the pay URL with vnp_SecureHash appended.
// vnp_Amount is the amount times 100.
func (a *VNPayAdapter) CreatePaymentRequest(_ context.Context, req PaymentRequest) (string, error) {
	if req.Amount <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidAmount, req.Amount)
	}

	created := req.CreatedAt
	if created.IsZero() {
		created = a.now()
	}
	created = created.In(vietnam)

	params := url.Values{}
	params.Set("vnp_Version", a.cfg.Version)
	params.Set("vnp_Command", a.cfg.Command)
	params.Set("vnp_TmnCode", a.cfg.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", req.TransactionID)
	params.Set("vnp_OrderInfo", asciiAlnum("Thanh toan don hang "+strings.ReplaceAll(req.TransactionID, "_", "")))
	params.Set("vnp_OrderType", a.cfg.OrderType)
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", a.cfg.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", created.Format(vnpayDateLayout))
	params.Set("vnp_ExpireDate", created.Add(15*time.Minute).Format(vnpayDateLayout))

	return a.cfg.PayURL + "?" + vnpayCanonical(params) + "&vnp_SecureHash=" + a.Sign(params), nil
}

// Sign computes vnp_SecureHash for params, which must not contain the hash itself
func (a *VNPayAdapter) Sign(params url.Values) string {
	return hmacSHA512(a.cfg.HashSecret, vnpayCanonical(params))
}

// VerifyCallback checks vnp_SecureHash over every other vnp_ parameter
func (a *VNPayAdapter) VerifyCallback(raw RawCallback) (CallbackResult, error) {
	q := raw.Query
	hash := q.Get("vnp_SecureHash")
	if hash == "" || q.Get("vnp_TxnRef") == "" {
		return CallbackResult{}, fmt.Errorf("%w: missing vnp_SecureHash or vnp_TxnRef", ErrMalformedCallback)
	}

	signed := url.Values{}
	for key, values := range q {
		if !strings.HasPrefix(key, "vnp_") || key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if len(values) > 0 {
			signed.Set(key, values[0])
		}
	}
	if !signatureEqual(a.Sign(signed), hash) {
		return CallbackResult{}, ErrInvalidSignature
	}

	amount, err := strconv.ParseInt(q.Get("vnp_Amount"), 10, 64)
	if err != nil || amount < 0 {
		return CallbackResult{}, fmt.Errorf("%w: bad vnp_Amount %q", ErrMalformedCallback, q.Get("vnp_Amount"))
	}

	code := q.Get("vnp_ResponseCode")
	return CallbackResult{
		TransactionID:        q.Get("vnp_TxnRef"),
		Amount:               amount / 100,
		Success:              code == "00" && q.Get("vnp_TransactionStatus") == "00",
		GatewayTransactionNo: q.Get("vnp_TransactionNo"),
		ResponseCode:         code,
		Message:              VNPayMessage(code),
	}, nil
}

// vnpayCanonical drops empty values, sorts by key and joins key=escaped(value)
func vnpayCanonical(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if params.Get(k) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}

// asciiAlnum keeps letters and digits; VNPay rejects accents and
// punctuation in vnp_OrderInfo.
func asciiAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == 'đ':
			b.WriteByte('d')
		case r == 'Đ':
			b.WriteByte('D')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

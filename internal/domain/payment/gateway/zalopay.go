package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/bookstore-backend/internal/config"
)

const zaloPayAppUser = "bookstore"

// ZaloPayAdapter talks to the ZaloPay v001 TPE API
type ZaloPayAdapter struct {
	cfg    config.ZaloPayConfig
	client *http.Client
	now    func() time.Time
}

func NewZaloPay(cfg config.ZaloPayConfig, client *http.Client) *ZaloPayAdapter {
	return &ZaloPayAdapter{cfg: cfg, client: client, now: time.Now}
}

func (a *ZaloPayAdapter) Name() Gateway { return ZaloPay }

type zaloPayCreateResponse struct {
	ReturnCode    int    `json:"returncode"`
	ReturnMessage string `json:"returnmessage"`
	OrderURL      string `json:"orderurl"`
	ZPTransToken  string `json:"zptranstoken"`
}

// AppTransID prefixes the transaction id with the Vietnam date, which
// ZaloPay requires.
func AppTransID(txid string, at time.Time) string {
	return at.In(vietnam).Format("060102") + "_" + txid
}

// transactionIDFromAppTransID strips the yyMMdd_ prefix
func transactionIDFromAppTransID(appTransID string) (string, error) {
	if len(appTransID) <= 7 || appTransID[6] != '_' {
		return "", fmt.Errorf("%w: bad app_trans_id %q", ErrMalformedCallback, appTransID)
	}
	return appTransID[7:], nil
}

// CreatePaymentRequest registers the order with ZaloPay and returns its order URL
func (a *ZaloPayAdapter) CreatePaymentRequest(ctx context.Context, req PaymentRequest) (string, error) {
	created := req.CreatedAt
	if created.IsZero() {
		created = a.now()
	}

	embedData, err := json.Marshal(map[string]string{"redirecturl": a.cfg.RedirectURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal embeddata: %w", err)
	}

	appTransID := AppTransID(req.TransactionID, created)
	appTime := strconv.FormatInt(a.now().UnixMilli(), 10)
	amount := strconv.FormatInt(req.Amount, 10)
	item := "[]"

	form := url.Values{}
	form.Set("appid", a.cfg.AppID)
	form.Set("apptransid", appTransID)
	form.Set("appuser", zaloPayAppUser)
	form.Set("apptime", appTime)
	form.Set("amount", amount)
	form.Set("embeddata", string(embedData))
	form.Set("item", item)
	form.Set("description", "Bookstore - Thanh toan don hang #"+appTransID)
	form.Set("bankcode", "")
	form.Set("callbackurl", a.cfg.CallbackURL)
	form.Set("mac", hmacSHA256(a.cfg.Key1, strings.Join([]string{
		a.cfg.AppID, appTransID, zaloPayAppUser, amount, appTime, string(embedData), item,
	}, "|")))

	var resp zaloPayCreateResponse
	if err := postForm(ctx, a.client, ZaloPay, a.cfg.CreateOrderURL, form, &resp); err != nil {
		return "", err
	}
	if resp.ReturnCode != 1 || resp.OrderURL == "" {
		return "", fmt.Errorf("%w: zalopay returncode %d: %s", ErrGatewayUnavailable, resp.ReturnCode, resp.ReturnMessage)
	}
	return resp.OrderURL, nil
}

type zaloPayCallback struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
}

type zaloPayCallbackData struct {
	AppTransID string      `json:"app_trans_id"`
	ZPTransID  json.Number `json:"zp_trans_id"`
	Amount     json.Number `json:"amount"`
	ServerTime json.Number `json:"server_time"`
}

// VerifyCallback checks mac = HMAC-SHA256(key2, data). ZaloPay only calls
// back for successful payments.
func (a *ZaloPayAdapter) VerifyCallback(raw RawCallback) (CallbackResult, error) {
	var body zaloPayCallback
	if err := json.Unmarshal(raw.Body, &body); err != nil {
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if body.Data == "" || body.MAC == "" {
		return CallbackResult{}, fmt.Errorf("%w: missing data or mac", ErrMalformedCallback)
	}
	if !signatureEqual(hmacSHA256(a.cfg.Key2, body.Data), body.MAC) {
		return CallbackResult{}, ErrInvalidSignature
	}

	var data zaloPayCallbackData
	dec := json.NewDecoder(strings.NewReader(body.Data))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	txid, err := transactionIDFromAppTransID(data.AppTransID)
	if err != nil {
		return CallbackResult{}, err
	}
	amount, err := data.Amount.Int64()
	if err != nil {
		return CallbackResult{}, fmt.Errorf("%w: bad amount %q", ErrMalformedCallback, data.Amount)
	}

	return CallbackResult{
		TransactionID:        txid,
		Amount:               amount,
		Success:              true,
		GatewayTransactionNo: data.ZPTransID.String(),
		ResponseCode:         "1",
		Message:              "Success",
	}, nil
}

// QueryResult is ZaloPay's view of a transaction
type QueryResult struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	IsProcessing  bool   `json:"is_processing"`
	Amount        int64  `json:"amount"`
	ZPTransID     int64  `json:"zp_trans_id"`
}

// Paid reports a settled transaction
func (q QueryResult) Paid() bool { return q.ReturnCode == 1 }

// QueryStatus asks ZaloPay for the state of a transaction created at createdAt
func (a *ZaloPayAdapter) QueryStatus(ctx context.Context, txid string, createdAt time.Time) (*QueryResult, error) {
	appTransID := AppTransID(txid, createdAt)

	form := url.Values{}
	form.Set("app_id", a.cfg.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("mac", hmacSHA256(a.cfg.Key1, a.cfg.AppID+"|"+appTransID+"|"+a.cfg.Key1))

	var resp QueryResult
	if err := postForm(ctx, a.client, ZaloPay, a.cfg.QueryURL, form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

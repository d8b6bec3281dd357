package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
)

// NewHTTPClient builds the client shared by the HTTP-based adapters
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func postJSON(ctx context.Context, client *http.Client, g Gateway, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	return do(ctx, client, g, endpoint, "application/json; charset=UTF-8", bytes.NewReader(body), out)
}

func postForm(ctx context.Context, client *http.Client, g Gateway, endpoint string, form url.Values, out interface{}) error {
	return do(ctx, client, g, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

// do makes the call and decodes a JSON response. Transport failures and
// non-2xx answers both come back as ErrGatewayUnavailable.
func do(ctx context.Context, client *http.Client, g Gateway, endpoint, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := client.Do(req)
	metrics.ObserveGatewayLatency(string(g), time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, g, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %v", ErrGatewayUnavailable, g, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d: %s", ErrGatewayUnavailable, g, resp.StatusCode, truncate(respBody, 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s: failed to parse response: %v", ErrGatewayUnavailable, g, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Package webhook performs the single outbound POST that constitutes a delivery.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/errors"
)

// DefaultTimeout bounds a delivery when the caller configures none.
const DefaultTimeout = 15 * time.Second

// maxDiagnosticBody caps how much of a failed response body is kept.
const maxDiagnosticBody = 2048

// Sender delivers JSON bodies to a configured webhook.
type Sender interface {
	Deliver(ctx context.Context, cfg capture.DeliveryConfig, body any) (*Result, error)
}

// Result describes a completed delivery.
type Result struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body,omitempty"`
}

// Client is the HTTP Sender. It never retries.
type Client struct {
	http *http.Client
}

// NewClient returns a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// NewClientWithHTTP wraps an existing http.Client (used by tests).
func NewClientWithHTTP(c *http.Client) *Client {
	return &Client{http: c}
}

// Deliver POSTs body as JSON to cfg.WebhookURL.
// A non-2xx status is a DELIVERY_FAILED error carrying the status and a
// truncated body; transport failures are DELIVERY_FAILED without a status.
func (c *Client) Deliver(ctx context.Context, cfg capture.DeliveryConfig, body any) (*Result, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.NewNoWebhook()
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewTransportFailed(err)
	}
	for k, v := range Headers(cfg) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewTransportFailed(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBody))
	result := &Result{StatusCode: resp.StatusCode, Body: string(respBody)}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, errors.NewDeliveryFailed(resp.StatusCode, result.Body)
	}
	return result, nil
}

// Headers returns the request headers for cfg: the JSON content type plus at
// most one auth header.
func Headers(cfg capture.DeliveryConfig) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if name, value, ok := cfg.AuthHeader(); ok {
		h[name] = value
	}
	return h
}

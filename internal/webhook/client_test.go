package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/errors"
)

func TestDeliver_Success(t *testing.T) {
	var gotBody map[string]any
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotHeader = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	payload := capture.Payload{Source: "web", URL: "https://example.com", SelectedText: "hi", Campaign: "unspecified"}
	res, err := c.Deliver(context.Background(), capture.DeliveryConfig{WebhookURL: srv.URL, AuthMode: capture.AuthBearer, AuthToken: "tok"}, payload)

	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "hi", gotBody["selected_text"])
	require.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	require.Equal(t, "Bearer tok", gotHeader.Get("Authorization"))
}

func TestDeliver_CustomHeaderAuth(t *testing.T) {
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
	}))
	defer srv.Close()

	cfg := capture.DeliveryConfig{
		WebhookURL:       srv.URL,
		AuthMode:         capture.AuthCustomHeader,
		CustomHeaderName: "X-Api-Key",
		AuthToken:        "secret",
	}
	_, err := NewClient(time.Second).Deliver(context.Background(), cfg, map[string]string{})
	require.NoError(t, err)
	require.Equal(t, "secret", gotHeader.Get("X-Api-Key"))
	require.Empty(t, gotHeader.Get("Authorization"))
}

func TestDeliver_Non2xxIsDeliveryFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer srv.Close()

	res, err := NewClient(time.Second).Deliver(context.Background(), capture.DeliveryConfig{WebhookURL: srv.URL}, map[string]string{})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrDeliveryFailed))
	require.NotNil(t, res)
	require.Equal(t, 500, res.StatusCode)
	require.Len(t, res.Body, maxDiagnosticBody)
}

func TestDeliver_NoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(time.Second).Deliver(context.Background(), capture.DeliveryConfig{WebhookURL: srv.URL}, map[string]string{})
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDeliver_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res, err := NewClient(time.Second).Deliver(context.Background(), capture.DeliveryConfig{WebhookURL: url}, map[string]string{})
	require.Nil(t, res)
	require.True(t, errors.Is(err, errors.ErrDeliveryFailed))
}

func TestDeliver_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	_, err := NewClient(50*time.Millisecond).Deliver(context.Background(), capture.DeliveryConfig{WebhookURL: srv.URL}, map[string]string{})
	require.True(t, errors.Is(err, errors.ErrDeliveryFailed))
}

func TestDeliver_EmptyURL(t *testing.T) {
	_, err := NewClient(0).Deliver(context.Background(), capture.DeliveryConfig{}, map[string]string{})
	require.True(t, errors.Is(err, errors.ErrNoWebhook))
}

func TestDeliver_InvalidURL(t *testing.T) {
	_, err := NewClient(0).Deliver(context.Background(), capture.DeliveryConfig{WebhookURL: "://bad"}, map[string]string{})
	require.True(t, errors.Is(err, errors.ErrDeliveryFailed))
}

func TestHeaders(t *testing.T) {
	h := Headers(capture.DeliveryConfig{AuthMode: capture.AuthCustomHeader, AuthToken: "secret"})
	require.Equal(t, map[string]string{"Content-Type": "application/json"}, h)

	h = Headers(capture.DeliveryConfig{AuthMode: capture.AuthBearer, AuthToken: "t"})
	require.Len(t, h, 2)
	require.Equal(t, "Bearer t", h["Authorization"])
}

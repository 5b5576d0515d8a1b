package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/ops"
)

// keepAliveInterval spaces comment frames that keep idle proxies from
// dropping the stream.
const keepAliveInterval = 25 * time.Second

// HandleEvents handles GET /api/events?tab=<id>, streaming statsUpdated
// notifications for that tab as Server-Sent Events.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	tabID := strings.TrimSpace(r.URL.Query().Get("tab"))
	if tabID == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("tab is required"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.renderer.renderError(w, r, errors.NewInternal(fmt.Errorf("streaming unsupported")))
		return
	}

	sub := h.deps.Hub.Subscribe(tabID)
	defer h.deps.Hub.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streams.Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case n, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(w, n); err != nil {
				h.deps.Logger.Debug("event stream closed", "tab", tabID, "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one notification as an SSE frame named by its type.
func writeEvent(w io.Writer, n ops.StatsUpdated) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, data)
	return err
}

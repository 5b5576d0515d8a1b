// Package router normalizes inbound capture events (menu clicks and page
// messages) into capture requests and keeps the context menu in sync with
// the stored campaign list.
package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/log"
	"github.com/hpungsan/painvault/internal/ops"
)

// Message types accepted by HandleMessage.
const (
	MessageSendSelection = "sendSelection"
	MessageGetStats      = "getStats"
)

// Wire error names used in message responses.
const (
	WireEmptySelection = "EMPTY_SELECTION"
	WireNoWebhook      = "NO_WEBHOOK"
	WireNetworkError   = "NETWORK_ERROR"
	WireUnknownMessage = "UNKNOWN_MESSAGE"
)

// NotificationTitle titles every system notification.
const NotificationTitle = "n8n Capture"

// Notification is shown on the system notification surface after a menu click.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// MenuClick is a context-menu click with the page it happened on.
type MenuClick struct {
	MenuItemID    string `json:"menuItemId"`
	SelectionText string `json:"selectionText"`
	PageURL       string `json:"pageUrl"`
	PageTitle     string `json:"pageTitle"`
	TabID         string `json:"tabId,omitempty"`
}

// Message is a request from the on-page widget.
type Message struct {
	Type      string `json:"type"`
	Selection string `json:"selection,omitempty"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source,omitempty"`
	Campaign  string `json:"campaign,omitempty"`
	TabID     string `json:"tabId,omitempty"`
}

// Response answers a Message.
type Response struct {
	OK     bool                    `json:"ok"`
	Stats  *capture.DomainDayStats `json:"stats,omitempty"`
	Domain string                  `json:"domain,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Router dispatches inbound events to the capture pipeline. Every event
// invokes the pipeline at most once; there is no deduplication.
type Router struct {
	pipeline *ops.Pipeline
	logger   *slog.Logger
	now      func() time.Time

	refreshMu sync.Mutex

	mu          sync.RWMutex
	menu        Menu
	unsubscribe func()
}

// Option customizes a Router.
type Option func(*Router)

// WithClock sets the clock used to stamp requests at dispatch.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Router over p. Call Start before serving menu requests.
func New(p *ops.Pipeline, opts ...Option) *Router {
	r := &Router{
		pipeline: p,
		logger:   log.L(),
		now:      time.Now,
		menu:     BuildMenu(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start builds the menu from the stored campaigns and rebuilds it on every
// campaign change until Stop.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.unsubscribe == nil {
		r.unsubscribe = r.pipeline.Configs().OnChange(func([]capture.Campaign) {
			if err := r.refresh(context.Background()); err != nil {
				r.logger.Warn("context menu rebuild", "error", err)
			}
		})
	}
	r.mu.Unlock()

	return r.refresh(ctx)
}

// Stop drops the campaign subscription.
func (r *Router) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// refresh reads the stored campaigns and installs the menu built from them.
// Refreshes run one at a time and each reads after the change that
// triggered it, so the last one always installs the newest list.
func (r *Router) refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	campaigns, err := r.pipeline.Configs().Campaigns(ctx)
	if err != nil {
		return err
	}
	menu := BuildMenu(campaigns)
	r.mu.Lock()
	r.menu = menu
	r.mu.Unlock()
	r.logger.Debug("context menu rebuilt", "items", len(menu.Items))
	return nil
}

// Menu returns the current menu tree.
func (r *Router) Menu() Menu {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.menu
}

// HandleMenuClick captures the clicked selection. It returns nil for items
// outside this menu family.
func (r *Router) HandleMenuClick(ctx context.Context, click MenuClick) *Notification {
	campaign, ok := CampaignForMenuItem(click.MenuItemID)
	if !ok {
		return nil
	}

	req := capture.Request{
		SelectedText: click.SelectionText,
		PageURL:      click.PageURL,
		PageTitle:    click.PageTitle,
		CampaignID:   campaign,
		CreatedAt:    r.now(),
		TabID:        click.TabID,
	}
	_, err := r.pipeline.Capture(ctx, req)
	n := NotificationFor(err)
	return &n
}

// HandleMessage dispatches a widget message.
func (r *Router) HandleMessage(ctx context.Context, msg Message) Response {
	switch msg.Type {
	case MessageSendSelection:
		req := capture.Request{
			SelectedText: msg.Selection,
			PageURL:      msg.URL,
			PageTitle:    msg.Title,
			Source:       msg.Source,
			CampaignID:   msg.Campaign,
			CreatedAt:    r.now(),
			TabID:        msg.TabID,
		}
		out, err := r.pipeline.Capture(ctx, req)
		if err != nil {
			return Response{OK: false, Error: WireError(err)}
		}
		stats := out.Stats
		return Response{OK: true, Stats: &stats, Domain: out.Domain}

	case MessageGetStats:
		out, err := ops.GetStats(ctx, r.pipeline.Stats(), msg.URL)
		if err != nil {
			r.logger.Warn("stats lookup failed", "error", err)
			return Response{OK: false, Error: string(errors.CodeOf(err))}
		}
		stats := out.Stats
		return Response{OK: true, Stats: &stats, Domain: out.Domain}

	default:
		return Response{OK: false, Error: WireUnknownMessage}
	}
}

// WireError maps a pipeline error to its message-response name.
func WireError(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrEmptySelection:
		return WireEmptySelection
	case errors.ErrNoWebhook:
		return WireNoWebhook
	case errors.ErrDeliveryFailed, errors.ErrCancelled:
		return WireNetworkError
	default:
		return string(errors.CodeOf(err))
	}
}

// NotificationFor maps a menu-click outcome to notification text.
func NotificationFor(err error) Notification {
	n := Notification{Title: NotificationTitle}
	if err == nil {
		n.OK = true
		n.Message = "Selection sent to n8n successfully."
		return n
	}
	switch errors.CodeOf(err) {
	case errors.ErrEmptySelection:
		n.Message = "No text selected."
	case errors.ErrNoWebhook:
		n.Message = "No n8n webhook URL configured. Open extension options to set it."
	default:
		n.Message = "Error sending to n8n. Check console and options."
	}
	return n
}

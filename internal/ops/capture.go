package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/classify"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/log"
	"github.com/hpungsan/painvault/internal/store"
	"github.com/hpungsan/painvault/internal/webhook"
)

// Pipeline turns one capture request into at most one webhook delivery and,
// on success, one stats increment.
//
// States run strictly in order: validating, configuring, delivering, then
// succeeding or failing. Nothing is retried.
type Pipeline struct {
	db       *sql.DB
	configs  *store.ConfigStore
	stats    *store.StatsStore
	sender   webhook.Sender
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithNotifier sets where statsUpdated notifications go.
func WithNotifier(n Notifier) PipelineOption {
	return func(p *Pipeline) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the clock used for timestamps and delivery log rows.
// The StatsStore keeps its own clock for day keys.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline wires a pipeline. database backs the delivery log.
func NewPipeline(database *sql.DB, configs *store.ConfigStore, stats *store.StatsStore, sender webhook.Sender, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		db:       database,
		configs:  configs,
		stats:    stats,
		sender:   sender,
		notifier: NopNotifier{},
		logger:   log.L(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configs returns the configuration store the pipeline reads.
func (p *Pipeline) Configs() *store.ConfigStore { return p.configs }

// Stats returns the stats store the pipeline writes.
func (p *Pipeline) Stats() *store.StatsStore { return p.stats }

// CaptureOutput is the result of a successful capture.
type CaptureOutput struct {
	DeliveryID string                 `json:"delivery_id,omitempty"`
	Domain     string                 `json:"domain"`
	Source     string                 `json:"source"`
	Campaign   string                 `json:"campaign"`
	StatusCode int                    `json:"status_code"`
	Stats      capture.DomainDayStats `json:"stats"`
}

// Normalize fills derived fields: source from the URL, the unspecified
// campaign, and the creation time.
func Normalize(req capture.Request, now time.Time) capture.Request {
	if strings.TrimSpace(req.Source) == "" {
		req.Source = classify.Source(req.PageURL)
	}
	if strings.TrimSpace(req.CampaignID) == "" {
		req.CampaignID = capture.UnspecifiedCampaign
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	return req
}

// Capture validates req, delivers it to the configured webhook and, on a
// 2xx response, increments today's counters for the page's domain.
func (p *Pipeline) Capture(ctx context.Context, req capture.Request) (*CaptureOutput, error) {
	// Validating
	if !req.HasSelection() {
		return nil, errors.NewEmptySelection()
	}
	req = Normalize(req, p.now())
	domain := classify.Domain(req.PageURL)

	// Configuring
	cfg, err := p.configs.DeliveryConfig(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.NewNoWebhook()
	}

	// Delivering
	result, sendErr := p.sender.Deliver(ctx, cfg, req.ToPayload())
	status := 0
	if result != nil {
		status = result.StatusCode
	}
	deliveryID := p.record(ctx, req, domain, status, sendErr)

	if sendErr != nil {
		// Failing
		p.logger.Warn("webhook delivery failed",
			"domain", domain,
			"campaign", req.CampaignID,
			"status", status,
			"error", sendErr,
		)
		return nil, sendErr
	}

	// Succeeding. The webhook has accepted the capture, so the count must
	// land even if the caller has gone away.
	stats, err := p.stats.IncrementAndGet(context.WithoutCancel(ctx), domain, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if req.TabID != "" {
		p.notifier.Publish(req.TabID, StatsUpdated{Type: StatsUpdatedType, Domain: domain, Stats: stats})
	}
	p.logger.Debug("capture delivered", "domain", domain, "campaign", req.CampaignID, "total", stats.Total)

	return &CaptureOutput{
		DeliveryID: deliveryID,
		Domain:     domain,
		Source:     req.Source,
		Campaign:   req.CampaignID,
		StatusCode: status,
		Stats:      stats,
	}, nil
}

// record appends the attempt to the delivery log. Log failures never fail
// the capture.
func (p *Pipeline) record(ctx context.Context, req capture.Request, domain string, status int, sendErr error) string {
	if p.db == nil {
		return ""
	}
	now := p.now()
	id, err := generateULID(now)
	if err != nil {
		p.logger.Warn("delivery log id", "error", err)
		return ""
	}

	d := &db.Delivery{
		ID:           id,
		CreatedAt:    now.Unix(),
		Domain:       domain,
		Source:       req.Source,
		CampaignID:   req.CampaignID,
		PageURL:      req.PageURL,
		PageTitle:    req.PageTitle,
		SelectedText: req.SelectedText,
		OK:           sendErr == nil,
		HTTPStatus:   status,
	}
	if sendErr != nil {
		d.ErrorCode = string(errors.CodeOf(sendErr))
		d.ErrorMessage = sendErr.Error()
	}

	// The request context may already be cancelled after a failed delivery.
	if err := db.InsertDelivery(context.WithoutCancel(ctx), p.db, d); err != nil {
		p.logger.Warn("delivery log insert", "error", err)
		return ""
	}
	return id
}

// TestWebhookInput selects the destination for a test ping.
// A nil Config means the stored delivery settings.
type TestWebhookInput struct {
	Config *capture.DeliveryConfig
}

// TestWebhookOutput is the result of a successful test ping.
type TestWebhookOutput struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

// TestWebhook sends the ping payload. It neither logs a delivery nor touches stats.
func (p *Pipeline) TestWebhook(ctx context.Context, input TestWebhookInput) (*TestWebhookOutput, error) {
	var cfg capture.DeliveryConfig
	if input.Config != nil {
		cfg = *input.Config
		cfg.AuthMode = capture.ParseAuthMode(string(cfg.AuthMode))
	} else {
		stored, err := p.configs.DeliveryConfig(ctx)
		if err != nil {
			return nil, err
		}
		cfg = stored
	}
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	if cfg.WebhookURL == "" {
		return nil, errors.NewNoWebhook()
	}

	ping := capture.PingPayload{
		Test:      true,
		Message:   capture.PingMessage,
		CreatedAt: capture.FormatTimestamp(p.now()),
	}
	result, err := p.sender.Deliver(ctx, cfg, ping)
	if err != nil {
		p.logger.Warn("webhook test failed", "error", err)
		return nil, err
	}
	return &TestWebhookOutput{
		OK:         true,
		StatusCode: result.StatusCode,
		Message:    "Test request succeeded. Check your n8n workflow logs.",
	}, nil
}

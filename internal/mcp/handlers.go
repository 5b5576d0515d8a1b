package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/hud"
	"github.com/hpungsan/painvault/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	pipeline *ops.Pipeline
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(database *sql.DB, cfg *config.Config, pipeline *ops.Pipeline) *Handlers {
	return &Handlers{db: database, cfg: cfg, pipeline: pipeline, now: time.Now}
}

// Request types for each tool

// SendRequest represents the arguments for capture_send.
type SendRequest struct {
	SelectedText string `json:"selected_text"`
	URL          string `json:"url,omitempty"`
	Title        string `json:"title,omitempty"`
	Source       string `json:"source,omitempty"`
	Campaign     string `json:"campaign,omitempty"`
}

// StatsRequest represents the arguments for capture_stats.
type StatsRequest struct {
	URL      string `json:"url,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Date     string `json:"date,omitempty"`
}

// CampaignsRequest represents the arguments for capture_campaigns.
type CampaignsRequest struct {
	Action    string             `json:"action,omitempty"`
	Campaigns []capture.Campaign `json:"campaigns,omitempty"`
}

// SettingsRequest represents the arguments for capture_settings and capture_test_webhook.
type SettingsRequest struct {
	Action           string `json:"action,omitempty"`
	WebhookURL       string `json:"webhook_url,omitempty"`
	AuthMode         string `json:"auth_mode,omitempty"`
	AuthToken        string `json:"auth_token,omitempty"`
	CustomHeaderName string `json:"custom_header_name,omitempty"`
}

// DeliveriesRequest represents the arguments for capture_deliveries.
type DeliveriesRequest struct {
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
	FailedOnly bool `json:"failed_only,omitempty"`
}

// PurgeRequest represents the arguments for capture_purge.
type PurgeRequest struct {
	StatsKeepDays         *int `json:"stats_keep_days,omitempty"`
	DeliveryOlderThanDays *int `json:"delivery_older_than_days,omitempty"`
}

// ExportRequest represents the arguments for capture_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
	Date string `json:"date,omitempty"`
}

// StatsWithProgress is capture_stats output for one domain and campaign.
type StatsWithProgress struct {
	*ops.GetStatsOutput
	Campaign string       `json:"campaign"`
	Progress hud.Progress `json:"progress"`
	Line     string       `json:"line"`
}

// Handler implementations

// HandleSend handles the capture_send tool call.
func (h *Handlers) HandleSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.pipeline.Capture(ctx, capture.Request{
		SelectedText: input.SelectedText,
		PageURL:      input.URL,
		PageTitle:    input.Title,
		Source:       input.Source,
		CampaignID:   input.Campaign,
		CreatedAt:    h.now(),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleStats handles the capture_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.URL == "" {
		result, err := ops.ListStats(ctx, h.pipeline.Stats(), ops.ListStatsInput{Date: input.Date})
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(result)
	}

	result, err := ops.GetStats(ctx, h.pipeline.Stats(), input.URL)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Campaign == "" {
		return successResult(result)
	}
	return successResult(StatsWithProgress{
		GetStatsOutput: result,
		Campaign:       input.Campaign,
		Progress:       hud.ProgressFor(result.Stats, input.Campaign),
		Line:           hud.StatsLine(result.Stats, input.Campaign),
	})
}

// HandleCampaigns handles the capture_campaigns tool call.
func (h *Handlers) HandleCampaigns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CampaignsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result *ops.CampaignsOutput
	switch input.Action {
	case "", "list":
		result, err = ops.ListCampaigns(ctx, h.pipeline.Configs())
	case "set":
		result, err = ops.SetCampaigns(ctx, h.pipeline.Configs(), input.Campaigns)
	default:
		err = errors.NewInvalidRequest("action must be list or set")
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSettings handles the capture_settings tool call.
func (h *Handlers) HandleSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result *ops.SettingsOutput
	switch input.Action {
	case "", "show":
		result, err = ops.GetSettings(ctx, h.pipeline.Configs(), ops.GetSettingsInput{})
	case "set":
		result, err = ops.SaveSettings(ctx, h.pipeline.Configs(), ops.SaveSettingsInput{
			WebhookURL:       input.WebhookURL,
			AuthMode:         input.AuthMode,
			AuthToken:        input.AuthToken,
			CustomHeaderName: input.CustomHeaderName,
		})
	default:
		err = errors.NewInvalidRequest("action must be show or set")
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTestWebhook handles the capture_test_webhook tool call.
func (h *Handlers) HandleTestWebhook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var testInput ops.TestWebhookInput
	if input.WebhookURL != "" {
		cfg, err := ops.ValidateDeliveryConfig(input.WebhookURL, input.AuthMode, input.AuthToken, input.CustomHeaderName)
		if err != nil {
			return errorResult(err), nil
		}
		testInput.Config = &cfg
	}

	result, err := h.pipeline.TestWebhook(ctx, testInput)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDeliveries handles the capture_deliveries tool call.
func (h *Handlers) HandleDeliveries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeliveriesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListDeliveries(ctx, h.db, ops.ListDeliveriesInput{
		Limit:      input.Limit,
		Offset:     input.Offset,
		FailedOnly: input.FailedOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePurge handles the capture_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.db, h.pipeline.Stats(), h.cfg, h.now(), ops.PurgeInput{
		StatsKeepDays:         input.StatsKeepDays,
		DeliveryOlderThanDays: input.DeliveryOlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the capture_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportStats(ctx, h.db, h.cfg, h.now(), ops.ExportInput{
		Path: input.Path,
		Date: input.Date,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from a VaultError.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var vErr *errors.VaultError
	if stderrors.As(err, &vErr) {
		msg := vErr.Message
		if err != error(vErr) {
			// Keep wrapper context
			msg = err.Error()
		}
		errorObj := map[string]any{
			"code":    vErr.Code,
			"message": msg,
			"status":  vErr.Status,
		}
		// Internal details can carry paths or SQL text
		if vErr.Code != errors.ErrInternal && vErr.Details != nil {
			errorObj["details"] = vErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

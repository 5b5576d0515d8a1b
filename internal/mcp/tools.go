package mcp

import "github.com/mark3labs/mcp-go/mcp"

var campaignSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id":    map[string]any{"type": "string", "description": "Sent to the webhook as the campaign field"},
		"label": map[string]any{"type": "string", "description": "Display label; emoji welcome"},
	},
	"required": []string{"id"},
}

var sendToolDef = mcp.NewTool("capture_send",
	mcp.WithDescription("Send a text selection to the configured n8n webhook. On success today's counters for the page's domain are incremented and returned."),
	mcp.WithString("selected_text", mcp.Required(), mcp.Description("The captured text; must not be blank")),
	mcp.WithString("url", mcp.Description("Page URL the text came from; its host keys the stats")),
	mcp.WithString("title", mcp.Description("Page title")),
	mcp.WithString("source", mcp.Description("Source label; derived from the URL when omitted")),
	mcp.WithString("campaign", mcp.Description("Campaign id; defaults to unspecified")),
)

var statsToolDef = mcp.NewTool("capture_stats",
	mcp.WithDescription("Read capture counters. With url: today's counters for that page's domain (plus goal progress when campaign is given). Without url: every domain for a day."),
	mcp.WithString("url", mcp.Description("Page URL whose domain to report")),
	mcp.WithString("campaign", mcp.Description("Campaign for goal progress (with url)")),
	mcp.WithString("date", mcp.Description("Day (YYYY-MM-DD) or 'all'; default today (without url)")),
)

var campaignsToolDef = mcp.NewTool("capture_campaigns",
	mcp.WithDescription("List or replace the campaign list. Replacing rebuilds the context menu."),
	mcp.WithString("action", mcp.Enum("list", "set"), mcp.Description("list (default) or set")),
	mcp.WithArray("campaigns", mcp.Items(campaignSchema), mcp.Description("New list for action=set, in display order")),
)

var settingsToolDef = mcp.NewTool("capture_settings",
	mcp.WithDescription("Show or update webhook delivery settings. Tokens are never returned."),
	mcp.WithString("action", mcp.Enum("show", "set"), mcp.Description("show (default) or set")),
	mcp.WithString("webhook_url", mcp.Description("Webhook URL (action=set); empty clears it")),
	mcp.WithString("auth_mode", mcp.Enum("none", "bearer", "custom_header"), mcp.Description("Auth mode (action=set)")),
	mcp.WithString("auth_token", mcp.Description("Bearer token or custom header value (action=set)")),
	mcp.WithString("custom_header_name", mcp.Description("Header name for custom_header (action=set)")),
)

var testWebhookToolDef = mcp.NewTool("capture_test_webhook",
	mcp.WithDescription("Send a test ping to the webhook. Uses the stored settings unless webhook_url is given."),
	mcp.WithString("webhook_url", mcp.Description("Override URL")),
	mcp.WithString("auth_mode", mcp.Enum("none", "bearer", "custom_header")),
	mcp.WithString("auth_token"),
	mcp.WithString("custom_header_name"),
)

var deliveriesToolDef = mcp.NewTool("capture_deliveries",
	mcp.WithDescription("List recent delivery attempts, newest first. Failed deliveries are never retried."),
	mcp.WithNumber("limit", mcp.Description("Max rows (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	mcp.WithBoolean("failed_only", mcp.Description("Only failed attempts")),
)

var purgeToolDef = mcp.NewTool("capture_purge",
	mcp.WithDescription("Apply retention: keep the N most recent stats days and drop old delivery log rows."),
	mcp.WithNumber("stats_keep_days", mcp.Description("Stats days to keep (default from config)")),
	mcp.WithNumber("delivery_older_than_days", mcp.Description("Drop delivery rows older than N days (default from config)")),
)

var exportToolDef = mcp.NewTool("capture_export",
	mcp.WithDescription("Export stats buckets to a JSONL file under ~/.painvault/exports or an allowed path."),
	mcp.WithString("path", mcp.Description("Destination .jsonl file")),
	mcp.WithString("date", mcp.Description("Only this day (YYYY-MM-DD)")),
)

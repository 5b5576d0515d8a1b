// Package capture holds the records that flow through the capture pipeline:
// the inbound request, the webhook payload, delivery settings, campaigns, and
// the per-day counters.
package capture

import (
	"strings"
	"time"
)

// UnspecifiedCampaign is the campaign id used when a capture names none.
const UnspecifiedCampaign = "unspecified"

// TimestampLayout matches the ISO-8601 form browsers emit (millisecond precision, UTC).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DateKeyLayout is the layout of stats day buckets (UTC).
const DateKeyLayout = "2006-01-02"

// Request is one capture as it enters the pipeline.
type Request struct {
	// SelectedText is required and must be non-empty after trimming
	SelectedText string

	PageURL   string
	PageTitle string

	// Source is derived from PageURL when empty
	Source string

	// CampaignID defaults to UnspecifiedCampaign
	CampaignID string

	// CreatedAt is stamped when the router dispatches the request
	CreatedAt time.Time

	// TabID identifies the originating page for stats-updated notifications (optional)
	TabID string
}

// Payload is the JSON body POSTed to the webhook.
type Payload struct {
	Source       string `json:"source"`
	URL          string `json:"url"`
	PageTitle    string `json:"page_title"`
	SelectedText string `json:"selected_text"`
	Campaign     string `json:"campaign"`
	CreatedAt    string `json:"created_at"`
}

// PingPayload is the JSON body of a settings test request.
type PingPayload struct {
	Test      bool   `json:"test"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// PingMessage is the message sent with every test ping.
const PingMessage = "n8n Capture test ping from extension options."

// ToPayload converts a normalized request into its wire form.
func (r Request) ToPayload() Payload {
	return Payload{
		Source:       r.Source,
		URL:          r.PageURL,
		PageTitle:    r.PageTitle,
		SelectedText: r.SelectedText,
		Campaign:     r.CampaignID,
		CreatedAt:    FormatTimestamp(r.CreatedAt),
	}
}

// HasSelection reports whether the request carries non-whitespace text.
func (r Request) HasSelection() bool {
	return strings.TrimSpace(r.SelectedText) != ""
}

// FormatTimestamp formats t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// DateKey returns the UTC day bucket for t.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// DomainDayStats counts successful captures for one (day, domain) bucket.
type DomainDayStats struct {
	Total      int            `json:"total"`
	ByCampaign map[string]int `json:"byCampaign"`
}

// NewDomainDayStats returns a zero-valued bucket with an empty (non-nil) campaign map.
func NewDomainDayStats() DomainDayStats {
	return DomainDayStats{ByCampaign: map[string]int{}}
}

// CampaignCount returns the count for one campaign (0 if absent).
func (s DomainDayStats) CampaignCount(campaignID string) int {
	return s.ByCampaign[campaignID]
}

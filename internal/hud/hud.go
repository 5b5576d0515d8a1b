// Package hud models the on-page capture widget: what it shows for a
// domain, how capture outcomes read to the user, and daily goal progress.
package hud

import (
	"context"
	"fmt"
	"math"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/ops"
	"github.com/hpungsan/painvault/internal/store"
)

// DailyGoal is the per-campaign, per-domain, per-day capture target.
const DailyGoal = 10

// Kind colors a status line.
type Kind string

const (
	KindInfo    Kind = "info"
	KindWarn    Kind = "warn"
	KindError   Kind = "error"
	KindSuccess Kind = "success"
)

// Status is the widget's one-line status text.
type Status struct {
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
}

// Status texts
var (
	StatusSending  = Status{Text: "Sending to n8n…", Kind: KindInfo}
	StatusCaptured = Status{Text: "Captured ✅", Kind: KindSuccess}
	StatusDisabled = Status{Text: "Enable HUD for this site first.", Kind: KindWarn}
	StatusNoText   = Status{Text: "No text selected. Highlight something spicy first.", Kind: KindWarn}
	StatusFailed   = Status{Text: "Error sending. Check extension options.", Kind: KindError}
)

// State is everything the widget renders for one page.
type State struct {
	Domain             string                 `json:"domain"`
	Enabled            bool                   `json:"enabled"`
	Campaigns          []capture.Campaign     `json:"campaigns"`
	SelectedCampaignID string                 `json:"selectedCampaignId"`
	Stats              capture.DomainDayStats `json:"stats"`
	Status             Status                 `json:"status"`
}

// Load reads the widget state for domain. With no stored campaigns the
// defaults are offered; the first campaign starts selected.
func Load(ctx context.Context, configs *store.ConfigStore, domain string) (*State, error) {
	enabled, err := configs.HudEnabled(ctx, domain)
	if err != nil {
		return nil, err
	}
	campaigns, err := configs.Campaigns(ctx)
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		campaigns = capture.DefaultCampaignList()
	}

	s := &State{
		Domain:    domain,
		Enabled:   enabled,
		Campaigns: campaigns,
		Stats:     capture.NewDomainDayStats(),
	}
	if len(campaigns) > 0 {
		s.SelectedCampaignID = campaigns[0].ID
	}
	return s, nil
}

// SelectCampaign switches the selected campaign. Unknown ids are refused.
func (s *State) SelectCampaign(id string) bool {
	if _, ok := capture.FindCampaign(s.Campaigns, id); !ok {
		return false
	}
	s.SelectedCampaignID = id
	return true
}

// ApplyStats replaces the counters when they belong to this domain.
func (s *State) ApplyStats(domain string, stats capture.DomainDayStats) bool {
	if domain != s.Domain {
		return false
	}
	if stats.ByCampaign == nil {
		stats.ByCampaign = map[string]int{}
	}
	s.Stats = stats
	return true
}

// ApplyStatsUpdate applies a statsUpdated notification. Notifications for
// other domains are ignored.
func (s *State) ApplyStatsUpdate(n ops.StatsUpdated) bool {
	return s.ApplyStats(n.Domain, n.Stats)
}

// BeginCapture reports whether a capture should be sent and sets the status.
func (s *State) BeginCapture(selection string) bool {
	switch {
	case !s.Enabled:
		s.Status = StatusDisabled
		return false
	case !(capture.Request{SelectedText: selection}).HasSelection():
		s.Status = StatusNoText
		return false
	default:
		s.Status = StatusSending
		return true
	}
}

// FinishCapture records the capture outcome in the status line.
func (s *State) FinishCapture(err error) {
	s.Status = StatusFor(err)
}

// Progress returns goal progress for the selected campaign.
func (s *State) Progress() Progress {
	return ProgressFor(s.Stats, s.SelectedCampaignID)
}

// StatsLine returns the counter text for the selected campaign.
func (s *State) StatsLine() string {
	return StatsLine(s.Stats, s.SelectedCampaignID)
}

// StatusFor maps a capture outcome to status text.
func StatusFor(err error) Status {
	if err == nil {
		return StatusCaptured
	}
	switch errors.CodeOf(err) {
	case errors.ErrEmptySelection:
		return StatusNoText
	case errors.ErrNoWebhook:
		return Status{Text: "No n8n webhook URL configured. Open extension options to set it.", Kind: KindError}
	default:
		return StatusFailed
	}
}

// Progress is the daily goal bar for one campaign.
type Progress struct {
	Total    int  `json:"total"`
	Campaign int  `json:"campaign"`
	Goal     int  `json:"goal"`
	Percent  int  `json:"percent"`
	GoalHit  bool `json:"goalHit"`
}

// ProgressFor computes goal progress; the percentage is rounded and capped at 100.
func ProgressFor(stats capture.DomainDayStats, campaignID string) Progress {
	count := stats.CampaignCount(campaignID)
	pct := int(math.Round(float64(count) / float64(DailyGoal) * 100))
	if pct > 100 {
		pct = 100
	}
	return Progress{
		Total:    stats.Total,
		Campaign: count,
		Goal:     DailyGoal,
		Percent:  pct,
		GoalHit:  pct >= 100,
	}
}

// StatsLine renders "💾 Captures today: N (M in this campaign)", with a
// goal marker once the campaign reaches the daily goal.
func StatsLine(stats capture.DomainDayStats, campaignID string) string {
	p := ProgressFor(stats, campaignID)
	line := fmt.Sprintf("💾 Captures today: %d (%d in this campaign)", p.Total, p.Campaign)
	if p.GoalHit {
		line += "  🔥 Goal hit!"
	}
	return line
}

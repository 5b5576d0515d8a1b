package ops

import (
	"context"
	"time"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/classify"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/store"
)

// GetStatsOutput is today's bucket for one page's domain.
type GetStatsOutput struct {
	Domain string                 `json:"domain"`
	Date   string                 `json:"date"`
	Stats  capture.DomainDayStats `json:"stats"`
}

// GetStats returns today's counters for the domain of pageURL.
func GetStats(ctx context.Context, stats *store.StatsStore, pageURL string) (*GetStatsOutput, error) {
	domain := classify.Domain(pageURL)
	s, err := stats.Today(ctx, domain)
	if err != nil {
		return nil, err
	}
	return &GetStatsOutput{Domain: domain, Date: stats.TodayKey(), Stats: s}, nil
}

// ListStatsInput selects one day ("" = today, "all" = every day).
type ListStatsInput struct {
	Date string
}

// ListStatsOutput lists per-domain buckets.
type ListStatsOutput struct {
	Date  string              `json:"date,omitempty"`
	Items []db.DomainStatsRow `json:"items"`
}

// ListStats returns every domain bucket for the selected day.
func ListStats(ctx context.Context, stats *store.StatsStore, input ListStatsInput) (*ListStatsOutput, error) {
	date := input.Date
	switch date {
	case "":
		date = stats.TodayKey()
	case "all":
		date = ""
	default:
		if _, err := time.Parse(capture.DateKeyLayout, date); err != nil {
			return nil, errors.NewInvalidRequest("date must be YYYY-MM-DD or all")
		}
	}
	rows, err := stats.List(ctx, date)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []db.DomainStatsRow{}
	}
	return &ListStatsOutput{Date: date, Items: rows}, nil
}

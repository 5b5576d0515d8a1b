package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/errors"
)

// ExportSchemaVersion is written into every export header.
const ExportSchemaVersion = "1.0"

// ExportInput selects what ExportStats writes and where.
type ExportInput struct {
	Path string // default: ~/.painvault/exports/stats-<date|all>-<timestamp>.jsonl
	Date string // one day (YYYY-MM-DD); empty exports every retained day
}

// ExportOutput reports a finished export.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a stats export.
type ExportHeader struct {
	PainvaultExport bool   `json:"_painvault_export"`
	SchemaVersion   string `json:"schema_version"`
	ExportedAt      int64  `json:"exported_at"`
	Date            string `json:"date,omitempty"`
}

// ExportRecord is one line per (day, domain) bucket.
type ExportRecord struct {
	Date       string         `json:"date"`
	Domain     string         `json:"domain"`
	Total      int            `json:"total"`
	ByCampaign map[string]int `json:"byCampaign"`
}

// ExportStats writes the daily stats buckets as JSONL: a header line, then
// one ExportRecord per bucket.
func ExportStats(ctx context.Context, database *sql.DB, cfg *config.Config, now time.Time, input ExportInput) (*ExportOutput, error) {
	if input.Date != "" {
		if _, err := time.Parse(capture.DateKeyLayout, input.Date); err != nil {
			return nil, errors.NewInvalidRequest("date must be YYYY-MM-DD")
		}
	}

	requested := input.Path
	if requested == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		requested = filepath.Join(dir, exportFileName(input.Date, now))
	}
	path, err := ResolveExportPath(requested, cfg)
	if err != nil {
		return nil, err
	}

	buckets, err := db.ListStats(ctx, database, input.Date)
	if err != nil {
		return nil, err
	}

	out := &ExportOutput{Path: path, ExportedAt: now.Unix()}
	err = writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		header := ExportHeader{
			PainvaultExport: true,
			SchemaVersion:   ExportSchemaVersion,
			ExportedAt:      out.ExportedAt,
			Date:            input.Date,
		}
		if err := enc.Encode(header); err != nil {
			return errors.NewInternal(err)
		}
		for _, b := range buckets {
			if ctx.Err() != nil {
				return errors.NewCancelled("export")
			}
			if err := enc.Encode(ExportRecord{
				Date:       b.DateKey,
				Domain:     b.Domain,
				Total:      b.Stats.Total,
				ByCampaign: b.Stats.ByCampaign,
			}); err != nil {
				return errors.NewInternal(err)
			}
			out.Count++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// exportFileName is stats-<date|all>-<UTC timestamp>.jsonl.
func exportFileName(date string, now time.Time) string {
	if date == "" {
		date = "all"
	}
	return fmt.Sprintf("stats-%s-%s%s", date, now.UTC().Format("2006-01-02T150405"), exportExt)
}

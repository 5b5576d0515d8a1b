package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/errors"
)

// DomainStatsRow is one (day, domain) bucket with its campaign breakdown.
type DomainStatsRow struct {
	DateKey string                 `json:"date"`
	Domain  string                 `json:"domain"`
	Stats   capture.DomainDayStats `json:"stats"`
}

// IncrementStats bumps the (dateKey, domain) bucket and returns its new value.
// total always increments; the campaign counter only when campaignID is non-empty.
// The increment and the read-back share one transaction.
func IncrementStats(ctx context.Context, db *sql.DB, dateKey, domain, campaignID string) (capture.DomainDayStats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return capture.DomainDayStats{}, errors.NewInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stats_totals (date_key, domain, total) VALUES (?, ?, 1)
		ON CONFLICT(date_key, domain) DO UPDATE SET total = total + 1
	`, dateKey, domain)
	if err != nil {
		return capture.DomainDayStats{}, errors.NewInternal(err)
	}

	if campaignID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stats_campaigns (date_key, domain, campaign_id, count) VALUES (?, ?, ?, 1)
			ON CONFLICT(date_key, domain, campaign_id) DO UPDATE SET count = count + 1
		`, dateKey, domain, campaignID)
		if err != nil {
			return capture.DomainDayStats{}, errors.NewInternal(err)
		}
	}

	stats, err := readBucket(ctx, tx, dateKey, domain)
	if err != nil {
		return capture.DomainDayStats{}, err
	}

	if err := tx.Commit(); err != nil {
		return capture.DomainDayStats{}, errors.NewInternal(err)
	}
	return stats, nil
}

// GetStats returns the (dateKey, domain) bucket, zero-valued if absent.
func GetStats(ctx context.Context, db *sql.DB, dateKey, domain string) (capture.DomainDayStats, error) {
	return readBucket(ctx, db, dateKey, domain)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readBucket(ctx context.Context, q queryer, dateKey, domain string) (capture.DomainDayStats, error) {
	stats := capture.NewDomainDayStats()

	err := q.QueryRowContext(ctx,
		"SELECT total FROM stats_totals WHERE date_key = ? AND domain = ?",
		dateKey, domain,
	).Scan(&stats.Total)
	if err != nil && err != sql.ErrNoRows {
		return capture.DomainDayStats{}, errors.NewInternal(err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT campaign_id, count FROM stats_campaigns WHERE date_key = ? AND domain = ?",
		dateKey, domain,
	)
	if err != nil {
		return capture.DomainDayStats{}, errors.NewInternal(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return capture.DomainDayStats{}, errors.NewInternal(err)
		}
		stats.ByCampaign[id] = count
	}
	if err := rows.Err(); err != nil {
		return capture.DomainDayStats{}, errors.NewInternal(err)
	}

	return stats, nil
}

// ListStats returns every bucket, newest day first, domains alphabetical.
// An empty dateKey lists all days.
func ListStats(ctx context.Context, db *sql.DB, dateKey string) ([]DomainStatsRow, error) {
	query := "SELECT date_key, domain, total FROM stats_totals"
	var args []any
	if dateKey != "" {
		query += " WHERE date_key = ?"
		args = append(args, dateKey)
	}
	query += " ORDER BY date_key DESC, domain ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var result []DomainStatsRow
	index := make(map[[2]string]int)
	for rows.Next() {
		row := DomainStatsRow{Stats: capture.NewDomainDayStats()}
		if err := rows.Scan(&row.DateKey, &row.Domain, &row.Stats.Total); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		index[[2]string{row.DateKey, row.Domain}] = len(result)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.NewInternal(err)
	}
	rows.Close()

	campQuery := "SELECT date_key, domain, campaign_id, count FROM stats_campaigns"
	if dateKey != "" {
		campQuery += " WHERE date_key = ?"
	}
	campRows, err := db.QueryContext(ctx, campQuery, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer campRows.Close()

	for campRows.Next() {
		var d, dom, id string
		var count int
		if err := campRows.Scan(&d, &dom, &id, &count); err != nil {
			return nil, errors.NewInternal(err)
		}
		if i, ok := index[[2]string{d, dom}]; ok {
			result[i].Stats.ByCampaign[id] = count
		}
	}
	if err := campRows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return result, nil
}

// PruneStats keeps only the keepDays most recent day buckets and returns
// how many day keys were removed. keepDays <= 0 is a no-op.
func PruneStats(ctx context.Context, db *sql.DB, keepDays int) (int, error) {
	if keepDays <= 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	keep := `
		SELECT date_key FROM (
			SELECT date_key FROM stats_totals
			UNION
			SELECT date_key FROM stats_campaigns
		) ORDER BY date_key DESC LIMIT ?
	`

	var removed int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT date_key FROM stats_totals
			UNION
			SELECT date_key FROM stats_campaigns
		) WHERE date_key NOT IN (`+keep+`)
	`, keepDays).Scan(&removed)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM stats_campaigns WHERE date_key NOT IN ("+keep+")", keepDays); err != nil {
		return 0, errors.NewInternal(err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM stats_totals WHERE date_key NOT IN ("+keep+")", keepDays); err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return removed, nil
}

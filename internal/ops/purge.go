package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/store"
)

// PurgeInput contains parameters for the Purge operation.
// Nil fields fall back to the configured retention.
type PurgeInput struct {
	StatsKeepDays         *int // keep the N most recent stats days
	DeliveryOlderThanDays *int // drop delivery log rows older than N days
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	StatsDaysRemoved  int    `json:"stats_days_removed"`
	DeliveriesRemoved int    `json:"deliveries_removed"`
	Message           string `json:"message"`
}

// Purge applies stats and delivery log retention.
func Purge(ctx context.Context, database *sql.DB, stats *store.StatsStore, cfg *config.Config, now time.Time, input PurgeInput) (*PurgeOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	keepDays := cfg.StatsRetentionDays
	if input.StatsKeepDays != nil {
		keepDays = *input.StatsKeepDays
	}
	olderThan := cfg.DeliveryLogRetentionDays
	if input.DeliveryOlderThanDays != nil {
		olderThan = *input.DeliveryOlderThanDays
	}

	days, err := stats.Prune(ctx, keepDays)
	if err != nil {
		return nil, err
	}

	rows := 0
	if olderThan > 0 {
		cutoff := now.Add(-time.Duration(olderThan) * 24 * time.Hour).Unix()
		rows, err = db.PruneDeliveries(ctx, database, cutoff)
		if err != nil {
			return nil, err
		}
	}

	return &PurgeOutput{
		StatsDaysRemoved:  days,
		DeliveriesRemoved: rows,
		Message:           formatPurgeMessage(days, rows),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(days, rows int) string {
	if days == 0 && rows == 0 {
		return "Nothing to purge"
	}
	return fmt.Sprintf("Removed %d stats %s and %d delivery log %s",
		days, plural(days, "day", "days"), rows, plural(rows, "row", "rows"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

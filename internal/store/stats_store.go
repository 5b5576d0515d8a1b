package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/db"
)

// StatsStore keeps per-day, per-domain capture counters.
//
// All increments go through one mutex, so concurrent captures for the same
// bucket never lose an update.
type StatsStore struct {
	db  *sql.DB
	now func() time.Time

	mu sync.Mutex
}

// NewStatsStore creates a StatsStore. A nil clock means time.Now.
func NewStatsStore(database *sql.DB, now func() time.Time) *StatsStore {
	if now == nil {
		now = time.Now
	}
	return &StatsStore{db: database, now: now}
}

// TodayKey returns the current UTC day bucket.
func (s *StatsStore) TodayKey() string {
	return capture.DateKey(s.now())
}

// IncrementAndGet bumps today's bucket for domain and returns the new value.
// The campaign counter only moves when campaignID is non-empty.
func (s *StatsStore) IncrementAndGet(ctx context.Context, domain, campaignID string) (capture.DomainDayStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return db.IncrementStats(ctx, s.db, s.TodayKey(), domain, campaignID)
}

// Today returns today's bucket for domain, zero-valued if absent.
func (s *StatsStore) Today(ctx context.Context, domain string) (capture.DomainDayStats, error) {
	return db.GetStats(ctx, s.db, s.TodayKey(), domain)
}

// Day returns an arbitrary bucket.
func (s *StatsStore) Day(ctx context.Context, dateKey, domain string) (capture.DomainDayStats, error) {
	return db.GetStats(ctx, s.db, dateKey, domain)
}

// List returns all buckets for dateKey ("" for every day).
func (s *StatsStore) List(ctx context.Context, dateKey string) ([]db.DomainStatsRow, error) {
	return db.ListStats(ctx, s.db, dateKey)
}

// Prune keeps the keepDays most recent day buckets.
func (s *StatsStore) Prune(ctx context.Context, keepDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return db.PruneStats(ctx, s.db, keepDays)
}

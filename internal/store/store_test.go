package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/db"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestConfigStore_FirstRunDefaults(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	ctx := context.Background()

	cfg, err := s.DeliveryConfig(ctx)
	require.NoError(t, err)
	require.Empty(t, cfg.WebhookURL)
	require.Equal(t, capture.AuthNone, cfg.AuthMode)

	campaigns, err := s.Campaigns(ctx)
	require.NoError(t, err)
	require.NotNil(t, campaigns)
	require.Empty(t, campaigns)

	enabled, err := s.HudEnabled(ctx, "example.com")
	require.NoError(t, err)
	require.False(t, enabled)

	rec, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, rec.WebhookURL)
	require.Empty(t, rec.HudEnabledDomains)
}

func TestConfigStore_DeliveryConfigRoundTrip(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	ctx := context.Background()

	want := capture.DeliveryConfig{
		WebhookURL:       "https://n8n.example.com/webhook/capture",
		AuthMode:         capture.AuthCustomHeader,
		AuthToken:        "secret",
		CustomHeaderName: "X-Api-Key",
	}
	require.NoError(t, s.SaveDeliveryConfig(ctx, want))

	got, err := s.DeliveryConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestConfigStore_SaveDeliveryConfigDefaultsMode(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	ctx := context.Background()

	require.NoError(t, s.SaveDeliveryConfig(ctx, capture.DeliveryConfig{WebhookURL: "https://x"}))

	rec, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, "none", rec.AuthType)
}

func TestConfigStore_CampaignRoundTrip(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	ctx := context.Background()

	want := []capture.Campaign{
		{ID: "vibe_memes", Label: "🌈 Vibe Code Memes"},
		{ID: "blog_posts", Label: "📚 Ghost Blog"},
		{ID: "vibe_memes", Label: "duplicate kept"},
	}
	require.NoError(t, s.SetCampaigns(ctx, want))

	got, err := s.Campaigns(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestConfigStore_OnChange(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	ctx := context.Background()

	var mu sync.Mutex
	var seen [][]capture.Campaign
	unsubscribe := s.OnChange(func(c []capture.Campaign) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, c)
	})

	require.NoError(t, s.SetCampaigns(ctx, []capture.Campaign{{ID: "a", Label: "A"}}))
	require.NoError(t, s.SetCampaigns(ctx, nil))

	unsubscribe()
	require.NoError(t, s.SetCampaigns(ctx, []capture.Campaign{{ID: "b", Label: "B"}}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	require.Equal(t, []capture.Campaign{{ID: "a", Label: "A"}}, seen[0])
	require.Empty(t, seen[1])
}

func TestConfigStore_DeliveryConfigDoesNotNotify(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	calls := 0
	s.OnChange(func([]capture.Campaign) { calls++ })

	require.NoError(t, s.SaveDeliveryConfig(context.Background(), capture.DeliveryConfig{WebhookURL: "https://x"}))
	require.NoError(t, s.SetHudEnabled(context.Background(), "example.com", true))
	require.Equal(t, 0, calls)
}

func TestConfigStore_HudEnabled(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	ctx := context.Background()

	require.NoError(t, s.SetHudEnabled(ctx, "example.com", true))
	require.NoError(t, s.SetHudEnabled(ctx, "reddit.com", true))

	on, err := s.HudEnabled(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, on)

	require.NoError(t, s.SetHudEnabled(ctx, "example.com", false))
	on, err = s.HudEnabled(ctx, "example.com")
	require.NoError(t, err)
	require.False(t, on)

	rec, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"reddit.com": true}, rec.HudEnabledDomains)
}

func TestConfigStore_ConcurrentHudTogglesAreNotLost(t *testing.T) {
	s := NewConfigStore(setupDB(t))
	ctx := context.Background()

	const domains = 16
	var wg sync.WaitGroup
	errs := make(chan error, domains)
	for i := 0; i < domains; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.SetHudEnabled(ctx, fmt.Sprintf("site%02d.example", i), true)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, err := s.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, rec.HudEnabledDomains, domains)
}

func TestStatsStore_IncrementAndToday(t *testing.T) {
	s := NewStatsStore(setupDB(t), fixedClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	before, err := s.Today(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, 0, before.Total)

	_, err = s.IncrementAndGet(ctx, "example.com", "vibe_memes")
	require.NoError(t, err)
	got, err := s.IncrementAndGet(ctx, "example.com", "vibe_memes")
	require.NoError(t, err)

	require.Equal(t, 2, got.Total)
	require.Equal(t, map[string]int{"vibe_memes": 2}, got.ByCampaign)

	today, err := s.Today(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, got, today)

	day, err := s.Day(ctx, "2026-05-01", "example.com")
	require.NoError(t, err)
	require.Equal(t, got, day)
	require.Equal(t, "2026-05-01", s.TodayKey())
}

func TestStatsStore_DayRollover(t *testing.T) {
	now := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	s := NewStatsStore(setupDB(t), func() time.Time { return now })
	ctx := context.Background()

	_, err := s.IncrementAndGet(ctx, "example.com", "a")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	today, err := s.Today(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, 0, today.Total)

	rows, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2026-05-01", rows[0].DateKey)
}

func TestStatsStore_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := NewStatsStore(setupDB(t), fixedClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.IncrementAndGet(ctx, "example.com", "c"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Today(ctx, "example.com")
	require.NoError(t, err)
	require.Equal(t, n, got.Total)
	require.Equal(t, n, got.ByCampaign["c"])
}

func TestStatsStore_Prune(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewStatsStore(setupDB(t), func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.IncrementAndGet(ctx, "example.com", "")
		require.NoError(t, err)
		now = now.AddDate(0, 0, 1)
	}

	removed, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
}

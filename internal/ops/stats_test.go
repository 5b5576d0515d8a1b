package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/painvault/internal/errors"
)

func TestGetStats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	out, err := GetStats(ctx, f.stats, "https://news.ycombinator.com/item?id=1")
	require.NoError(t, err)
	require.Equal(t, "news.ycombinator.com", out.Domain)
	require.Equal(t, "2026-03-14", out.Date)
	require.Equal(t, 0, out.Stats.Total)
	require.NotNil(t, out.Stats.ByCampaign)

	_, err = f.stats.IncrementAndGet(ctx, "news.ycombinator.com", "blog_posts")
	require.NoError(t, err)

	out, err = GetStats(ctx, f.stats, "https://news.ycombinator.com/")
	require.NoError(t, err)
	require.Equal(t, 1, out.Stats.Total)
	require.Equal(t, 1, out.Stats.ByCampaign["blog_posts"])
}

func TestListStats(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	out, err := ListStats(ctx, f.stats, ListStatsInput{})
	require.NoError(t, err)
	require.Equal(t, "2026-03-14", out.Date)
	require.NotNil(t, out.Items)
	require.Empty(t, out.Items)

	_, err = f.stats.IncrementAndGet(ctx, "b.example", "x")
	require.NoError(t, err)
	_, err = f.stats.IncrementAndGet(ctx, "a.example", "x")
	require.NoError(t, err)

	out, err = ListStats(ctx, f.stats, ListStatsInput{Date: "all"})
	require.NoError(t, err)
	require.Empty(t, out.Date)
	require.Len(t, out.Items, 2)
	require.Equal(t, "a.example", out.Items[0].Domain)
}

func TestListStats_InvalidDate(t *testing.T) {
	f := setup(t)

	_, err := ListStats(context.Background(), f.stats, ListStatsInput{Date: "14/03/2026"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

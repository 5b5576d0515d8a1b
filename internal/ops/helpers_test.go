package ops

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/log"
	"github.com/hpungsan/painvault/internal/store"
	"github.com/hpungsan/painvault/internal/webhook"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func fixedClock() time.Time { return testNow }

// hook is a webhook endpoint that records requests and answers with status.
type hook struct {
	srv    *httptest.Server
	status atomic.Int32
	calls  atomic.Int32

	mu     sync.Mutex
	bodies [][]byte
	header []http.Header
}

func newHook(t *testing.T, status int) *hook {
	t.Helper()
	h := &hook{}
	h.status.Store(int32(status))
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.calls.Add(1)
		buf, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.bodies = append(h.bodies, buf)
		h.header = append(h.header, r.Header.Clone())
		h.mu.Unlock()
		w.WriteHeader(int(h.status.Load()))
		_, _ = w.Write([]byte(`{"message":"Workflow was started"}`))
	}))
	t.Cleanup(h.srv.Close)
	return h
}

type recordingNotifier struct {
	mu    sync.Mutex
	tabs  []string
	notes []StatsUpdated
}

func (n *recordingNotifier) Publish(tabID string, u StatsUpdated) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tabs = append(n.tabs, tabID)
	n.notes = append(n.notes, u)
}

type fixture struct {
	db       *sql.DB
	configs  *store.ConfigStore
	stats    *store.StatsStore
	pipeline *Pipeline
	notifier *recordingNotifier
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		db:       database,
		configs:  store.NewConfigStore(database),
		stats:    store.NewStatsStore(database, fixedClock),
		notifier: &recordingNotifier{},
	}
	f.pipeline = NewPipeline(database, f.configs, f.stats, webhook.NewClient(2*time.Second),
		WithNotifier(f.notifier),
		WithLogger(log.Discard()),
		WithClock(fixedClock),
	)
	return f
}

func (f *fixture) setWebhook(t *testing.T, cfg capture.DeliveryConfig) {
	t.Helper()
	require.NoError(t, f.configs.SaveDeliveryConfig(context.Background(), cfg))
}

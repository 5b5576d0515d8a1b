package router

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hpungsan/painvault/internal/log"
	"github.com/hpungsan/painvault/internal/ops"
)

// subscriptionBuffer is how many notifications a slow subscriber may lag
// before newer ones are dropped.
const subscriptionBuffer = 16

// Subscription receives statsUpdated notifications for one tab.
type Subscription struct {
	ID    string
	TabID string
	C     <-chan ops.StatsUpdated

	ch chan ops.StatsUpdated
}

// Hub fans statsUpdated notifications out to tab-scoped subscribers.
// It implements ops.Notifier. Publish never blocks.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		logger: log.L(),
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers a listener for tabID.
func (h *Hub) Subscribe(tabID string) *Subscription {
	ch := make(chan ops.StatsUpdated, subscriptionBuffer)
	sub := &Subscription{
		ID:    uuid.NewString(),
		TabID: tabID,
		C:     ch,
		ch:    ch,
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes a listener and closes its channel. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

// Publish sends n to every subscriber of tabID. A tab with no subscriber
// is not an error; a full subscriber drops the notification.
func (h *Hub) Publish(tabID string, n ops.StatsUpdated) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.TabID != tabID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			h.logger.Debug("dropping stats notification", "tab", tabID, "subscription", sub.ID)
		}
	}
}

// Subscribers returns how many listeners tabID has.
func (h *Hub) Subscribers(tabID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, sub := range h.subs {
		if sub.TabID == tabID {
			n++
		}
	}
	return n
}

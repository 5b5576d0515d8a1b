// Package ops implements the operations shared by the CLI, the MCP server
// and the extension bridge.
package ops

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/painvault/internal/capture"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// StatsUpdatedType is the notification type pushed after a successful capture.
const StatsUpdatedType = "statsUpdated"

// StatsUpdated tells a page that its domain's counters changed.
type StatsUpdated struct {
	Type   string                 `json:"type"`
	Domain string                 `json:"domain"`
	Stats  capture.DomainDayStats `json:"stats"`
}

// Notifier delivers StatsUpdated to the page identified by tabID.
// Publishing to a tab with no live listener is not an error.
type Notifier interface {
	Publish(tabID string, n StatsUpdated)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(string, StatsUpdated) {}

// clampPage applies list defaults and bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// generateULID generates a new ULID for the given time.
func generateULID(t time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Package store exposes the two persisted records behind the capture
// pipeline: the user's delivery settings (ConfigStore) and the daily
// capture counters (StatsStore).
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/errors"
)

// Persisted record keys. Names match the synced record the browser shim reads.
const (
	KeyWebhookURL       = "n8nWebhookUrl"
	KeyAuthType         = "n8nAuthType"
	KeyAuthToken        = "n8nAuthToken"
	KeyCustomHeaderName = "n8nCustomHeaderName"
	KeyCampaigns        = "campaigns"
	KeyHudEnabled       = "hudEnabledDomains"
)

// Record is the whole persisted configuration record.
type Record struct {
	WebhookURL        string             `json:"n8nWebhookUrl"`
	AuthType          string             `json:"n8nAuthType"`
	AuthToken         string             `json:"n8nAuthToken"`
	CustomHeaderName  string             `json:"n8nCustomHeaderName"`
	Campaigns         []capture.Campaign `json:"campaigns"`
	HudEnabledDomains map[string]bool    `json:"hudEnabledDomains"`
}

// ChangeFunc is called with the new campaign list after SetCampaigns.
type ChangeFunc func(campaigns []capture.Campaign)

// ConfigStore reads and writes the configuration record.
// Reads tolerate missing keys and substitute zero values.
type ConfigStore struct {
	db *sql.DB

	// hudMu serializes the read-modify-write of the HUD domain map.
	hudMu sync.Mutex

	mu        sync.Mutex
	nextID    int
	listeners map[int]ChangeFunc
}

// NewConfigStore creates a ConfigStore over an initialized database.
func NewConfigStore(database *sql.DB) *ConfigStore {
	return &ConfigStore{
		db:        database,
		listeners: make(map[int]ChangeFunc),
	}
}

// DeliveryConfig loads the webhook destination and credentials.
func (s *ConfigStore) DeliveryConfig(ctx context.Context) (capture.DeliveryConfig, error) {
	raw, err := db.GetSettings(ctx, s.db, KeyWebhookURL, KeyAuthType, KeyAuthToken, KeyCustomHeaderName)
	if err != nil {
		return capture.DeliveryConfig{}, err
	}

	var cfg capture.DeliveryConfig
	var authType string
	if err := decodeString(raw, KeyWebhookURL, &cfg.WebhookURL); err != nil {
		return capture.DeliveryConfig{}, err
	}
	if err := decodeString(raw, KeyAuthType, &authType); err != nil {
		return capture.DeliveryConfig{}, err
	}
	if err := decodeString(raw, KeyAuthToken, &cfg.AuthToken); err != nil {
		return capture.DeliveryConfig{}, err
	}
	if err := decodeString(raw, KeyCustomHeaderName, &cfg.CustomHeaderName); err != nil {
		return capture.DeliveryConfig{}, err
	}
	cfg.AuthMode = capture.ParseAuthMode(authType)

	return cfg, nil
}

// SaveDeliveryConfig writes all four delivery keys together.
// The grouping is one transaction; it is not coordinated with other keys.
func (s *ConfigStore) SaveDeliveryConfig(ctx context.Context, cfg capture.DeliveryConfig) error {
	mode := cfg.AuthMode
	if mode == "" {
		mode = capture.AuthNone
	}
	values := map[string]any{
		KeyWebhookURL:       cfg.WebhookURL,
		KeyAuthType:         string(mode),
		KeyAuthToken:        cfg.AuthToken,
		KeyCustomHeaderName: cfg.CustomHeaderName,
	}
	encoded, err := encodeValues(values)
	if err != nil {
		return err
	}
	return db.PutSettings(ctx, s.db, encoded)
}

// Campaigns returns the configured campaigns in stored order (empty on first run).
func (s *ConfigStore) Campaigns(ctx context.Context) ([]capture.Campaign, error) {
	raw, err := db.GetSettings(ctx, s.db, KeyCampaigns)
	if err != nil {
		return nil, err
	}
	campaigns := make([]capture.Campaign, 0)
	if v, ok := raw[KeyCampaigns]; ok {
		if err := json.Unmarshal([]byte(v), &campaigns); err != nil {
			return nil, errors.NewInternal(err)
		}
		if campaigns == nil {
			campaigns = make([]capture.Campaign, 0)
		}
	}
	return campaigns, nil
}

// SetCampaigns persists the list as given and notifies OnChange listeners.
func (s *ConfigStore) SetCampaigns(ctx context.Context, campaigns []capture.Campaign) error {
	if campaigns == nil {
		campaigns = make([]capture.Campaign, 0)
	}
	encoded, err := encodeValues(map[string]any{KeyCampaigns: campaigns})
	if err != nil {
		return err
	}
	if err := db.PutSettings(ctx, s.db, encoded); err != nil {
		return err
	}

	s.notify(campaigns)
	return nil
}

// HudEnabled reports whether the HUD is switched on for domain.
func (s *ConfigStore) HudEnabled(ctx context.Context, domain string) (bool, error) {
	m, err := s.hudMap(ctx)
	if err != nil {
		return false, err
	}
	return m[domain], nil
}

// SetHudEnabled switches the HUD for domain. Disabling removes the entry.
func (s *ConfigStore) SetHudEnabled(ctx context.Context, domain string, enabled bool) error {
	s.hudMu.Lock()
	defer s.hudMu.Unlock()

	m, err := s.hudMap(ctx)
	if err != nil {
		return err
	}
	if enabled {
		m[domain] = true
	} else {
		delete(m, domain)
	}
	encoded, err := encodeValues(map[string]any{KeyHudEnabled: m})
	if err != nil {
		return err
	}
	return db.PutSettings(ctx, s.db, encoded)
}

func (s *ConfigStore) hudMap(ctx context.Context) (map[string]bool, error) {
	raw, err := db.GetSettings(ctx, s.db, KeyHudEnabled)
	if err != nil {
		return nil, err
	}
	m := make(map[string]bool)
	if v, ok := raw[KeyHudEnabled]; ok {
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, errors.NewInternal(err)
		}
		if m == nil {
			m = make(map[string]bool)
		}
	}
	return m, nil
}

// Snapshot returns the whole configuration record.
func (s *ConfigStore) Snapshot(ctx context.Context) (*Record, error) {
	cfg, err := s.DeliveryConfig(ctx)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.Campaigns(ctx)
	if err != nil {
		return nil, err
	}
	hud, err := s.hudMap(ctx)
	if err != nil {
		return nil, err
	}
	return &Record{
		WebhookURL:        cfg.WebhookURL,
		AuthType:          string(cfg.AuthMode),
		AuthToken:         cfg.AuthToken,
		CustomHeaderName:  cfg.CustomHeaderName,
		Campaigns:         campaigns,
		HudEnabledDomains: hud,
	}, nil
}

// OnChange registers fn to run after every campaign list change.
// The returned func removes the registration.
func (s *ConfigStore) OnChange(fn ChangeFunc) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *ConfigStore) notify(campaigns []capture.Campaign) {
	s.mu.Lock()
	fns := make([]ChangeFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		list := make([]capture.Campaign, len(campaigns))
		copy(list, campaigns)
		fn(list)
	}
}

// decodeString decodes raw[key] into dst when present.
func decodeString(raw map[string]string, key string, dst *string) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func encodeValues(values map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out[k] = string(data)
	}
	return out, nil
}

package ops

import (
	"context"
	"net/url"
	"strings"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/classify"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/store"
)

// GetSettingsInput contains parameters for the GetSettings operation.
type GetSettingsInput struct {
	// Reveal returns the auth token unmasked (settings page prefill)
	Reveal bool
}

// SettingsOutput is the full configuration record as shown to users.
type SettingsOutput struct {
	Delivery          capture.DeliveryConfig `json:"delivery"`
	Campaigns         []capture.Campaign     `json:"campaigns"`
	HudEnabledDomains map[string]bool        `json:"hud_enabled_domains"`
}

// GetSettings returns the stored configuration record.
func GetSettings(ctx context.Context, configs *store.ConfigStore, input GetSettingsInput) (*SettingsOutput, error) {
	rec, err := configs.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	delivery := capture.DeliveryConfig{
		WebhookURL:       rec.WebhookURL,
		AuthMode:         capture.ParseAuthMode(rec.AuthType),
		AuthToken:        rec.AuthToken,
		CustomHeaderName: rec.CustomHeaderName,
	}
	if !input.Reveal {
		delivery = delivery.Redacted()
	}
	return &SettingsOutput{
		Delivery:          delivery,
		Campaigns:         rec.Campaigns,
		HudEnabledDomains: rec.HudEnabledDomains,
	}, nil
}

// SaveSettingsInput mirrors the settings form. Campaigns are only written
// when ReplaceCampaigns is set.
type SaveSettingsInput struct {
	WebhookURL       string
	AuthMode         string
	AuthToken        string
	CustomHeaderName string
	Campaigns        []capture.Campaign
	ReplaceCampaigns bool
}

// SaveSettings validates and persists delivery settings (and campaigns when
// ReplaceCampaigns is set).
func SaveSettings(ctx context.Context, configs *store.ConfigStore, input SaveSettingsInput) (*SettingsOutput, error) {
	cfg, err := ValidateDeliveryConfig(input.WebhookURL, input.AuthMode, input.AuthToken, input.CustomHeaderName)
	if err != nil {
		return nil, err
	}
	if err := configs.SaveDeliveryConfig(ctx, cfg); err != nil {
		return nil, err
	}
	if input.ReplaceCampaigns {
		if err := configs.SetCampaigns(ctx, capture.NormalizeCampaigns(input.Campaigns)); err != nil {
			return nil, err
		}
	}
	return GetSettings(ctx, configs, GetSettingsInput{})
}

// ValidateDeliveryConfig trims the form fields and checks the URL and auth mode.
// An empty URL is accepted: it clears the destination.
func ValidateDeliveryConfig(webhookURL, authMode, token, headerName string) (capture.DeliveryConfig, error) {
	cfg := capture.DeliveryConfig{
		WebhookURL:       strings.TrimSpace(webhookURL),
		AuthMode:         capture.AuthMode(strings.TrimSpace(authMode)),
		AuthToken:        strings.TrimSpace(token),
		CustomHeaderName: strings.TrimSpace(headerName),
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = capture.AuthNone
	}
	if !cfg.AuthMode.Valid() {
		return capture.DeliveryConfig{}, errors.NewInvalidRequest("auth_mode must be one of none, bearer, custom_header")
	}
	if cfg.WebhookURL != "" {
		u, err := url.Parse(cfg.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return capture.DeliveryConfig{}, errors.NewInvalidRequest("webhook_url must be an absolute http(s) URL")
		}
	}
	if cfg.AuthMode == capture.AuthCustomHeader && cfg.CustomHeaderName != "" && strings.ContainsAny(cfg.CustomHeaderName, " :\t\r\n") {
		return capture.DeliveryConfig{}, errors.NewInvalidRequest("custom_header_name must be a valid header name")
	}
	return cfg, nil
}

// CampaignsOutput is the campaign list plus whether it is the built-in default.
type CampaignsOutput struct {
	Campaigns []capture.Campaign `json:"campaigns"`
	Defaults  bool               `json:"defaults"`
}

// ListCampaigns returns the stored campaigns, or the defaults when none are stored.
func ListCampaigns(ctx context.Context, configs *store.ConfigStore) (*CampaignsOutput, error) {
	list, err := configs.Campaigns(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return &CampaignsOutput{Campaigns: capture.DefaultCampaignList(), Defaults: true}, nil
	}
	return &CampaignsOutput{Campaigns: list}, nil
}

// SetCampaigns normalizes and stores the list. Listeners (the menu) rebuild.
func SetCampaigns(ctx context.Context, configs *store.ConfigStore, campaigns []capture.Campaign) (*CampaignsOutput, error) {
	list := capture.NormalizeCampaigns(campaigns)
	if err := configs.SetCampaigns(ctx, list); err != nil {
		return nil, err
	}
	return &CampaignsOutput{Campaigns: list}, nil
}

// SetHudInput switches the HUD for one domain, given directly or as a page URL.
type SetHudInput struct {
	Domain  string
	URL     string
	Enabled bool
}

// SetHudOutput echoes the stored state.
type SetHudOutput struct {
	Domain  string `json:"domain"`
	Enabled bool   `json:"enabled"`
}

// SetHud persists the per-domain HUD switch.
func SetHud(ctx context.Context, configs *store.ConfigStore, input SetHudInput) (*SetHudOutput, error) {
	domain := strings.ToLower(strings.TrimSpace(input.Domain))
	if domain == "" && strings.TrimSpace(input.URL) != "" {
		domain = classify.Domain(input.URL)
	}
	if domain == "" {
		return nil, errors.NewInvalidRequest("domain or url is required")
	}
	if err := configs.SetHudEnabled(ctx, domain, input.Enabled); err != nil {
		return nil, err
	}
	return &SetHudOutput{Domain: domain, Enabled: input.Enabled}, nil
}

package web

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/painvault/internal/capture"
	"github.com/hpungsan/painvault/internal/classify"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/hud"
	"github.com/hpungsan/painvault/internal/ops"
	"github.com/hpungsan/painvault/internal/router"
)

// maxBodyBytes caps request bodies; selections are text, not uploads.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP route handlers for the bridge and dashboard.
type Handlers struct {
	deps     Deps
	streams  context.Context
	renderer *Renderer
}

// settingsRequest is the body of PUT /api/settings and POST /api/settings/test.
type settingsRequest struct {
	WebhookURL       string              `json:"webhook_url"`
	AuthMode         string              `json:"auth_mode"`
	AuthToken        string              `json:"auth_token"`
	CustomHeaderName string              `json:"custom_header_name"`
	Campaigns        *[]capture.Campaign `json:"campaigns,omitempty"`
}

type campaignsRequest struct {
	Campaigns []capture.Campaign `json:"campaigns"`
}

type hudRequest struct {
	Domain  string `json:"domain"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// HudResponse is the widget state plus derived progress.
type HudResponse struct {
	*hud.State
	Progress  hud.Progress `json:"progress"`
	StatsLine string       `json:"statsLine"`
}

// HandleMessage handles POST /api/messages from the on-page widget.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var msg router.Message
	if err := decodeBody(w, r, &msg); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, h.deps.Router.HandleMessage(r.Context(), msg))
}

// HandleMenu handles GET /api/menu.
func (h *Handlers) HandleMenu(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.deps.Router.Menu())
}

// HandleMenuClick handles POST /api/menu/click. Clicks on items this
// extension does not own produce 204 and no capture.
func (h *Handlers) HandleMenuClick(w http.ResponseWriter, r *http.Request) {
	var click router.MenuClick
	if err := decodeBody(w, r, &click); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	n := h.deps.Router.HandleMenuClick(r.Context(), click)
	if n == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	renderJSON(w, http.StatusOK, n)
}

// HandleGetSettings handles GET /api/settings. The token is masked unless ?reveal=true.
func (h *Handlers) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	result, err := ops.GetSettings(r.Context(), h.deps.Pipeline.Configs(), ops.GetSettingsInput{
		Reveal: parseBoolParam(r, "reveal"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSaveSettings handles PUT /api/settings.
func (h *Handlers) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	input := ops.SaveSettingsInput{
		WebhookURL:       req.WebhookURL,
		AuthMode:         req.AuthMode,
		AuthToken:        req.AuthToken,
		CustomHeaderName: req.CustomHeaderName,
	}
	if req.Campaigns != nil {
		input.Campaigns = *req.Campaigns
		input.ReplaceCampaigns = true
	}

	result, err := ops.SaveSettings(r.Context(), h.deps.Pipeline.Configs(), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleTestWebhook handles POST /api/settings/test. An empty body tests the
// stored settings; a body with webhook_url tests the unsaved form values.
func (h *Handlers) HandleTestWebhook(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(w, r, &req); err != nil && err != errEmptyBody {
		h.renderer.renderError(w, r, err)
		return
	}

	var input ops.TestWebhookInput
	if strings.TrimSpace(req.WebhookURL) != "" {
		cfg, err := ops.ValidateDeliveryConfig(req.WebhookURL, req.AuthMode, req.AuthToken, req.CustomHeaderName)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		input.Config = &cfg
	}

	result, err := h.deps.Pipeline.TestWebhook(r.Context(), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleListCampaigns handles GET /api/campaigns.
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListCampaigns(r.Context(), h.deps.Pipeline.Configs())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSetCampaigns handles PUT /api/campaigns. The menu rebuilds from the new list.
func (h *Handlers) HandleSetCampaigns(w http.ResponseWriter, r *http.Request) {
	var req campaignsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.SetCampaigns(r.Context(), h.deps.Pipeline.Configs(), req.Campaigns)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleGetHud handles GET /api/hud?url=...&campaign=...
func (h *Handlers) HandleGetHud(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	domain := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("domain")))
	if domain == "" {
		if pageURL == "" {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("url or domain is required"))
			return
		}
		domain = classify.Domain(pageURL)
	}

	state, err := hud.Load(r.Context(), h.deps.Pipeline.Configs(), domain)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if id := r.URL.Query().Get("campaign"); id != "" {
		state.SelectCampaign(id)
	}

	stats, err := h.deps.Pipeline.Stats().Today(r.Context(), domain)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	state.ApplyStats(domain, stats)

	renderJSON(w, http.StatusOK, HudResponse{
		State:     state,
		Progress:  state.Progress(),
		StatsLine: state.StatsLine(),
	})
}

// HandleSetHud handles PUT /api/hud.
func (h *Handlers) HandleSetHud(w http.ResponseWriter, r *http.Request) {
	var req hudRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	result, err := ops.SetHud(r.Context(), h.deps.Pipeline.Configs(), ops.SetHudInput{
		Domain:  req.Domain,
		URL:     req.URL,
		Enabled: req.Enabled,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleStats handles GET /api/stats?url=... or ?date=...
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	if pageURL := r.URL.Query().Get("url"); pageURL != "" {
		result, err := ops.GetStats(r.Context(), h.deps.Pipeline.Stats(), pageURL)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, result)
		return
	}

	result, err := ops.ListStats(r.Context(), h.deps.Pipeline.Stats(), ops.ListStatsInput{
		Date: r.URL.Query().Get("date"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleListDeliveries handles GET /api/deliveries.
func (h *Handlers) HandleListDeliveries(w http.ResponseWriter, r *http.Request) {
	result, err := ops.ListDeliveries(r.Context(), h.deps.DB, ops.ListDeliveriesInput{
		Limit:      parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:     parseIntParam(r, "offset", 0),
		FailedOnly: parseBoolParam(r, "failed"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleDashboard handles GET / with today's counters and recent deliveries.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	failedOnly := parseBoolParam(r, "failed")

	stats, err := ops.ListStats(ctx, h.deps.Pipeline.Stats(), ops.ListStatsInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	campaigns, err := ops.ListCampaigns(ctx, h.deps.Pipeline.Configs())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	deliveries, err := ops.ListDeliveries(ctx, h.deps.DB, ops.ListDeliveriesInput{
		Limit:      parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:     parseIntParam(r, "offset", 0),
		FailedOnly: failedOnly,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	settings, err := ops.GetSettings(ctx, h.deps.Pipeline.Configs(), ops.GetSettingsInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	domains := make([]DomainRow, 0, len(stats.Items))
	for _, row := range stats.Items {
		domains = append(domains, DomainRow{
			Domain:    row.Domain,
			Total:     row.Stats.Total,
			Campaigns: campaignCounts(row.Stats, campaigns.Campaigns),
		})
	}

	rows := make([]DeliveryRow, 0, len(deliveries.Items))
	for _, d := range deliveries.Items {
		rows = append(rows, DeliveryRow{Delivery: d, Excerpt: h.renderer.excerpt(d.SelectedText)})
	}

	h.renderer.renderPage(w, "dashboard", DashboardPageData{
		PageData: PageData{
			Title:   "Today",
			Version: h.renderer.version,
			Nav:     "dashboard",
		},
		Date:       stats.Date,
		Domains:    domains,
		Deliveries: rows,
		Pagination: deliveries.Pagination,
		FailedOnly: failedOnly,
		Webhook:    settings.Delivery.WebhookURL,
	})
}

// HandleDelivery handles GET /deliveries/{id}.
func (h *Handlers) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := ops.GetDelivery(r.Context(), h.deps.DB, chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, d)
		return
	}

	row := DeliveryRow{Delivery: *d, Excerpt: h.renderer.excerpt(d.SelectedText)}
	h.renderer.renderPage(w, "delivery", DeliveryPageData{
		PageData: PageData{
			Title:   "Delivery " + d.ID,
			Version: h.renderer.version,
			Nav:     "deliveries",
		},
		Delivery: row,
		Full:     h.renderer.renderMarkdown(d.SelectedText),
	})
}

// HandlePurgeForm handles POST /purge from the dashboard.
func (h *Handlers) HandlePurgeForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	var input ops.PurgeInput
	if v := r.FormValue("stats_keep_days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("stats_keep_days must be a non-negative integer"))
			return
		}
		input.StatsKeepDays = &d
	}
	if v := r.FormValue("delivery_older_than_days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("delivery_older_than_days must be a non-negative integer"))
			return
		}
		input.DeliveryOlderThanDays = &d
	}

	result, err := ops.Purge(r.Context(), h.deps.DB, h.deps.Pipeline.Stats(), h.deps.Config, h.deps.Now(), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/", http.StatusFound)
}

// campaignCounts orders a bucket's campaign counters by count, then id.
func campaignCounts(stats capture.DomainDayStats, campaigns []capture.Campaign) []CampaignCount {
	out := make([]CampaignCount, 0, len(stats.ByCampaign))
	for id, n := range stats.ByCampaign {
		label := id
		if c, ok := capture.FindCampaign(campaigns, id); ok {
			label = c.DisplayLabel()
		}
		p := hud.ProgressFor(stats, id)
		out = append(out, CampaignCount{ID: id, Label: label, Count: n, Percent: p.Percent, GoalHit: p.GoalHit})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// errEmptyBody is returned by decodeBody when the request has no body.
var errEmptyBody = errors.NewInvalidRequest("request body is required")

// decodeBody decodes a JSON request body into dst. Bodies must be declared
// application/json, which a cross-site form or text/plain post cannot send
// without a preflight.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return errEmptyBody
	}
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		return errors.NewUnsupportedMedia("application/json")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}

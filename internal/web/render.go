package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/painvault/internal/db"
	"github.com/hpungsan/painvault/internal/errors"
	"github.com/hpungsan/painvault/internal/hud"
	"github.com/hpungsan/painvault/internal/ops"
)

// excerptRunes bounds the selected text shown per delivery row.
const excerptRunes = 280

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "dashboard", "deliveries"
}

// DomainRow is one stats bucket with its goal progress for the dashboard.
type DomainRow struct {
	Domain    string
	Total     int
	Campaigns []CampaignCount
}

// CampaignCount is one campaign counter in a DomainRow.
type CampaignCount struct {
	ID      string
	Label   string
	Count   int
	Percent int
	GoalHit bool
}

// DeliveryRow is a delivery log row with its rendered excerpt.
type DeliveryRow struct {
	db.Delivery
	Excerpt template.HTML
}

// DashboardPageData is the template data for the dashboard.
type DashboardPageData struct {
	PageData
	Date       string
	Domains    []DomainRow
	Deliveries []DeliveryRow
	Pagination ops.Pagination
	FailedOnly bool
	Webhook    string
}

// DeliveryPageData is the template data for one delivery.
type DeliveryPageData struct {
	PageData
	Delivery DeliveryRow
	Full     template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *slog.Logger
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *slog.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"goal":       func() int { return hud.DailyGoal },
	}

	// Each page is the layout plus <name>.html defining its "content" block.
	layout := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))
	templates := map[string]*template.Template{}
	for _, name := range []string{"dashboard", "delivery", "error"} {
		t := template.Must(layout.Clone())
		templates[name] = template.Must(t.ParseFS(templateFS, name+".html"))
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
		markdown:  goldmark.New(),
		policy:    bluemonday.UGCPolicy(),
	}
}

func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus executes the page into a buffer first so a template
// failure still produces a clean 500.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	t, ok := r.templates[name]
	if !ok {
		r.logger.Error("unknown page", "name", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("render page", "name", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError renders an error response with content negotiation.
// API routes and JSON clients get the error envelope; browsers get a page.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var vErr *errors.VaultError
	if !stderrors.As(err, &vErr) {
		vErr = errors.NewInternal(err)
	}

	status := vErr.Status
	message := vErr.Message
	if vErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", "path", req.URL.Path, "err", err)
		message = "an internal error occurred"
	}

	if strings.HasPrefix(req.URL.Path, "/api/") || strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(vErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts captured text to HTML and strips anything unsafe.
// Selections come from arbitrary pages, so raw HTML in them never survives.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

// excerpt renders the first excerptRunes runes of a selection.
func (r *Renderer) excerpt(text string) template.HTML {
	return r.renderMarkdown(truncateRunes(text, excerptRunes))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

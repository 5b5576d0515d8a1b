package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/log"
	"github.com/hpungsan/painvault/internal/ops"
	"github.com/hpungsan/painvault/internal/router"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// shutdownTimeout bounds graceful shutdown after the serve context ends.
const shutdownTimeout = 5 * time.Second

// Deps are the services the bridge dispatches to.
type Deps struct {
	DB       *sql.DB
	Config   *config.Config
	Pipeline *ops.Pipeline
	Router   *router.Router
	Hub      *router.Hub
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewServer creates the HTTP server for the extension bridge and dashboard.
// Event streams are closed when the server shuts down.
func NewServer(deps Deps, version, bind string, port int) *http.Server {
	streams, closeStreams := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           newHandler(deps, version, streams),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(closeStreams)
	return srv
}

// NewHandler builds the routed handler without binding a listener.
func NewHandler(deps Deps, version string) http.Handler {
	return newHandler(deps, version, context.Background())
}

func newHandler(deps Deps, version string, streams context.Context) http.Handler {
	if deps.Logger == nil {
		deps.Logger = log.L()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(fmt.Sprintf("template sub-FS: %v", err))
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static sub-FS: %v", err))
	}

	h := &Handlers{
		deps:     deps,
		streams:  streams,
		renderer: NewRenderer(templateSub, version, deps.Logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(rejectCrossSite(allowedOrigins(deps.Config), h.renderer))

	r.Get("/", h.HandleDashboard)
	r.Get("/deliveries/{id}", h.HandleDelivery)
	r.Post("/purge", h.HandlePurgeForm)

	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", h.HandleMessage)
		r.Get("/menu", h.HandleMenu)
		r.Post("/menu/click", h.HandleMenuClick)
		r.Get("/events", h.HandleEvents)

		r.Get("/settings", h.HandleGetSettings)
		r.Put("/settings", h.HandleSaveSettings)
		r.Post("/settings/test", h.HandleTestWebhook)
		r.Get("/campaigns", h.HandleListCampaigns)
		r.Put("/campaigns", h.HandleSetCampaigns)
		r.Get("/hud", h.HandleGetHud)
		r.Put("/hud", h.HandleSetHud)

		r.Get("/stats", h.HandleStats)
		r.Get("/deliveries", h.HandleListDeliveries)
	})

	// Static file server
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	return cfg.AllowedOrigins
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// The router's menu sync runs for the lifetime of the server.
func Run(ctx context.Context, srv *http.Server, rt *router.Router, logger *slog.Logger) error {
	if logger == nil {
		logger = log.L()
	}
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("bridge listening", "addr", "http://"+srv.Addr)
		if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
			logger.Warn("bridge is binding to all interfaces and may be reachable from the network")
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

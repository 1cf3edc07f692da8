// Package api wires the HTTP surface (C14): routing, middleware, and the
// handlers for login/unlock, browse, the download coordinator, and the
// share page.
package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TilBlechschmidt/restic-dl/internal/engine"
	"github.com/TilBlechschmidt/restic-dl/internal/session"
)

// RouterConfig holds the dependencies NewRouter needs, populated once at
// startup and passed as a single struct the way the teacher's RouterConfig
// does for its own (much larger) dependency set.
type RouterConfig struct {
	SiteCache       *session.SiteCache
	Repositories    *session.RepositoryCache
	Manager         *engine.Manager
	SiteURL         *url.URL
	SessionLifetime time.Duration
	Secure          bool
	Logger          *zap.Logger
	MetricsEnabled  bool
}

// NewRouter builds the fully configured Chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	authHandler := &AuthHandler{
		site:            cfg.SiteCache,
		repos:           cfg.Repositories,
		sessionLifetime: cfg.SessionLifetime,
		secure:          cfg.Secure,
	}
	browseHandler := &BrowseHandler{}
	restoreHandler := &RestoreHandler{manager: cfg.Manager}
	shareHandler := &ShareHandler{manager: cfg.Manager, siteURL: cfg.SiteURL.String()}

	r.Get("/healthz", Health)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/", authHandler.Login)
	r.Post("/{repo}", authHandler.Unlock)

	r.Get("/restore/{id}/share", shareHandler.Share)
	r.Get("/restore/{id}/progress", restoreHandler.Progress)
	r.Get("/restore/{id}", restoreHandler.Download)

	r.Group(func(r chi.Router) {
		r.Use(RequireSiteSession(cfg.SiteCache))
		r.Use(RequireRepositorySession(cfg.Repositories))

		r.Get("/browse/{repo}/{snapshot}", browseHandler.Browse)
		r.Get("/browse/{repo}/{snapshot}/*", browseHandler.Browse)
		r.Post("/restore/{repo}/{snapshot}/*", restoreHandler.Create)
	})

	return r
}

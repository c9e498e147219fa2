// Package handler provides the HTTP surface of the Pictor image store.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/pictor/internal/metrics"
)

// Router assembles the HTTP handler tree.
type Router struct {
	index   *IndexHandler
	upload  *UploadHandler
	image   *ImageHandler
	metrics *metrics.Metrics

	basePath   string
	trustProxy bool
	logger     zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Index   *IndexHandler
	Upload  *UploadHandler
	Image   *ImageHandler
	Metrics *metrics.Metrics

	// BasePath mounts all routes under a URL prefix, e.g. "/i". Empty or
	// "/" mounts at the root.
	BasePath string

	// TrustProxyHeaders honors X-Forwarded-For and X-Forwarded-Proto.
	TrustProxyHeaders bool

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		index:      cfg.Index,
		upload:     cfg.Upload,
		image:      cfg.Image,
		metrics:    cfg.Metrics,
		basePath:   normalizeBasePath(cfg.BasePath),
		trustProxy: cfg.TrustProxyHeaders,
		logger:     cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	if rt.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(rt.logger))
	r.Use(inFlightGauge(rt.metrics))
	r.Use(middleware.Recoverer)

	r.Route(rt.routePrefix(), func(r chi.Router) {
		r.Get("/health", rt.handleHealth)

		r.Get("/", rt.index.ServeIndex)
		r.Post("/", rt.upload.HandleUpload)

		// Canonical sharded form. The regex mirrors the on-disk layout:
		// two hex characters, then thirty-eight, with an optional
		// extension the client may append.
		pattern := "/{prefix:[a-fA-F0-9]{2}}/{file:[a-fA-F0-9]{38}(?:\\.\\w*)?}"
		r.Get(pattern, rt.image.ServeImage)
		r.Head(pattern, rt.image.ServeImage)

		// Everything else that looks like a hash gets redirected to the
		// sharded form.
		r.Get("/*", rt.image.RedirectCanonical)
	})

	return r
}

func (rt *Router) routePrefix() string {
	if rt.basePath == "" {
		return "/"
	}
	return rt.basePath
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// normalizeBasePath strips a trailing slash so path joins stay predictable.
func normalizeBasePath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return ""
	}
	return p
}

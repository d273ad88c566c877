// Package server implements the HTTP transport layer for Phenotrack.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arborlab/phenotrack/internal/auth"
	"github.com/arborlab/phenotrack/internal/query"
	"github.com/arborlab/phenotrack/internal/ratelimit"
	"github.com/arborlab/phenotrack/internal/storage"
	"github.com/arborlab/phenotrack/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Query      *query.Service
	Store      storage.MetricStore  // write surface for metric seeding
	ReadyCheck ReadyChecker         // nil = always ready (for tests)
	Metrics    *telemetry.Metrics   // nil = no metrics middleware
	Registry   *prometheus.Registry // nil = no /metrics endpoint
	Guard      *auth.Guard          // nil = open write endpoints
	Limiter    *ratelimit.Registry  // nil = no rate limiting
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Phenology API. Rate limiting covers the query surface only, so
	// probes and scrapes are never throttled.
	r.Route("/phenology", func(r chi.Router) {
		if deps.Limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Get("/point", s.handlePointMetric)
		r.With(s.writeAuth).Post("/point", s.handleSeedPointMetric)
		r.Get("/timeseries", s.handlePointTimeseries)
		r.Post("/area-stats", s.handleAreaStats)
	})

	return r
}

type server struct {
	deps Deps
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the HTTP surface from handlers and middleware.
type Router struct {
	handler *Handler
	mw      *Middleware
}

// NewRouter creates a router. A nil middleware config uses defaults.
func NewRouter(handler *Handler, mwConfig *MiddlewareConfig) *Router {
	return &Router{
		handler: handler,
		mw:      NewMiddleware(mwConfig),
	}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware stack, applied to all routes in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.mw.CORS()) // global so OPTIONS preflight is handled

	// Health endpoints stay outside the rate limiter so monitoring probes
	// never get throttled out.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(SecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Insights endpoints.
	r.Route("/api/v1/insights", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(RequestMetrics())

		r.Get("/status", router.handler.InsightsStatus)
		r.Get("/bundles", router.handler.ListBundles)
		r.Get("/{territory}/{period}", router.handler.GetInsights)

		// Forced refresh hits the upstream feed; stricter limit.
		r.With(router.mw.RateLimitRefresh()).
			Post("/{territory}/{period}/refresh", router.handler.RefreshInsights)
	})

	// Alert endpoints.
	r.Route("/api/v1/alerts", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(RequestMetrics())

		r.Get("/{territory}/{period}", router.handler.ListAlerts)
		r.Get("/{territory}/{period}/statistics", router.handler.AlertStatistics)
		r.Post("/{territory}/{period}/acknowledge", router.handler.AcknowledgeAlerts)
	})

	// Rule registry CRUD.
	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(RequestMetrics())

		r.Get("/", router.handler.ListRules)
		r.Post("/", router.handler.CreateRule)
		r.Get("/{id}", router.handler.GetRule)
		r.Put("/{id}", router.handler.UpdateRule)
		r.Delete("/{id}", router.handler.DeleteRule)
	})

	// Audit trail of rule and acknowledgement changes.
	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(SecurityHeaders())
		r.Use(RequestMetrics())

		r.Get("/events", router.handler.ListAuditEvents)
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	return r
}

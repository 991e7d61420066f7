// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package metrics provides Prometheus instrumentation for the insights
// pipeline, exposed at /metrics in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insights_pipeline_duration_seconds",
			Help:    "Duration of full insights regeneration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"territory", "period"},
	)

	PipelineErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_pipeline_errors_total",
			Help: "Total pipeline failures by stage",
		},
		[]string{"stage"}, // "fetch", "build", "analyze", "narrative", "store"
	)

	PipelineLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "insights_pipeline_last_success_timestamp",
			Help: "Unix timestamp of the last successful regeneration",
		},
		[]string{"territory", "period"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_cache_hits_total",
			Help: "Total insights served from a fresh cached bundle",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_cache_misses_total",
			Help: "Total insights requests that triggered regeneration",
		},
	)

	// Snapshot Feed Metrics
	SnapshotFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_fetch_duration_seconds",
			Help:    "Duration of chart feed fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"territory", "period"},
	)

	SnapshotTracks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_tracks",
			Help:    "Number of entries per fetched snapshot",
			Buckets: []float64{10, 50, 100, 150, 180, 200},
		},
	)

	// Alerting Metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_generated_total",
			Help: "Total alerts generated by rule and severity",
		},
		[]string{"rule", "severity"},
	)

	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alerts_acknowledged_total",
			Help: "Total alerts acknowledged",
		},
	)

	// Narrative Service Metrics
	NarrativeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "narrative_requests_total",
			Help: "Total narrative generation attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "reused", "malformed", "unavailable", "unconfigured"
	)

	NarrativeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "narrative_duration_seconds",
			Help:    "Duration of narrative generation calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Circuit Breaker Metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"}, // "chart-feed", "narrative"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Retention Metrics
	BundlesCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_bundles_cleaned_total",
			Help: "Total bundles removed by retention cleanup",
		},
	)
)

// RecordPipeline records one regeneration attempt for the key.
func RecordPipeline(territory, period string, duration time.Duration, err error) {
	PipelineDuration.WithLabelValues(territory, period).Observe(duration.Seconds())
	if err == nil {
		PipelineLastSuccess.WithLabelValues(territory, period).SetToCurrentTime()
	}
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

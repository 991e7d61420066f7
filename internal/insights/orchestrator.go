// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package insights coordinates the full pipeline for one (territory,
// period) key: fetch snapshot, advance the history ledger, run analysis,
// evaluate alert rules, generate the narrative, persist the bundle. Cached
// fresh bundles are served as-is; regeneration for the same key is
// de-duplicated behind a singleflight group so concurrent requests trigger
// at most one pipeline run.
package insights

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/analysis"
	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/metrics"
	"github.com/tduarte/chartpulse/internal/models"
	"github.com/tduarte/chartpulse/internal/narrative"
	"github.com/tduarte/chartpulse/internal/snapshot"
	"github.com/tduarte/chartpulse/internal/storage"
)

// Config selects which charts the orchestrator tracks and how its
// background loops run.
type Config struct {
	Territories []models.Territory
	Periods     []models.Period

	Retention       time.Duration
	CleanupInterval time.Duration
	PollInterval    time.Duration

	// Location anchors the update schedule.
	Location *time.Location
}

// Orchestrator drives the insights pipeline. Safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	provider snapshot.Provider
	builder  *snapshot.Builder
	engine   *analysis.Engine
	alerts   *alerting.Engine
	gen      narrative.Generator
	store    storage.Store
	now      func() time.Time

	group singleflight.Group

	// logUnconfigured keeps the "narrative not configured" notice to one
	// line per process, not one per cycle.
	logUnconfigured sync.Once
}

// NewOrchestrator wires the pipeline. The narrative generator may be nil
// for analytics-only deployments; a nil clock uses time.Now.
func NewOrchestrator(
	cfg Config,
	provider snapshot.Provider,
	builder *snapshot.Builder,
	engine *analysis.Engine,
	alerts *alerting.Engine,
	gen narrative.Generator,
	store storage.Store,
	now func() time.Time,
) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Orchestrator{
		cfg:      cfg,
		provider: provider,
		builder:  builder,
		engine:   engine,
		alerts:   alerts,
		gen:      gen,
		store:    store,
		now:      now,
	}
}

// GetInsights returns the bundle for the key, serving the cached one while
// fresh and regenerating otherwise. The second return reports whether the
// bundle came from cache. A transient upstream failure falls back to the
// last good bundle when one exists.
func (o *Orchestrator) GetInsights(ctx context.Context, territory models.Territory, period models.Period) (*storage.Bundle, bool, error) {
	cached, err := o.store.Get(ctx, territory, period)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	if cached != nil && !cached.Stale {
		metrics.RecordCacheLookup(true)
		return cached, true, nil
	}
	metrics.RecordCacheLookup(false)

	fresh, rerr := o.refresh(ctx, territory, period)
	if rerr != nil {
		if cached != nil && isTransient(rerr) {
			logging.Warn().Err(rerr).
				Str("territory", string(territory)).
				Str("period", string(period)).
				Msg("regeneration failed, serving last good bundle")
			return cached, true, nil
		}
		return nil, false, rerr
	}
	return fresh, false, nil
}

// ForceRefresh invalidates the cached bundle and regenerates immediately.
func (o *Orchestrator) ForceRefresh(ctx context.Context, territory models.Territory, period models.Period) (*storage.Bundle, error) {
	if err := o.store.Invalidate(ctx, territory, period); err != nil {
		return nil, err
	}
	return o.refresh(ctx, territory, period)
}

// isTransient reports whether a regeneration failure is expected to heal
// on its own, making the last good bundle an acceptable answer.
func isTransient(err error) bool {
	return errors.Is(err, snapshot.ErrUpstreamUnavailable) ||
		errors.Is(err, snapshot.ErrEmptySnapshot) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, context.DeadlineExceeded)
}

// refresh de-duplicates concurrent regenerations per key.
func (o *Orchestrator) refresh(ctx context.Context, territory models.Territory, period models.Period) (*storage.Bundle, error) {
	key := string(territory) + ":" + string(period)
	v, err, _ := o.group.Do(key, func() (interface{}, error) {
		return o.regenerate(ctx, territory, period)
	})
	if err != nil {
		return nil, err
	}
	return v.(*storage.Bundle), nil
}

// regenerate runs the full pipeline once. Narrative failures degrade to an
// analytics-only bundle; storage failures propagate so callers never
// mistake an unsaved bundle for a cached one.
func (o *Orchestrator) regenerate(ctx context.Context, territory models.Territory, period models.Period) (*storage.Bundle, error) {
	start := o.now()

	fetchStart := time.Now()
	snap, err := o.provider.Fetch(ctx, territory, period)
	metrics.SnapshotFetchDuration.WithLabelValues(string(territory), string(period)).
		Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		metrics.PipelineErrors.WithLabelValues("fetch").Inc()
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	metrics.SnapshotTracks.Observe(float64(len(snap.Entries)))

	res, err := o.builder.Build(ctx, snap)
	if err != nil {
		metrics.PipelineErrors.WithLabelValues("build").Inc()
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	bundle := o.engine.AnalyzeAll(res.Tracks, res.Exits, res.PreviousTotals, territory, period, snap.Date)
	bundle.DataQuality = o.engine.DataQuality(res.Tracks, territory, period, snap.Date, snap.LastUpdated, o.now())

	alerts := o.alerts.GenerateAlerts(res.Tracks, territory, period, snap.Date)
	for _, a := range alerts {
		metrics.AlertsGenerated.WithLabelValues(a.RuleID, string(a.Severity)).Inc()
	}

	stored := &storage.Bundle{
		Territory:   territory,
		Period:      period,
		Date:        snap.Date,
		GeneratedAt: o.now(),
		Analysis:    bundle,
		Alerts:      alerts,
		Narrative:   o.narrativeFor(ctx, territory, period, bundle),
	}

	if err := o.store.Put(ctx, stored); err != nil {
		metrics.PipelineErrors.WithLabelValues("store").Inc()
		return nil, fmt.Errorf("store bundle: %w", err)
	}

	elapsed := o.now().Sub(start)
	metrics.RecordPipeline(string(territory), string(period), elapsed, nil)
	logging.Info().
		Str("territory", string(territory)).
		Str("period", string(period)).
		Int("tracks", len(res.Tracks)).
		Int("alerts", len(alerts)).
		Bool("narrative", stored.Narrative != nil).
		Dur("elapsed", elapsed).
		Msg("insights regenerated")

	return stored, nil
}

// narrativeFor decides between carrying the stored narrative forward and
// requesting a fresh one. The store's significance check gates the
// narrative service: when the fresh analysis barely moved against the
// stored bundle, the existing prose still describes the data.
func (o *Orchestrator) narrativeFor(ctx context.Context, territory models.Territory, period models.Period, bundle *models.AnalysisBundle) *narrative.Insights {
	if o.gen == nil {
		return nil
	}

	significant, err := o.store.Update(ctx, territory, period, bundle)
	if err == nil && !significant {
		if prev, gerr := o.store.Get(ctx, territory, period); gerr == nil && prev.Narrative != nil {
			metrics.NarrativeRequests.WithLabelValues("reused").Inc()
			logging.Debug().
				Str("territory", string(territory)).
				Str("period", string(period)).
				Msg("analysis unchanged, carrying narrative forward")
			return prev.Narrative
		}
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logging.Warn().Err(err).Msg("significance check failed, regenerating narrative")
	}

	return o.generateNarrative(ctx, bundle)
}

// generateNarrative requests the narrative and degrades to nil on any
// failure: the bundle is still valuable without prose.
func (o *Orchestrator) generateNarrative(ctx context.Context, bundle *models.AnalysisBundle) *narrative.Insights {
	if o.gen == nil {
		return nil
	}

	start := time.Now()
	ins, err := o.gen.Generate(ctx, bundle)
	metrics.NarrativeDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.NarrativeRequests.WithLabelValues("ok").Inc()
		return ins
	case errors.Is(err, narrative.ErrNotConfigured):
		metrics.NarrativeRequests.WithLabelValues("unconfigured").Inc()
		o.logUnconfigured.Do(func() {
			logging.Info().Msg("narrative service not configured, producing analytics-only bundles")
		})
	case errors.Is(err, narrative.ErrMalformedResponse):
		metrics.NarrativeRequests.WithLabelValues("malformed").Inc()
		metrics.PipelineErrors.WithLabelValues("narrative").Inc()
		logging.Warn().Err(err).Msg("narrative response rejected, analytics-only bundle")
	default:
		metrics.NarrativeRequests.WithLabelValues("unavailable").Inc()
		metrics.PipelineErrors.WithLabelValues("narrative").Inc()
		logging.Warn().Err(err).Msg("narrative service unavailable, analytics-only bundle")
	}
	return nil
}

// Key identifies one tracked chart.
type Key struct {
	Territory models.Territory `json:"territory"`
	Period    models.Period    `json:"period"`
}

// Keys returns every tracked territory and period combination.
func (o *Orchestrator) Keys() []Key {
	out := make([]Key, 0, len(o.cfg.Territories)*len(o.cfg.Periods))
	for _, territory := range o.cfg.Territories {
		for _, period := range o.cfg.Periods {
			out = append(out, Key{Territory: territory, Period: period})
		}
	}
	return out
}

// KeyStatus is one tracked chart's freshness.
type KeyStatus struct {
	Territory   models.Territory `json:"territory"`
	Period      models.Period    `json:"period"`
	State       string           `json:"state"` // "healthy", "degraded", "error"
	GeneratedAt time.Time        `json:"generated_at,omitempty"`
	NextUpdate  time.Time        `json:"next_update"`
	AlertCount  int              `json:"alert_count"`
}

// Status reports per-key freshness plus the worst state overall.
type Status struct {
	Overall string      `json:"overall"`
	Keys    []KeyStatus `json:"keys"`
}

// Status inspects every tracked key: healthy while the cached bundle is
// fresh, degraded when stale, error when missing or unreadable.
func (o *Orchestrator) Status(ctx context.Context) Status {
	out := Status{Overall: "healthy"}
	rank := map[string]int{"healthy": 0, "degraded": 1, "error": 2}

	for _, territory := range o.cfg.Territories {
		for _, period := range o.cfg.Periods {
			ks := KeyStatus{
				Territory:  territory,
				Period:     period,
				NextUpdate: o.NextUpdateTime(period),
			}

			b, err := o.store.Get(ctx, territory, period)
			switch {
			case err != nil:
				ks.State = "error"
			case b.Stale:
				ks.State = "degraded"
				ks.GeneratedAt = b.GeneratedAt
				ks.AlertCount = len(b.Alerts)
			default:
				ks.State = "healthy"
				ks.GeneratedAt = b.GeneratedAt
				ks.AlertCount = len(b.Alerts)
			}

			if rank[ks.State] > rank[out.Overall] {
				out.Overall = ks.State
			}
			out.Keys = append(out.Keys, ks)
		}
	}
	return out
}

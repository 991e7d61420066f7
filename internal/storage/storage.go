// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package storage persists generated insights bundles, one per
// (territory, period) key. A bundle is served from cache until it goes
// stale: either its age exceeds the cache duration or it was explicitly
// invalidated. Alert acknowledgement is a read-modify-write inside a single
// store transaction so the store is the only writer of alert state.
package storage

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/models"
	"github.com/tduarte/chartpulse/internal/narrative"
)

// ErrNotFound marks a (territory, period) key with no stored bundle.
var ErrNotFound = errors.New("storage: bundle not found")

// DefaultRetention is how long bundles are kept before Cleanup removes
// them.
const DefaultRetention = 30 * 24 * time.Hour

// Bundle is one generated insights cycle as persisted: the analysis views,
// the generated alerts, the optional narrative, and cache bookkeeping.
type Bundle struct {
	Territory models.Territory `json:"territory"`
	Period    models.Period    `json:"period"`
	Date      time.Time        `json:"date"`

	// GeneratedAt is when this bundle was produced; staleness is measured
	// from it.
	GeneratedAt time.Time `json:"generated_at"`

	Analysis  *models.AnalysisBundle `json:"analysis,omitempty"`
	Alerts    []alerting.Alert       `json:"alerts,omitempty"`
	Narrative *narrative.Insights    `json:"narrative,omitempty"`

	// Invalidated is the explicit staleness override set by Invalidate or
	// a significant data change.
	Invalidated bool `json:"invalidated"`

	// Stale is computed on read, never persisted as truth: explicit
	// invalidation or age beyond the cache duration.
	Stale bool `json:"stale"`
}

// Key returns the storage key for a bundle's territory and period.
func (b *Bundle) Key() string {
	return string(b.Territory) + ":" + string(b.Period)
}

// BundleInfo is the List projection: key, freshness and alert volume
// without the payload.
type BundleInfo struct {
	Territory   models.Territory `json:"territory"`
	Period      models.Period    `json:"period"`
	Date        time.Time        `json:"date"`
	GeneratedAt time.Time        `json:"generated_at"`
	Stale       bool             `json:"stale"`
	AlertCount  int              `json:"alert_count"`
}

// Store is the insights bundle store. All methods are safe for concurrent
// use.
type Store interface {
	// Get loads the bundle for the key with Stale computed against the
	// cache duration. ErrNotFound when nothing is stored.
	Get(ctx context.Context, territory models.Territory, period models.Period) (*Bundle, error)

	// Put stores a bundle, replacing any previous one for the key and
	// clearing explicit invalidation.
	Put(ctx context.Context, b *Bundle) error

	// Update compares freshly computed analysis against the stored bundle
	// and invalidates the cache when the data moved significantly. Returns
	// whether the change was significant. ErrNotFound when nothing is
	// stored for the key.
	Update(ctx context.Context, territory models.Territory, period models.Period, fresh *models.AnalysisBundle) (bool, error)

	// Invalidate marks the stored bundle stale. Missing bundles are not an
	// error; there is nothing to invalidate.
	Invalidate(ctx context.Context, territory models.Territory, period models.Period) error

	// AcknowledgeAlerts acknowledges the given alert ids on the stored
	// bundle and persists the result in one transaction. Returns how many
	// alerts changed state.
	AcknowledgeAlerts(ctx context.Context, territory models.Territory, period models.Period, ids []string, at time.Time) (int, error)

	// List returns info for every stored bundle, with freshness computed.
	List(ctx context.Context) ([]BundleInfo, error)

	// Cleanup removes bundles generated more than retention ago and
	// returns how many were removed.
	Cleanup(ctx context.Context, retention time.Duration) (int, error)
}

// Significance thresholds for Update: cached insights survive small data
// wobbles, a big move invalidates them.
const (
	significantStreamsPct   = 10.0
	significantTop10Changes = 2
	significantTurnoverPP   = 5.0
)

// hasSignificantChanges reports whether fresh analysis differs enough from
// the stored one to justify regenerating insights: total streams moved more
// than 10%, more than two tracks changed in the top stream tier, or
// turnover shifted by more than five percentage points.
func hasSignificantChanges(old, fresh *models.AnalysisBundle) bool {
	if old == nil || fresh == nil {
		return true
	}

	if old.StreamsAggregates != nil && fresh.StreamsAggregates != nil {
		prev := old.StreamsAggregates.Current.Top200
		cur := fresh.StreamsAggregates.Current.Top200
		if prev > 0 {
			change := math.Abs(float64(cur)-float64(prev)) / float64(prev) * 100
			if change > significantStreamsPct {
				return true
			}
		} else if cur > 0 {
			return true
		}
	}

	if old.Streams != nil && fresh.Streams != nil {
		if topTierChanges(old.Streams.TopStreams, fresh.Streams.TopStreams) > significantTop10Changes {
			return true
		}
	}

	if old.Entries != nil && fresh.Entries != nil {
		if math.Abs(fresh.Entries.TurnoverNewPct-old.Entries.TurnoverNewPct) > significantTurnoverPP {
			return true
		}
	}

	return false
}

// topTierChanges counts tracks present in one top tier but not the other.
func topTierChanges(old, fresh []models.TrackAnalysis) int {
	oldIDs := make(map[string]bool, len(old))
	for i := range old {
		oldIDs[old[i].TrackID] = true
	}
	freshIDs := make(map[string]bool, len(fresh))
	for i := range fresh {
		freshIDs[fresh[i].TrackID] = true
	}

	changes := 0
	for id := range freshIDs {
		if !oldIDs[id] {
			changes++
		}
	}
	for id := range oldIDs {
		if !freshIDs[id] {
			changes++
		}
	}
	return changes
}

// computeStale marks the bundle stale from explicit invalidation or age.
func computeStale(b *Bundle, cacheDuration time.Duration, now time.Time) {
	b.Stale = b.Invalidated || now.Sub(b.GeneratedAt) > cacheDuration
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package analysis computes the analytical views over one ranked chart
// snapshot: movers, entries, peaks, stream shares, collaborations,
// cross-territory overlap, momentum, genre/origin and label breakdowns,
// rising artists and executive KPIs. Every method is a pure function of its
// arguments and the configuration captured at construction; the engine holds
// no mutable state and is safe for concurrent use.
package analysis

import (
	"time"

	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/models"
)

// Engine computes analysis views for ranked snapshots.
type Engine struct {
	cfg    models.AnalysisConfig
	collab CollabPolicy
}

// NewEngine creates an analysis engine. A nil collab policy falls back to
// the artist-string heuristic.
func NewEngine(cfg models.AnalysisConfig, collab CollabPolicy) *Engine {
	if collab == nil {
		collab = HeuristicCollabPolicy{}
	}
	return &Engine{cfg: cfg, collab: collab}
}

// Config returns the engine's configuration.
func (e *Engine) Config() models.AnalysisConfig {
	return e.cfg
}

// AnalyzeAll runs every per-territory view over one snapshot and assembles
// the bundle. Exits are the ledger-classified tracks that dropped off since
// the prior cycle; previous-cycle tier totals feed the streams aggregates.
// Pass empty values when no prior cycle exists.
func (e *Engine) AnalyzeAll(
	tracks, exits []models.TrackAnalysis,
	previous models.TierTotals,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.AnalysisBundle {
	start := time.Now()

	entries := e.AnalyzeEntries(tracks, exits, territory, period, date)
	streams := e.AnalyzeStreams(tracks, territory, period, date)
	labels := e.AnalyzeLabelDistributor(tracks, territory, period, date)
	artists := e.AnalyzeRisingArtists(tracks, territory, period, date)

	bundle := &models.AnalysisBundle{
		Territory:         territory,
		Period:            period,
		Date:              date,
		Movers:            e.AnalyzeMovers(tracks, territory, period, date),
		Entries:           entries,
		Peaks:             e.AnalyzePeaks(tracks, territory, period, date),
		Streams:           streams,
		StreamsAggregates: e.AnalyzeStreamsAggregates(tracks, previous, territory, period, date),
		Collaborations:    e.AnalyzeCollaborations(tracks, territory, period, date),
		Momentum:          e.AnalyzeMomentum(tracks, territory, period, date),
		GenreOrigin:       e.AnalyzeGenreOrigin(tracks, territory, period, date),
		LabelDistributor:  labels,
		RisingArtists:     artists,
		Executive:         e.ExecutiveKPIs(tracks, entries, streams, labels, artists, territory, period, date),
	}

	logging.Debug().
		Str("territory", string(territory)).
		Str("period", string(period)).
		Int("tracks", len(tracks)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis bundle computed")

	return bundle
}

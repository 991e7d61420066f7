// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package history keeps the append-only snapshot ledger. Each recorded
// cycle stores the chart membership (ordered track ids) plus tier stream
// totals, and per-track running stats (peak, weeks on chart, consecutive
// tier runs, recent position deltas). Debut, re-entry and exit
// classification is a structural set difference between consecutive
// recorded snapshots, never a heuristic over flags embedded in the current
// one.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// ErrNoHistory marks a (territory, period) key with no recorded snapshots.
var ErrNoHistory = errors.New("history: no recorded snapshots")

// Membership is one recorded snapshot: which tracks charted and the tier
// stream totals of that cycle.
type Membership struct {
	Seq      uint64            `json:"seq"`
	Date     time.Time         `json:"date"`
	TrackIDs []string          `json:"track_ids"`
	Totals   models.TierTotals `json:"totals"`
}

// TrackStats is the per-track running state the snapshot builder maintains
// across cycles.
type TrackStats struct {
	TrackID           string `json:"track_id"`
	PeakPosition      int    `json:"peak_position"`
	WeeksOnChart      int    `json:"weeks_on_chart"`
	ConsecutiveTop10  int    `json:"consecutive_top10"`
	ConsecutiveTop50  int    `json:"consecutive_top50"`
	ConsecutiveTop200 int    `json:"consecutive_top200"`

	// LastPosition, LastStreams and LastSpeed carry the previous cycle's
	// values so the builder can derive deltas, 4-cycle speed and
	// acceleration.
	LastPosition int       `json:"last_position"`
	LastStreams  int64     `json:"last_streams"`
	LastSpeed    float64   `json:"last_speed"`
	RecentDeltas []float64 `json:"recent_deltas"`
}

// Ledger is the append-only history store for one deployment. All methods
// are safe for concurrent use.
type Ledger interface {
	// Record appends one snapshot's membership for the key. Sequence
	// numbers are assigned monotonically per (territory, period).
	Record(ctx context.Context, territory models.Territory, period models.Period, m Membership) error

	// Last returns up to n most recent memberships, newest first.
	// ErrNoHistory when nothing has been recorded for the key.
	Last(ctx context.Context, territory models.Territory, period models.Period, n int) ([]Membership, error)

	// StatsFor returns the running stats for the given track ids. Tracks
	// never seen before are simply absent from the result.
	StatsFor(ctx context.Context, territory models.Territory, period models.Period, ids []string) (map[string]TrackStats, error)

	// PutStats upserts running stats after a cycle.
	PutStats(ctx context.Context, territory models.Territory, period models.Period, stats []TrackStats) error

	// Prune drops memberships beyond the newest keep entries.
	Prune(ctx context.Context, territory models.Territory, period models.Period, keep int) (int, error)
}

// Classification is the structural entry/exit split for one cycle.
type Classification struct {
	Debuts    map[string]bool
	Reentries map[string]bool
	Exits     map[string]bool
}

// Classify compares the current membership against prior snapshots, newest
// first. A track absent from the immediately prior snapshot is a re-entry
// when any older recorded snapshot contains it, otherwise a debut. Exits
// are prior tracks missing now. With no recorded history nothing can be
// classified and all sets are empty.
func Classify(current []string, prior []Membership) Classification {
	c := Classification{
		Debuts:    make(map[string]bool),
		Reentries: make(map[string]bool),
		Exits:     make(map[string]bool),
	}
	if len(prior) == 0 {
		return c
	}

	prev := make(map[string]bool, len(prior[0].TrackIDs))
	for _, id := range prior[0].TrackIDs {
		prev[id] = true
	}

	older := make(map[string]bool)
	for _, m := range prior[1:] {
		for _, id := range m.TrackIDs {
			older[id] = true
		}
	}

	seen := make(map[string]bool, len(current))
	for _, id := range current {
		seen[id] = true
		if prev[id] {
			continue
		}
		if older[id] {
			c.Reentries[id] = true
		} else {
			c.Debuts[id] = true
		}
	}

	for id := range prev {
		if !seen[id] {
			c.Exits[id] = true
		}
	}
	return c
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tduarte/chartpulse/internal/analysis"
	"github.com/tduarte/chartpulse/internal/history"
	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/models"
)

// speedWindow is how many recent position deltas feed the speed average.
const speedWindow = 4

// defaultHistoryDepth is how many prior memberships are consulted when
// classifying entries. Deep enough that a track returning after a couple of
// months still reads as a re-entry, not a debut.
const defaultHistoryDepth = 12

// Result is one fully derived cycle: the enriched current tracks, stub
// records for tracks that dropped off, and the tier stream totals of this
// and the prior cycle.
type Result struct {
	Tracks         []models.TrackAnalysis
	Exits          []models.TrackAnalysis
	CurrentTotals  models.TierTotals
	PreviousTotals models.TierTotals
}

// Builder derives per-track analytics from raw snapshot entries using the
// history ledger. Build is not safe for concurrent calls on the same
// (territory, period) key; the orchestrator serializes per-key refreshes.
type Builder struct {
	ledger  history.Ledger
	weights models.MomentumWeights
	depth   int
}

// NewBuilder wires a builder to the ledger. Momentum weights come from the
// analysis configuration so the builder and the engine always agree on the
// score.
func NewBuilder(ledger history.Ledger, weights models.MomentumWeights) *Builder {
	return &Builder{ledger: ledger, weights: weights, depth: defaultHistoryDepth}
}

// Build enriches one snapshot and advances the ledger: it classifies
// entries against recorded history, derives deltas, longevity and momentum
// from per-track running stats, then records the new membership and the
// updated stats.
func (b *Builder) Build(ctx context.Context, snap *Snapshot) (*Result, error) {
	if len(snap.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrEmptySnapshot, snap.Territory, snap.Period)
	}

	ids := make([]string, 0, len(snap.Entries))
	for i := range snap.Entries {
		if id := snap.Entries[i].TrackID; id != "" {
			ids = append(ids, id)
		}
	}

	prior, err := b.ledger.Last(ctx, snap.Territory, snap.Period, b.depth)
	if err != nil && !errors.Is(err, history.ErrNoHistory) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	cls := history.Classify(ids, prior)
	if len(prior) == 0 {
		// First recorded cycle: the ledger has nothing to diff against,
		// so the feed's own entry flags stand in.
		cls = classificationFromFeed(snap)
	}

	statIDs := make([]string, 0, len(ids)+len(cls.Exits))
	statIDs = append(statIDs, ids...)
	for id := range cls.Exits {
		statIDs = append(statIDs, id)
	}
	stats, err := b.ledger.StatsFor(ctx, snap.Territory, snap.Period, statIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load track stats: %w", err)
	}

	res := &Result{Tracks: make([]models.TrackAnalysis, 0, len(snap.Entries))}
	updated := make([]history.TrackStats, 0, len(statIDs))

	for i := range snap.Entries {
		entry := &snap.Entries[i]
		stat, hasStat := stats[entry.TrackID]

		track := b.deriveTrack(snap, entry, stat, hasStat, cls)
		res.Tracks = append(res.Tracks, track)

		if entry.TrackID != "" {
			updated = append(updated, nextStats(entry, &track, stat, hasStat))
		}

		switch tier := entry.Position; {
		case tier <= 10:
			res.CurrentTotals.Top10 += track.StreamsOrZero()
			fallthrough
		case tier <= 50:
			res.CurrentTotals.Top50 += track.StreamsOrZero()
			fallthrough
		case tier <= 200:
			res.CurrentTotals.Top200 += track.StreamsOrZero()
		}
	}

	res.Exits = b.exitStubs(snap, cls, stats, &updated)
	if len(prior) > 0 {
		res.PreviousTotals = prior[0].Totals
	}

	if err := b.ledger.Record(ctx, snap.Territory, snap.Period, history.Membership{
		Date:     snap.Date,
		TrackIDs: ids,
		Totals:   res.CurrentTotals,
	}); err != nil {
		return nil, fmt.Errorf("failed to record membership: %w", err)
	}
	if err := b.ledger.PutStats(ctx, snap.Territory, snap.Period, updated); err != nil {
		return nil, fmt.Errorf("failed to store track stats: %w", err)
	}

	logging.Debug().
		Str("territory", string(snap.Territory)).
		Str("period", string(snap.Period)).
		Int("tracks", len(res.Tracks)).
		Int("debuts", len(cls.Debuts)).
		Int("reentries", len(cls.Reentries)).
		Int("exits", len(res.Exits)).
		Msg("snapshot derived and ledger advanced")

	return res, nil
}

// deriveTrack turns one raw entry into the enriched record.
func (b *Builder) deriveTrack(snap *Snapshot, entry *Entry, stat history.TrackStats, hasStat bool, cls history.Classification) models.TrackAnalysis {
	track := models.TrackAnalysis{
		TrackID:           entry.TrackID,
		TrackName:         entry.TrackName,
		Artists:           entry.Artists,
		Territory:         snap.Territory,
		Period:            snap.Period,
		Date:              snap.Date,
		Position:          entry.Position,
		PreviousPosition:  entry.PreviousPosition,
		Streams:           entry.Streams,
		IsDebut:           cls.Debuts[entry.TrackID],
		IsReentry:         cls.Reentries[entry.TrackID],
		Genres:            entry.Genres,
		Label:             entry.Label,
		Distributor:       entry.Distributor,
		MainArtistCountry: entry.MainArtistCountry,
		MainArtistCity:    entry.MainArtistCity,
		SpotifyFollowers:  entry.SpotifyFollowers,
		IGFollowers:       entry.IGFollowers,
		TikTokFollowers:   entry.TikTokFollowers,
		EngagementRate:    entry.EngagementRate,
	}

	// The feed's previous_position wins; the ledger fills the gap for
	// tracks that stayed on chart when the feed omits it. Debuts and
	// re-entries have no meaningful previous position.
	if track.PreviousPosition == nil && hasStat && stat.LastPosition > 0 &&
		!track.IsDebut && !track.IsReentry {
		track.PreviousPosition = models.IntPtr(stat.LastPosition)
	}
	if track.PreviousPosition != nil {
		track.DeltaPos = models.IntPtr(*track.PreviousPosition - track.Position)
	}
	if track.Streams != nil && hasStat && stat.LastStreams > 0 &&
		!track.IsDebut && !track.IsReentry {
		pctChange := (float64(*track.Streams)/float64(stat.LastStreams) - 1) * 100
		track.DeltaStreamsPct = models.Float64Ptr(pctChange)
	}

	// Longevity from the running stats. The recorded peak must be
	// compared before it is merged into PeakPosition, which always
	// reflects the best placement including this cycle.
	track.PeakPosition = entry.Position
	track.WeeksOnChart = 1
	if hasStat {
		if stat.PeakPosition > 0 {
			track.IsNewPeak = entry.Position < stat.PeakPosition
			if stat.PeakPosition < track.PeakPosition {
				track.PeakPosition = stat.PeakPosition
			}
		}
		track.WeeksOnChart = stat.WeeksOnChart + 1
	} else {
		// No recorded history for this track; the feed's flag stands in.
		track.IsNewPeak = entry.IsNewPeak
	}
	track.ConsecutiveWeeksTop10 = models.IntPtr(consecutive(stat.ConsecutiveTop10, entry.Position, 10))
	track.ConsecutiveWeeksTop50 = models.IntPtr(consecutive(stat.ConsecutiveTop50, entry.Position, 50))
	track.ConsecutiveWeeksTop200 = models.IntPtr(consecutive(stat.ConsecutiveTop200, entry.Position, 200))

	// Momentum: speed is the mean of the recent position deltas,
	// acceleration its change since the prior cycle.
	if track.DeltaPos != nil {
		deltas := appendDelta(stat.RecentDeltas, float64(*track.DeltaPos))
		speed := meanOf(deltas)
		track.Speed4W = models.Float64Ptr(speed)
		if hasStat && len(stat.RecentDeltas) > 0 {
			track.Acceleration = models.Float64Ptr(speed - stat.LastSpeed)
		}
	}
	track.MomentumScore = models.Float64Ptr(analysis.MomentumScore(b.weights, &track))

	return track
}

// classificationFromFeed builds entry classification from the feed's own
// flags for the first recorded cycle.
func classificationFromFeed(snap *Snapshot) history.Classification {
	cls := history.Classification{
		Debuts:    make(map[string]bool),
		Reentries: make(map[string]bool),
		Exits:     make(map[string]bool),
	}
	for i := range snap.Entries {
		entry := &snap.Entries[i]
		if entry.TrackID == "" {
			continue
		}
		if entry.IsNewEntry {
			cls.Debuts[entry.TrackID] = true
		}
		if entry.IsReEntry {
			cls.Reentries[entry.TrackID] = true
		}
	}
	return cls
}

// nextStats produces the updated running stats for one charting track.
func nextStats(entry *Entry, track *models.TrackAnalysis, stat history.TrackStats, hasStat bool) history.TrackStats {
	next := history.TrackStats{
		TrackID:           entry.TrackID,
		PeakPosition:      track.PeakPosition,
		WeeksOnChart:      track.WeeksOnChart,
		ConsecutiveTop10:  *track.ConsecutiveWeeksTop10,
		ConsecutiveTop50:  *track.ConsecutiveWeeksTop50,
		ConsecutiveTop200: *track.ConsecutiveWeeksTop200,
		LastPosition:      entry.Position,
		LastStreams:       track.StreamsOrZero(),
	}
	if track.DeltaPos != nil {
		next.RecentDeltas = appendDelta(stat.RecentDeltas, float64(*track.DeltaPos))
		next.LastSpeed = meanOf(next.RecentDeltas)
	} else if hasStat {
		// Position delta unknown this cycle; the speed window restarts.
		next.RecentDeltas = nil
		next.LastSpeed = 0
	}
	return next
}

// exitStubs builds records for tracks that dropped off, carrying their last
// known placement, and resets their run state in the stats so a later
// re-entry starts fresh streaks.
func (b *Builder) exitStubs(snap *Snapshot, cls history.Classification, stats map[string]history.TrackStats, updated *[]history.TrackStats) []models.TrackAnalysis {
	if len(cls.Exits) == 0 {
		return nil
	}

	ids := make([]string, 0, len(cls.Exits))
	for id := range cls.Exits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stubs := make([]models.TrackAnalysis, 0, len(ids))
	for _, id := range ids {
		stub := models.TrackAnalysis{
			TrackID:   id,
			Territory: snap.Territory,
			Period:    snap.Period,
			Date:      snap.Date,
			IsExit:    true,
		}
		if stat, ok := stats[id]; ok {
			if stat.LastPosition > 0 {
				stub.PreviousPosition = models.IntPtr(stat.LastPosition)
			}
			stub.PeakPosition = stat.PeakPosition
			stub.WeeksOnChart = stat.WeeksOnChart

			reset := stat
			reset.ConsecutiveTop10 = 0
			reset.ConsecutiveTop50 = 0
			reset.ConsecutiveTop200 = 0
			reset.RecentDeltas = nil
			reset.LastSpeed = 0
			*updated = append(*updated, reset)
		}
		stubs = append(stubs, stub)
	}
	return stubs
}

// consecutive extends or resets a tier streak for the new position.
func consecutive(prev, position, tier int) int {
	if position > 0 && position <= tier {
		return prev + 1
	}
	return 0
}

// appendDelta pushes a delta onto the window, keeping the newest
// speedWindow values.
func appendDelta(deltas []float64, d float64) []float64 {
	out := make([]float64, 0, speedWindow)
	if keep := len(deltas); keep > speedWindow-1 {
		deltas = deltas[keep-(speedWindow-1):]
	}
	out = append(out, deltas...)
	return append(out, d)
}

func meanOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

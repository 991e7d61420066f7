// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package analysis

import (
	"sort"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// AnalyzeMomentum surfaces the fastest climbers, the strongest
// accelerators, the breakout watchlist and the momentum leaderboard. The
// watchlist gate is: outside the Top 50, momentum score at or above the
// configured floor, streams growing at or above the configured percentage.
func (e *Engine) AnalyzeMomentum(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.MomentumAnalysis {
	velocity := filterTracks(tracks, func(t *models.TrackAnalysis) bool { return t.Speed4W != nil })
	sort.SliceStable(velocity, func(i, j int) bool { return *velocity[i].Speed4W > *velocity[j].Speed4W })

	accel := filterTracks(tracks, func(t *models.TrackAnalysis) bool { return t.Acceleration != nil })
	sort.SliceStable(accel, func(i, j int) bool { return *accel[i].Acceleration > *accel[j].Acceleration })

	breakout := filterTracks(tracks, func(t *models.TrackAnalysis) bool {
		return t.Position > e.cfg.BreakoutMinPosition &&
			t.MomentumScore != nil && *t.MomentumScore >= e.cfg.BreakoutMinScore &&
			t.DeltaStreamsPct != nil && *t.DeltaStreamsPct >= e.cfg.BreakoutMinStreamsPct
	})
	sort.SliceStable(breakout, func(i, j int) bool { return *breakout[i].MomentumScore > *breakout[j].MomentumScore })

	leaderboard := filterTracks(tracks, func(t *models.TrackAnalysis) bool { return t.MomentumScore != nil })
	sort.SliceStable(leaderboard, func(i, j int) bool {
		return *leaderboard[i].MomentumScore > *leaderboard[j].MomentumScore
	})

	return &models.MomentumAnalysis{
		Territory:           territory,
		Period:              period,
		Date:                date,
		VelocityTracks:      topN(velocity, e.cfg.TopNDefault),
		AccelerationTracks:  topN(accel, e.cfg.TopNDefault),
		BreakoutWatchlist:   breakout,
		MomentumLeaderboard: topN(leaderboard, e.cfg.TopNDefault),
	}
}

// MomentumScore computes the 0-100 composite momentum score for one track
// from the configured component weights. Deterministic: identical inputs
// always produce the identical score.
//
// Components, each normalized to 0-100:
//   - position: 50 is holding steady; every place gained or lost moves the
//     component by 2.
//   - streams: 50 plus the stream change percentage.
//   - social: engagement rate scaled by 10 (a 5% rate scores 50).
//   - cross-territory: share of the other supported markets the track also
//     charts in.
func MomentumScore(w models.MomentumWeights, t *models.TrackAnalysis) float64 {
	var posComp float64 = 50
	if t.DeltaPos != nil {
		posComp = clamp(50+2*float64(*t.DeltaPos), 0, 100)
	}

	var streamComp float64 = 50
	if t.DeltaStreamsPct != nil {
		streamComp = clamp(50+*t.DeltaStreamsPct, 0, 100)
	}

	var socialComp float64
	if t.EngagementRate != nil {
		socialComp = clamp(*t.EngagementRate*10, 0, 100)
	}

	var crossComp float64
	if otherMarkets := len(models.AllTerritories()) - 1; otherMarkets > 0 {
		crossComp = clamp(float64(len(t.CrossTerritoryMarkets))/float64(otherMarkets)*100, 0, 100)
	}

	score := w.Position*posComp + w.Streams*streamComp + w.Social*socialComp + w.CrossTerritory*crossComp
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

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

// AnalyzeMovers ranks the cycle's position and stream movers. DeltaPos is
// previous minus current position, so positive means the track climbed.
// Position rankings break ties by absolute stream change, largest first.
func (e *Engine) AnalyzeMovers(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.MoversAnalysis {
	var valid []models.TrackAnalysis
	for _, t := range tracks {
		if t.DeltaPos != nil {
			valid = append(valid, t)
		}
	}

	gainers := filterTracks(valid, func(t *models.TrackAnalysis) bool { return *t.DeltaPos > 0 })
	sort.SliceStable(gainers, func(i, j int) bool {
		if *gainers[i].DeltaPos != *gainers[j].DeltaPos {
			return *gainers[i].DeltaPos > *gainers[j].DeltaPos
		}
		return absStreamsDelta(&gainers[i]) > absStreamsDelta(&gainers[j])
	})

	losers := filterTracks(valid, func(t *models.TrackAnalysis) bool { return *t.DeltaPos < 0 })
	sort.SliceStable(losers, func(i, j int) bool {
		if *losers[i].DeltaPos != *losers[j].DeltaPos {
			return *losers[i].DeltaPos < *losers[j].DeltaPos
		}
		return absStreamsDelta(&losers[i]) > absStreamsDelta(&losers[j])
	})

	gainersStreams := filterTracks(valid, func(t *models.TrackAnalysis) bool {
		return t.DeltaStreamsPct != nil && *t.DeltaStreamsPct > 0
	})
	sort.SliceStable(gainersStreams, func(i, j int) bool {
		return *gainersStreams[i].DeltaStreamsPct > *gainersStreams[j].DeltaStreamsPct
	})

	losersStreams := filterTracks(valid, func(t *models.TrackAnalysis) bool {
		return t.DeltaStreamsPct != nil && *t.DeltaStreamsPct < 0
	})
	sort.SliceStable(losersStreams, func(i, j int) bool {
		return *losersStreams[i].DeltaStreamsPct < *losersStreams[j].DeltaStreamsPct
	})

	deltas := make([]float64, len(valid))
	for i := range valid {
		deltas[i] = float64(*valid[i].DeltaPos)
	}

	return &models.MoversAnalysis{
		Territory:         territory,
		Period:            period,
		Date:              date,
		TopGainers:        topN(gainers, e.cfg.TopNDefault),
		TopGainersStreams: topN(gainersStreams, e.cfg.TopNDefault),
		TopLosers:         topN(losers, e.cfg.TopNDefault),
		TopLosersStreams:  topN(losersStreams, e.cfg.TopNDefault),
		MeanDeltaPos:      mean(deltas),
		MedianDeltaPos:    median(deltas),
		VolatilityIndex:   stddev(deltas),
	}
}

func filterTracks(tracks []models.TrackAnalysis, keep func(*models.TrackAnalysis) bool) []models.TrackAnalysis {
	var out []models.TrackAnalysis
	for i := range tracks {
		if keep(&tracks[i]) {
			out = append(out, tracks[i])
		}
	}
	return out
}

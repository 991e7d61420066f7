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

// AnalyzeStreams ranks absolute stream leaders and computes tier
// concentration shares. Shares are fractions of the snapshot total, guarded
// against an all-unknown snapshot.
func (e *Engine) AnalyzeStreams(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.StreamsAnalysis {
	withStreams := filterTracks(tracks, func(t *models.TrackAnalysis) bool {
		return t.StreamsOrZero() > 0
	})
	sort.SliceStable(withStreams, func(i, j int) bool {
		return withStreams[i].StreamsOrZero() > withStreams[j].StreamsOrZero()
	})

	total := sumStreams(tracks, 0)
	var share10, share50, share200 float64
	if total > 0 {
		share10 = float64(sumStreams(tracks, 10)) / float64(total)
		share50 = float64(sumStreams(tracks, 50)) / float64(total)
		share200 = 1
	}

	return &models.StreamsAnalysis{
		Territory:         territory,
		Period:            period,
		Date:              date,
		TopStreams:        topN(withStreams, e.cfg.TopNDefault),
		StreamShareTop10:  share10,
		StreamShareTop50:  share50,
		StreamShareTop200: share200,
	}
}

// AnalyzeStreamsAggregates compares current tier totals against the
// previous cycle's. Growth against a zero (unknown) previous total reports
// as 0 rather than infinity.
func (e *Engine) AnalyzeStreamsAggregates(
	tracks []models.TrackAnalysis,
	previous models.TierTotals,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.StreamsAggregates {
	current := models.TierTotals{
		Top10:  sumStreams(tracks, 10),
		Top50:  sumStreams(tracks, 50),
		Top200: sumStreams(tracks, 0),
	}

	return &models.StreamsAggregates{
		Territory: territory,
		Period:    period,
		Date:      date,
		Current:   current,
		Previous:  previous,
		GrowthPct: models.TierGrowthPct{
			Top10:  growthPct(current.Top10, previous.Top10),
			Top50:  growthPct(current.Top50, previous.Top50),
			Top200: growthPct(current.Top200, previous.Top200),
		},
	}
}

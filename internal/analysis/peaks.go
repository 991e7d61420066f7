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

// AnalyzePeaks lists tracks currently beating their historical peak and the
// longest consecutive runs per chart tier. Run lists are gated by a minimum
// length per tier so only established residencies appear.
func (e *Engine) AnalyzePeaks(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.PeaksAnalysis {
	newPeaks := filterTracks(tracks, func(t *models.TrackAnalysis) bool {
		return t.IsNewPeak
	})

	return &models.PeaksAnalysis{
		Territory: territory,
		Period:    period,
		Date:      date,
		NewPeaks:  newPeaks,
		LongestRunsTop10: longestRuns(tracks, e.cfg.MinRunWeeksTop10, func(t *models.TrackAnalysis) int {
			if t.ConsecutiveWeeksTop10 == nil {
				return 0
			}
			return *t.ConsecutiveWeeksTop10
		}),
		LongestRunsTop50: longestRuns(tracks, e.cfg.MinRunWeeksTop50, func(t *models.TrackAnalysis) int {
			if t.ConsecutiveWeeksTop50 == nil {
				return 0
			}
			return *t.ConsecutiveWeeksTop50
		}),
		LongestRunsTop200: longestRuns(tracks, e.cfg.MinRunWeeksTop200, func(t *models.TrackAnalysis) int {
			if t.ConsecutiveWeeksTop200 == nil {
				return 0
			}
			return *t.ConsecutiveWeeksTop200
		}),
	}
}

func longestRuns(tracks []models.TrackAnalysis, minWeeks int, weeks func(*models.TrackAnalysis) int) []models.TrackAnalysis {
	runs := filterTracks(tracks, func(t *models.TrackAnalysis) bool {
		return weeks(t) >= minWeeks
	})
	sort.SliceStable(runs, func(i, j int) bool {
		return weeks(&runs[i]) > weeks(&runs[j])
	})
	return runs
}

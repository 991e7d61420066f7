// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package analysis

import (
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// DataQuality measures completeness and freshness of one snapshot.
// lastUpdate is when the upstream chart was published; now is the
// evaluation instant, injected so callers control the clock.
func (e *Engine) DataQuality(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
	lastUpdate time.Time,
	now time.Time,
) *models.DataQualityFlags {
	expected := e.cfg.CatalogSize
	actual := len(tracks)

	var completeness float64
	if expected > 0 {
		completeness = float64(actual) / float64(expected) * 100
	}

	var missingIDs int
	for i := range tracks {
		if tracks[i].TrackID == "" {
			missingIDs++
		}
	}

	age := now.Sub(lastUpdate)
	stale := !lastUpdate.IsZero() && age > period.StaleAfter()

	return &models.DataQualityFlags{
		Territory:       territory,
		Period:          period,
		Date:            date,
		ExpectedTracks:  expected,
		ActualTracks:    actual,
		CompletenessPct: completeness,
		LastUpdate:      lastUpdate,
		IsStale:         stale,
		StalenessHours:  age.Hours(),
		MissingTrackIDs: missingIDs,
		IncompleteData:  completeness < e.cfg.Thresholds.DataCompletenessPct,
	}
}

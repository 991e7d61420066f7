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

// AnalyzeEntries covers debuts, re-entries, exits and turnover. The entry
// flags are set upstream by the snapshot builder from the history ledger;
// this view only aggregates them. Exited tracks are absent from the current
// snapshot, so they arrive as a separate slice of stub records. Turnover
// percentages divide by the configured catalog size, not the snapshot
// length, so a short snapshot does not inflate turnover.
func (e *Engine) AnalyzeEntries(
	tracks, exits []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.EntriesAnalysis {
	debuts := filterTracks(tracks, func(t *models.TrackAnalysis) bool { return t.IsDebut })
	reentries := filterTracks(tracks, func(t *models.TrackAnalysis) bool { return t.IsReentry })

	topDebuts := make([]models.TrackAnalysis, len(debuts))
	copy(topDebuts, debuts)
	sort.SliceStable(topDebuts, func(i, j int) bool {
		return topDebuts[i].StreamsOrZero() > topDebuts[j].StreamsOrZero()
	})

	// A re-entry is relevant when it lands in the Top 100 or returns with
	// at least 25% stream growth.
	relevant := filterTracks(reentries, func(t *models.TrackAnalysis) bool {
		return t.Position <= 100 || (t.DeltaStreamsPct != nil && *t.DeltaStreamsPct >= 25)
	})

	catalog := e.cfg.CatalogSize

	return &models.EntriesAnalysis{
		Territory:          territory,
		Period:             period,
		Date:               date,
		DebutCount:         len(debuts),
		ReentryCount:       len(reentries),
		ExitCount:          len(exits),
		TopDebuts:          topN(topDebuts, e.cfg.TopNDefault),
		RelevantReentries:  relevant,
		TurnoverNewPct:     pct(len(debuts), catalog),
		TurnoverReentryPct: pct(len(reentries), catalog),
		TurnoverExitPct:    pct(len(exits), catalog),
	}
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package analysis

import (
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// AnalyzeCollaborations splits the snapshot by the collaboration policy and
// compares average trajectories between the two groups.
func (e *Engine) AnalyzeCollaborations(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.CollaborationsAnalysis {
	var collabs, solos []models.TrackAnalysis
	for i := range tracks {
		if e.collab.IsCollaboration(&tracks[i]) {
			collabs = append(collabs, tracks[i])
		} else {
			solos = append(solos, tracks[i])
		}
	}

	return &models.CollaborationsAnalysis{
		Territory:                territory,
		Period:                   period,
		Date:                     date,
		CollaborationTracks:      collabs,
		SoloTracks:               solos,
		CollabAvgDeltaPos:        avgDeltaPos(collabs),
		SoloAvgDeltaPos:          avgDeltaPos(solos),
		CollabAvgDeltaStreamsPct: avgDeltaStreams(collabs),
		SoloAvgDeltaStreamsPct:   avgDeltaStreams(solos),
	}
}

func avgDeltaPos(tracks []models.TrackAnalysis) float64 {
	if len(tracks) == 0 {
		return 0
	}
	var sum float64
	for i := range tracks {
		if tracks[i].DeltaPos != nil {
			sum += float64(*tracks[i].DeltaPos)
		}
	}
	return sum / float64(len(tracks))
}

func avgDeltaStreams(tracks []models.TrackAnalysis) float64 {
	if len(tracks) == 0 {
		return 0
	}
	var sum float64
	for i := range tracks {
		if tracks[i].DeltaStreamsPct != nil {
			sum += *tracks[i].DeltaStreamsPct
		}
	}
	return sum / float64(len(tracks))
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package analysis

import (
	"strings"

	"github.com/tduarte/chartpulse/internal/models"
)

// CollabPolicy decides whether a track is a collaboration. The default is a
// string heuristic over the artist credit; a metadata-backed classifier can
// replace it without touching the engine.
type CollabPolicy interface {
	IsCollaboration(t *models.TrackAnalysis) bool
	Name() string
}

// HeuristicCollabPolicy flags multi-artist credits by separator and
// featuring markers in the artist string. Approximate by nature: a band name
// containing "&" is miscounted, which is why this lives behind the
// interface.
type HeuristicCollabPolicy struct{}

func (HeuristicCollabPolicy) Name() string { return "artist-string-heuristic" }

func (HeuristicCollabPolicy) IsCollaboration(t *models.TrackAnalysis) bool {
	a := t.Artists
	return strings.Contains(a, ",") ||
		strings.Contains(a, "feat.") ||
		strings.Contains(a, "ft.") ||
		strings.Contains(a, "&")
}

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

// AnalyzeCrossTerritory computes the pairwise overlap between every two
// territories' snapshots: intersection size, Jaccard similarity, and the
// shared track ids. It also lists tracks charting in two or more markets,
// best position first.
func (e *Engine) AnalyzeCrossTerritory(
	byTerritory map[models.Territory][]models.TrackAnalysis,
	period models.Period,
	date time.Time,
) *models.CrossTerritoryAnalysis {
	territories := make([]models.Territory, 0, len(byTerritory))
	for t := range byTerritory {
		territories = append(territories, t)
	}
	sort.Slice(territories, func(i, j int) bool { return territories[i] < territories[j] })

	idSets := make(map[models.Territory]map[string]bool, len(territories))
	for _, terr := range territories {
		set := make(map[string]bool, len(byTerritory[terr]))
		for i := range byTerritory[terr] {
			if id := byTerritory[terr][i].TrackID; id != "" {
				set[id] = true
			}
		}
		idSets[terr] = set
	}

	matrix := make(map[models.Territory]map[models.Territory]models.TerritoryOverlap, len(territories))
	for _, a := range territories {
		matrix[a] = make(map[models.Territory]models.TerritoryOverlap, len(territories)-1)
		for _, b := range territories {
			if a == b {
				continue
			}
			matrix[a][b] = overlap(idSets[a], idSets[b])
		}
	}

	return &models.CrossTerritoryAnalysis{
		Period:             period,
		Date:               date,
		IntersectionMatrix: matrix,
		MultiMarketTracks:  multiMarket(byTerritory, idSets, territories),
	}
}

func overlap(a, b map[string]bool) models.TerritoryOverlap {
	var shared []string
	for id := range a {
		if b[id] {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)

	union := len(a) + len(b) - len(shared)
	var jaccard float64
	if union > 0 {
		jaccard = float64(len(shared)) / float64(union)
	}
	return models.TerritoryOverlap{Count: len(shared), Jaccard: jaccard, Tracks: shared}
}

// multiMarket picks, for each track charting in at least two territories,
// its best-positioned appearance and annotates the markets it reaches.
func multiMarket(
	byTerritory map[models.Territory][]models.TrackAnalysis,
	idSets map[models.Territory]map[string]bool,
	territories []models.Territory,
) []models.TrackAnalysis {
	best := make(map[string]models.TrackAnalysis)
	markets := make(map[string][]string)

	for _, terr := range territories {
		for i := range byTerritory[terr] {
			track := byTerritory[terr][i]
			if track.TrackID == "" {
				continue
			}
			markets[track.TrackID] = append(markets[track.TrackID], string(terr))
			if prev, ok := best[track.TrackID]; !ok || track.Position < prev.Position {
				best[track.TrackID] = track
			}
		}
	}

	var out []models.TrackAnalysis
	for id, track := range best {
		if len(markets[id]) < 2 {
			continue
		}
		track.CrossTerritoryMarkets = markets[id]
		out = append(out, track)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].CrossTerritoryMarkets) != len(out[j].CrossTerritoryMarkets) {
			return len(out[i].CrossTerritoryMarkets) > len(out[j].CrossTerritoryMarkets)
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].TrackID < out[j].TrackID
	})
	return out
}

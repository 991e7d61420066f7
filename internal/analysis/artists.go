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

// AnalyzeRisingArtists groups the snapshot by first-listed artist and ranks
// by total streams.
func (e *Engine) AnalyzeRisingArtists(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.RisingArtistsAnalysis {
	type agg struct {
		count      int
		positions  int
		streams    int64
		best       int
		momentum   float64
		momentumN  int
		engagement float64
	}

	artists := make(map[string]*agg)
	for i := range tracks {
		t := &tracks[i]
		name := t.MainArtist()
		if name == "" {
			continue
		}
		a := artists[name]
		if a == nil {
			a = &agg{best: t.Position}
			if t.EngagementRate != nil {
				a.engagement = *t.EngagementRate
			}
			artists[name] = a
		}
		a.count++
		a.positions += t.Position
		a.streams += t.StreamsOrZero()
		if t.Position < a.best {
			a.best = t.Position
		}
		if t.MomentumScore != nil {
			a.momentum += *t.MomentumScore
			a.momentumN++
		}
	}

	rising := make([]models.RisingArtist, 0, len(artists))
	for name, a := range artists {
		r := models.RisingArtist{
			Artist:         name,
			TrackCount:     a.count,
			AvgPosition:    float64(a.positions) / float64(a.count),
			TotalStreams:   a.streams,
			BestPosition:   a.best,
			EngagementRate: a.engagement,
		}
		if a.momentumN > 0 {
			r.AvgMomentum = a.momentum / float64(a.momentumN)
		}
		rising = append(rising, r)
	}
	sort.SliceStable(rising, func(i, j int) bool {
		if rising[i].TotalStreams != rising[j].TotalStreams {
			return rising[i].TotalStreams > rising[j].TotalStreams
		}
		return rising[i].Artist < rising[j].Artist
	})

	return &models.RisingArtistsAnalysis{
		Territory:     territory,
		Period:        period,
		Date:          date,
		RisingArtists: topArtists(rising, e.cfg.TopNDefault),
	}
}

func topArtists(artists []models.RisingArtist, n int) []models.RisingArtist {
	if n > 0 && len(artists) > n {
		return artists[:n]
	}
	return artists
}

// ExecutiveKPIs condenses the cycle into headline numbers. The highlight
// picks are derived from the already-computed views: track of the week is
// the biggest positive stream mover, label of the week the largest stream
// share, artist of the week the top rising artist.
func (e *Engine) ExecutiveKPIs(
	tracks []models.TrackAnalysis,
	entries *models.EntriesAnalysis,
	streams *models.StreamsAnalysis,
	labels *models.LabelDistributorAnalysis,
	artists *models.RisingArtistsAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.ExecutiveKPIs {
	kpis := &models.ExecutiveKPIs{
		Territory:    territory,
		Period:       period,
		Date:         date,
		Debuts:       entries.DebutCount,
		Reentries:    entries.ReentryCount,
		TurnoverRate: entries.TurnoverNewPct + entries.TurnoverReentryPct,
		Top10Share:   streams.StreamShareTop10,
		Top50Share:   streams.StreamShareTop50,
		Top200Share:  streams.StreamShareTop200,
	}

	var bestTrack *models.TrackAnalysis
	for i := range tracks {
		t := &tracks[i]
		if t.DeltaStreamsPct == nil {
			continue
		}
		if bestTrack == nil || *t.DeltaStreamsPct > *bestTrack.DeltaStreamsPct {
			bestTrack = t
		}
	}
	if bestTrack != nil {
		kpis.TrackOfTheWeek = models.TrackHighlight{
			TrackID:      bestTrack.TrackID,
			TrackName:    bestTrack.TrackName,
			Artists:      bestTrack.Artists,
			Position:     bestTrack.Position,
			DeltaStreams: *bestTrack.DeltaStreamsPct,
		}
	}

	if len(labels.LabelMarketShare) > 0 {
		top := labels.LabelMarketShare[0]
		kpis.LabelOfTheWeek = models.LabelHighlight{
			Label:          top.Name,
			StreamSharePct: top.StreamPercentage,
			TrackCount:     top.TrackCount,
		}
	}

	if len(artists.RisingArtists) > 0 {
		top := artists.RisingArtists[0]
		kpis.ArtistOfTheWeek = models.ArtistHighlight{
			Artist:      top.Artist,
			TrackCount:  top.TrackCount,
			AvgPosition: top.AvgPosition,
		}
	}

	return kpis
}

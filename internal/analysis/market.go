// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// AnalyzeGenreOrigin breaks the snapshot down by genre tag and by main
// artist origin country. A track with several genres counts once per genre.
func (e *Engine) AnalyzeGenreOrigin(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.GenreOriginAnalysis {
	type groupAgg struct {
		count     int
		positions int
		streams   int64
		city      string
	}

	genres := make(map[string]*groupAgg)
	origins := make(map[string]*groupAgg)

	for i := range tracks {
		t := &tracks[i]
		for _, g := range t.Genres {
			agg := genres[g]
			if agg == nil {
				agg = &groupAgg{}
				genres[g] = agg
			}
			agg.count++
			agg.positions += t.Position
			agg.streams += t.StreamsOrZero()
		}
		if t.MainArtistCountry != "" {
			agg := origins[t.MainArtistCountry]
			if agg == nil {
				agg = &groupAgg{city: t.MainArtistCity}
				origins[t.MainArtistCountry] = agg
			}
			agg.count++
			agg.positions += t.Position
			agg.streams += t.StreamsOrZero()
		}
	}

	genreDist := make([]models.GenreShare, 0, len(genres))
	for g, agg := range genres {
		genreDist = append(genreDist, models.GenreShare{
			Genre:        g,
			Count:        agg.count,
			Percentage:   pct(agg.count, len(tracks)),
			AvgPosition:  float64(agg.positions) / float64(agg.count),
			TotalStreams: agg.streams,
		})
	}
	sort.SliceStable(genreDist, func(i, j int) bool {
		if genreDist[i].Count != genreDist[j].Count {
			return genreDist[i].Count > genreDist[j].Count
		}
		return genreDist[i].Genre < genreDist[j].Genre
	})

	originDist := make([]models.OriginShare, 0, len(origins))
	for c, agg := range origins {
		originDist = append(originDist, models.OriginShare{
			Country:      c,
			City:         agg.city,
			Count:        agg.count,
			Percentage:   pct(agg.count, len(tracks)),
			AvgPosition:  float64(agg.positions) / float64(agg.count),
			TotalStreams: agg.streams,
		})
	}
	sort.SliceStable(originDist, func(i, j int) bool {
		if originDist[i].Count != originDist[j].Count {
			return originDist[i].Count > originDist[j].Count
		}
		return originDist[i].Country < originDist[j].Country
	})

	return &models.GenreOriginAnalysis{
		Territory:          territory,
		Period:             period,
		Date:               date,
		GenreDistribution:  genreDist,
		OriginDistribution: originDist,
	}
}

// AnalyzeLabelDistributor computes per-label and per-distributor market
// share plus the majors-versus-indies split. A track counts as major when
// its label contains any configured major-label name, case-insensitively.
func (e *Engine) AnalyzeLabelDistributor(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) *models.LabelDistributorAnalysis {
	totalStreams := sumStreams(tracks, 0)

	labelShare := marketShares(tracks, totalStreams, func(t *models.TrackAnalysis) string { return t.Label })
	distShare := marketShares(tracks, totalStreams, func(t *models.TrackAnalysis) string { return t.Distributor })

	var majors, indies []models.TrackAnalysis
	for i := range tracks {
		if tracks[i].Label == "" {
			continue
		}
		if e.isMajorLabel(tracks[i].Label) {
			majors = append(majors, tracks[i])
		} else {
			indies = append(indies, tracks[i])
		}
	}

	return &models.LabelDistributorAnalysis{
		Territory:              territory,
		Period:                 period,
		Date:                   date,
		LabelMarketShare:       labelShare,
		DistributorMarketShare: distShare,
		MajorsVsIndies: models.MajorsVsIndies{
			MajorTrackCount:       len(majors),
			MajorTrackPercentage:  pct(len(majors), len(tracks)),
			MajorStreamCount:      sumStreams(majors, 0),
			MajorStreamPercentage: streamPct(sumStreams(majors, 0), totalStreams),
			MajorAvgPosition:      avgPosition(majors),
			IndieTrackCount:       len(indies),
			IndieTrackPercentage:  pct(len(indies), len(tracks)),
			IndieStreamCount:      sumStreams(indies, 0),
			IndieStreamPercentage: streamPct(sumStreams(indies, 0), totalStreams),
			IndieAvgPosition:      avgPosition(indies),
		},
	}
}

func (e *Engine) isMajorLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, major := range e.cfg.MajorLabels {
		if strings.Contains(lower, strings.ToLower(major)) {
			return true
		}
	}
	return false
}

func marketShares(tracks []models.TrackAnalysis, totalStreams int64, key func(*models.TrackAnalysis) string) []models.MarketShare {
	type agg struct {
		count   int
		streams int64
	}
	groups := make(map[string]*agg)
	for i := range tracks {
		k := key(&tracks[i])
		if k == "" {
			continue
		}
		a := groups[k]
		if a == nil {
			a = &agg{}
			groups[k] = a
		}
		a.count++
		a.streams += tracks[i].StreamsOrZero()
	}

	shares := make([]models.MarketShare, 0, len(groups))
	for name, a := range groups {
		shares = append(shares, models.MarketShare{
			Name:             name,
			TrackCount:       a.count,
			TrackPercentage:  pct(a.count, len(tracks)),
			StreamCount:      a.streams,
			StreamPercentage: streamPct(a.streams, totalStreams),
		})
	}
	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].StreamPercentage != shares[j].StreamPercentage {
			return shares[i].StreamPercentage > shares[j].StreamPercentage
		}
		return shares[i].Name < shares[j].Name
	})
	return shares
}

func streamPct(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func avgPosition(tracks []models.TrackAnalysis) float64 {
	if len(tracks) == 0 {
		return 0
	}
	var sum int
	for i := range tracks {
		sum += tracks[i].Position
	}
	return float64(sum) / float64(len(tracks))
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package analysis

import (
	"math"
	"sort"

	"github.com/tduarte/chartpulse/internal/models"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// sumStreams totals streams over the first k tracks in snapshot order. A
// k of 0 or beyond the snapshot length covers the whole snapshot.
func sumStreams(tracks []models.TrackAnalysis, k int) int64 {
	if k <= 0 || k > len(tracks) {
		k = len(tracks)
	}
	var sum int64
	for i := 0; i < k; i++ {
		sum += tracks[i].StreamsOrZero()
	}
	return sum
}

// absStreamsDelta is the tie-break key for mover rankings: the magnitude of
// the stream change percentage, 0 when unknown.
func absStreamsDelta(t *models.TrackAnalysis) float64 {
	if t.DeltaStreamsPct == nil {
		return 0
	}
	return math.Abs(*t.DeltaStreamsPct)
}

func topN(tracks []models.TrackAnalysis, n int) []models.TrackAnalysis {
	if n > 0 && len(tracks) > n {
		return tracks[:n]
	}
	return tracks
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func growthPct(current, previous int64) float64 {
	if previous <= 0 {
		return 0
	}
	return (float64(current) - float64(previous)) / float64(previous) * 100
}

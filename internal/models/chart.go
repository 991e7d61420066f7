// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package models defines the chart data model shared by the analysis engine,
// the alert rule engine, the orchestrator and the storage layer.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Territory identifies a chart market.
type Territory string

const (
	TerritoryArgentina Territory = "argentina"
	TerritorySpain     Territory = "spain"
	TerritoryMexico    Territory = "mexico"
	TerritoryGlobal    Territory = "global"
)

// AllTerritories lists every supported territory in canonical order.
func AllTerritories() []Territory {
	return []Territory{TerritoryArgentina, TerritorySpain, TerritoryMexico, TerritoryGlobal}
}

// ParseTerritory validates a territory string. The legacy key "spanish" is
// accepted as an alias of "spain"; it appeared in one upstream feed and is
// normalized on ingest so only one canonical value exists downstream.
func ParseTerritory(s string) (Territory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "argentina":
		return TerritoryArgentina, nil
	case "spain", "spanish":
		return TerritorySpain, nil
	case "mexico":
		return TerritoryMexico, nil
	case "global":
		return TerritoryGlobal, nil
	default:
		return "", fmt.Errorf("unknown territory %q", s)
	}
}

// Period is the chart reporting cadence.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// AllPeriods lists both reporting cadences.
func AllPeriods() []Period {
	return []Period{PeriodDaily, PeriodWeekly}
}

// ParsePeriod validates a period string.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return PeriodDaily, nil
	case "weekly":
		return PeriodWeekly, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// StaleAfter returns the snapshot age beyond which data for this cadence is
// considered stale: 25 hours for daily charts (one cycle plus publishing
// slack), 7 days for weekly.
func (p Period) StaleAfter() time.Duration {
	if p == PeriodWeekly {
		return 7 * 24 * time.Hour
	}
	return 25 * time.Hour
}

// TrackAnalysis is one catalog item in one ranked snapshot, carrying the raw
// chart placement plus every derived feature the analysis and alerting
// engines consume. Optional numerics are pointers so "unknown" is
// distinguishable from zero.
type TrackAnalysis struct {
	TrackID   string    `json:"track_id"`
	TrackName string    `json:"track_name"`
	Artists   string    `json:"artists"`
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	// Chart placement
	Position         int      `json:"position"`
	PreviousPosition *int     `json:"previous_position,omitempty"`
	Streams          *int64   `json:"streams,omitempty"`
	DeltaPos         *int     `json:"delta_pos,omitempty"`
	DeltaStreamsPct  *float64 `json:"delta_streams_pct,omitempty"`

	// Entry classification
	IsDebut   bool `json:"is_debut"`
	IsReentry bool `json:"is_reentry"`
	IsExit    bool `json:"is_exit"`

	// Longevity. IsNewPeak marks a track beating its best recorded
	// position this cycle; PeakPosition already includes the new best.
	PeakPosition           int  `json:"peak_position"`
	IsNewPeak              bool `json:"is_new_peak"`
	WeeksOnChart           int  `json:"weeks_on_chart"`
	ConsecutiveWeeksTop10  *int `json:"consecutive_weeks_top10,omitempty"`
	ConsecutiveWeeksTop50  *int `json:"consecutive_weeks_top50,omitempty"`
	ConsecutiveWeeksTop200 *int `json:"consecutive_weeks_top200,omitempty"`

	// Momentum
	Speed4W       *float64 `json:"speed_4w,omitempty"`
	Acceleration  *float64 `json:"acceleration,omitempty"`
	MomentumScore *float64 `json:"momentum_score,omitempty"`

	// Catalog enrichment
	Genres            []string `json:"genres,omitempty"`
	Label             string   `json:"label,omitempty"`
	Distributor       string   `json:"distributor,omitempty"`
	MainArtistCountry string   `json:"main_artist_country,omitempty"`
	MainArtistCity    string   `json:"main_artist_city,omitempty"`

	// Social reach
	SpotifyFollowers *int64   `json:"spotify_followers,omitempty"`
	IGFollowers      *int64   `json:"ig_followers,omitempty"`
	TikTokFollowers  *int64   `json:"tiktok_followers,omitempty"`
	EngagementRate   *float64 `json:"engagement_rate,omitempty"`

	// Territories where this track also charts.
	CrossTerritoryMarkets []string `json:"cross_territory_markets,omitempty"`
}

// StreamsOrZero returns the stream count, or 0 when unknown.
func (t *TrackAnalysis) StreamsOrZero() int64 {
	if t.Streams == nil {
		return 0
	}
	return *t.Streams
}

// MainArtist returns the first listed artist name.
func (t *TrackAnalysis) MainArtist() string {
	if i := strings.IndexByte(t.Artists, ','); i >= 0 {
		return strings.TrimSpace(t.Artists[:i])
	}
	return strings.TrimSpace(t.Artists)
}

// IntPtr, Int64Ptr and Float64Ptr are small helpers for building optional
// fields, used pervasively in tests and by the snapshot builder.
func IntPtr(v int) *int             { return &v }
func Int64Ptr(v int64) *int64       { return &v }
func Float64Ptr(v float64) *float64 { return &v }

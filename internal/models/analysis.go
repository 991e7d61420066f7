// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package models

import "time"

// MoversAnalysis ranks the period's biggest position and stream movers.
type MoversAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	TopGainers        []TrackAnalysis `json:"top_gainers"`
	TopGainersStreams []TrackAnalysis `json:"top_gainers_streams"`
	TopLosers         []TrackAnalysis `json:"top_losers"`
	TopLosersStreams  []TrackAnalysis `json:"top_losers_streams"`

	MeanDeltaPos   float64 `json:"mean_delta_pos"`
	MedianDeltaPos float64 `json:"median_delta_pos"`
	// VolatilityIndex is the standard deviation of position changes across
	// the full chart.
	VolatilityIndex float64 `json:"volatility_index"`
}

// EntriesAnalysis covers debuts, re-entries, exits and chart turnover.
type EntriesAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	DebutCount   int `json:"debut_count"`
	ReentryCount int `json:"reentry_count"`
	ExitCount    int `json:"exit_count"`

	TopDebuts         []TrackAnalysis `json:"top_debuts"`
	RelevantReentries []TrackAnalysis `json:"relevant_reentries"`

	TurnoverNewPct     float64 `json:"turnover_new_pct"`
	TurnoverReentryPct float64 `json:"turnover_reentry_pct"`
	TurnoverExitPct    float64 `json:"turnover_exit_pct"`
}

// PeaksAnalysis lists tracks at new personal peaks and the longest chart
// runs per tier.
type PeaksAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	NewPeaks []TrackAnalysis `json:"new_peaks"`

	LongestRunsTop10  []TrackAnalysis `json:"longest_runs_top10"`
	LongestRunsTop50  []TrackAnalysis `json:"longest_runs_top50"`
	LongestRunsTop200 []TrackAnalysis `json:"longest_runs_top200"`
}

// StreamsAnalysis covers absolute stream leaders and concentration shares.
type StreamsAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	TopStreams []TrackAnalysis `json:"top_streams"`

	StreamShareTop10  float64 `json:"stream_share_top10"`
	StreamShareTop50  float64 `json:"stream_share_top50"`
	StreamShareTop200 float64 `json:"stream_share_top200"`
}

// CollaborationsAnalysis splits the chart into collaboration and solo
// tracks and compares their trajectories.
type CollaborationsAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	CollaborationTracks []TrackAnalysis `json:"collaboration_tracks"`
	SoloTracks          []TrackAnalysis `json:"solo_tracks"`

	CollabAvgDeltaPos        float64 `json:"collab_avg_delta_pos"`
	SoloAvgDeltaPos          float64 `json:"solo_avg_delta_pos"`
	CollabAvgDeltaStreamsPct float64 `json:"collab_avg_delta_streams_pct"`
	SoloAvgDeltaStreamsPct   float64 `json:"solo_avg_delta_streams_pct"`
}

// TerritoryOverlap describes the chart intersection between two territories.
type TerritoryOverlap struct {
	Count   int      `json:"count"`
	Jaccard float64  `json:"jaccard"`
	Tracks  []string `json:"tracks"`
}

// CrossTerritoryAnalysis holds the pairwise overlap matrix across all
// analyzed territories, keyed by territory name on both axes.
type CrossTerritoryAnalysis struct {
	Period Period    `json:"period"`
	Date   time.Time `json:"date"`

	IntersectionMatrix map[Territory]map[Territory]TerritoryOverlap `json:"intersection_matrix"`

	// MultiMarketTracks lists tracks charting in two or more territories,
	// strongest presence first.
	MultiMarketTracks []TrackAnalysis `json:"multi_market_tracks"`
}

// MomentumAnalysis surfaces velocity, acceleration and breakout candidates.
type MomentumAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	VelocityTracks      []TrackAnalysis `json:"velocity_tracks"`
	AccelerationTracks  []TrackAnalysis `json:"acceleration_tracks"`
	BreakoutWatchlist   []TrackAnalysis `json:"breakout_watchlist"`
	MomentumLeaderboard []TrackAnalysis `json:"momentum_leaderboard"`
}

// GenreShare is one genre's slice of the chart.
type GenreShare struct {
	Genre        string  `json:"genre"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
	AvgPosition  float64 `json:"avg_position"`
	TotalStreams int64   `json:"total_streams"`
}

// OriginShare is one artist origin's slice of the chart.
type OriginShare struct {
	Country      string  `json:"country"`
	City         string  `json:"city,omitempty"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
	AvgPosition  float64 `json:"avg_position"`
	TotalStreams int64   `json:"total_streams"`
}

// GenreOriginAnalysis breaks the chart down by genre and artist origin.
type GenreOriginAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	GenreDistribution  []GenreShare  `json:"genre_distribution"`
	OriginDistribution []OriginShare `json:"origin_distribution"`
}

// MarketShare is one label's or distributor's slice of the chart.
type MarketShare struct {
	Name             string  `json:"name"`
	TrackCount       int     `json:"track_count"`
	TrackPercentage  float64 `json:"track_percentage"`
	StreamCount      int64   `json:"stream_count"`
	StreamPercentage float64 `json:"stream_percentage"`
}

// MajorsVsIndies contrasts major-label and independent repertoire.
type MajorsVsIndies struct {
	MajorTrackCount       int     `json:"major_track_count"`
	MajorTrackPercentage  float64 `json:"major_track_percentage"`
	MajorStreamCount      int64   `json:"major_stream_count"`
	MajorStreamPercentage float64 `json:"major_stream_percentage"`
	MajorAvgPosition      float64 `json:"major_avg_position"`
	IndieTrackCount       int     `json:"indie_track_count"`
	IndieTrackPercentage  float64 `json:"indie_track_percentage"`
	IndieStreamCount      int64   `json:"indie_stream_count"`
	IndieStreamPercentage float64 `json:"indie_stream_percentage"`
	IndieAvgPosition      float64 `json:"indie_avg_position"`
}

// LabelDistributorAnalysis covers label and distributor market share.
type LabelDistributorAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	LabelMarketShare       []MarketShare  `json:"label_market_share"`
	DistributorMarketShare []MarketShare  `json:"distributor_market_share"`
	MajorsVsIndies         MajorsVsIndies `json:"majors_vs_indies"`
}

// RisingArtist aggregates one artist's chart footprint and social signal.
type RisingArtist struct {
	Artist         string  `json:"artist"`
	TrackCount     int     `json:"track_count"`
	AvgPosition    float64 `json:"avg_position"`
	TotalStreams   int64   `json:"total_streams"`
	BestPosition   int     `json:"best_position"`
	AvgMomentum    float64 `json:"avg_momentum"`
	EngagementRate float64 `json:"engagement_rate,omitempty"`
}

// RisingArtistsAnalysis ranks artists by chart trajectory.
type RisingArtistsAnalysis struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	RisingArtists []RisingArtist `json:"rising_artists"`
}

// TrackHighlight identifies the standout track of the cycle.
type TrackHighlight struct {
	TrackID      string  `json:"track_id"`
	TrackName    string  `json:"track_name"`
	Artists      string  `json:"artists"`
	Position     int     `json:"position"`
	DeltaStreams float64 `json:"delta_streams_pct"`
}

// LabelHighlight identifies the standout label of the cycle.
type LabelHighlight struct {
	Label          string  `json:"label"`
	StreamSharePct float64 `json:"stream_share_pct"`
	TrackCount     int     `json:"track_count"`
}

// ArtistHighlight identifies the standout artist of the cycle.
type ArtistHighlight struct {
	Artist      string  `json:"artist"`
	TrackCount  int     `json:"track_count"`
	AvgPosition float64 `json:"avg_position"`
}

// ExecutiveKPIs condenses a cycle into headline numbers.
type ExecutiveKPIs struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	Debuts       int     `json:"debuts"`
	Reentries    int     `json:"reentries"`
	TurnoverRate float64 `json:"turnover_rate"`

	Top10Share  float64 `json:"top10_share"`
	Top50Share  float64 `json:"top50_share"`
	Top200Share float64 `json:"top200_share"`

	TrackOfTheWeek  TrackHighlight  `json:"track_of_the_week"`
	LabelOfTheWeek  LabelHighlight  `json:"label_of_the_week"`
	ArtistOfTheWeek ArtistHighlight `json:"artist_of_the_week"`
}

// TierTotals holds stream totals for the three chart tiers.
type TierTotals struct {
	Top10  int64 `json:"top10"`
	Top50  int64 `json:"top50"`
	Top200 int64 `json:"top200"`
}

// TierGrowthPct holds per-tier percentage growth.
type TierGrowthPct struct {
	Top10  float64 `json:"top10"`
	Top50  float64 `json:"top50"`
	Top200 float64 `json:"top200"`
}

// StreamsAggregates compares current tier totals against the previous cycle.
type StreamsAggregates struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	Current  TierTotals `json:"current"`
	Previous TierTotals `json:"previous"`

	GrowthPct TierGrowthPct `json:"growth_pct"`
}

// DataQualityFlags records completeness and freshness of one snapshot.
type DataQualityFlags struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	ExpectedTracks  int     `json:"expected_tracks"`
	ActualTracks    int     `json:"actual_tracks"`
	CompletenessPct float64 `json:"completeness_pct"`

	LastUpdate     time.Time `json:"last_update"`
	IsStale        bool      `json:"is_stale"`
	StalenessHours float64   `json:"staleness_hours"`

	MissingTrackIDs int  `json:"missing_track_ids"`
	IncompleteData  bool `json:"incomplete_data"`
}

// AnalysisBundle collects every analysis view produced for one
// territory/period cycle.
type AnalysisBundle struct {
	Territory Territory `json:"territory"`
	Period    Period    `json:"period"`
	Date      time.Time `json:"date"`

	Movers            *MoversAnalysis           `json:"movers,omitempty"`
	Entries           *EntriesAnalysis          `json:"entries,omitempty"`
	Peaks             *PeaksAnalysis            `json:"peaks,omitempty"`
	Streams           *StreamsAnalysis          `json:"streams,omitempty"`
	StreamsAggregates *StreamsAggregates        `json:"streams_aggregates,omitempty"`
	Collaborations    *CollaborationsAnalysis   `json:"collaborations,omitempty"`
	Momentum          *MomentumAnalysis         `json:"momentum,omitempty"`
	GenreOrigin       *GenreOriginAnalysis      `json:"genre_origin,omitempty"`
	LabelDistributor  *LabelDistributorAnalysis `json:"label_distributor,omitempty"`
	RisingArtists     *RisingArtistsAnalysis    `json:"rising_artists,omitempty"`
	Executive         *ExecutiveKPIs            `json:"executive,omitempty"`
	DataQuality       *DataQualityFlags         `json:"data_quality,omitempty"`
}

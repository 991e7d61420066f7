// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package models

// AnalysisConfig parameterizes the analysis and alert rule engines. All
// values have working defaults; override them through the configuration
// layer.
type AnalysisConfig struct {
	// TopNDefault bounds every "top N" list in the analysis views.
	TopNDefault int `json:"top_n_default" koanf:"top_n_default"`

	// CatalogSize is the expected number of entries per snapshot.
	CatalogSize int `json:"catalog_size" koanf:"catalog_size"`

	Thresholds AlertThresholds `json:"alert_thresholds" koanf:"alert_thresholds"`

	Momentum MomentumWeights `json:"momentum_weights" koanf:"momentum_weights"`

	// MajorLabels is matched case-insensitively against track labels to
	// split the market into majors and indies.
	MajorLabels []string `json:"major_labels" koanf:"major_labels"`

	// MinRunWeeks filters the "longest run" lists per chart tier.
	MinRunWeeksTop10  int `json:"min_run_weeks_top10" koanf:"min_run_weeks_top10"`
	MinRunWeeksTop50  int `json:"min_run_weeks_top50" koanf:"min_run_weeks_top50"`
	MinRunWeeksTop200 int `json:"min_run_weeks_top200" koanf:"min_run_weeks_top200"`

	// Breakout watchlist gate: outside BreakoutMinPosition with momentum
	// score at or above BreakoutMinScore and streams growth at or above
	// BreakoutMinStreamsPct.
	BreakoutMinPosition   int     `json:"breakout_min_position" koanf:"breakout_min_position"`
	BreakoutMinScore      float64 `json:"breakout_min_score" koanf:"breakout_min_score"`
	BreakoutMinStreamsPct float64 `json:"breakout_min_streams_pct" koanf:"breakout_min_streams_pct"`
}

// AlertThresholds holds the numeric triggers for the default alert rules.
type AlertThresholds struct {
	// JumpPositions is the minimum position improvement for a jump alert.
	JumpPositions float64 `json:"jump_positions" koanf:"jump_positions"`

	// DropPositions is the minimum position loss (from the Top 50) for a
	// drop alert.
	DropPositions float64 `json:"drop_positions" koanf:"drop_positions"`

	// DebutTopPosition is the worst chart position a debut may hold and
	// still alert.
	DebutTopPosition float64 `json:"debut_top_position" koanf:"debut_top_position"`

	// RiskDropStreak is the consecutive-decline streak for the streak risk
	// rule.
	RiskDropStreak float64 `json:"risk_drop_streak" koanf:"risk_drop_streak"`

	// RiskDropPosition is the position at or beyond which declining streams
	// trigger the positional risk rule.
	RiskDropPosition float64 `json:"risk_drop_position" koanf:"risk_drop_position"`

	// RiskDropStreamsPct is the (negative) streams change that counts as
	// declining for the positional risk rule.
	RiskDropStreamsPct float64 `json:"risk_drop_streams_pct" koanf:"risk_drop_streams_pct"`

	// DataCompletenessPct is the minimum snapshot completeness percentage.
	DataCompletenessPct float64 `json:"data_completeness_pct" koanf:"data_completeness_pct"`

	// MissingIDRatio is the maximum tolerated fraction of tracks without an
	// identifier.
	MissingIDRatio float64 `json:"missing_id_ratio" koanf:"missing_id_ratio"`
}

// MomentumWeights are the components of the composite momentum score. They
// should sum to 1.
type MomentumWeights struct {
	Position       float64 `json:"position" koanf:"position"`
	Streams        float64 `json:"streams" koanf:"streams"`
	Social         float64 `json:"social" koanf:"social"`
	CrossTerritory float64 `json:"cross_territory" koanf:"cross_territory"`
}

// DefaultAnalysisConfig returns the stock configuration used when nothing is
// overridden.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		TopNDefault: 10,
		CatalogSize: 200,
		Thresholds: AlertThresholds{
			JumpPositions:       10,
			DropPositions:       20,
			DebutTopPosition:    50,
			RiskDropStreak:      3,
			RiskDropPosition:    180,
			RiskDropStreamsPct:  -15,
			DataCompletenessPct: 90,
			MissingIDRatio:      0.1,
		},
		Momentum: MomentumWeights{
			Position:       0.4,
			Streams:        0.3,
			Social:         0.2,
			CrossTerritory: 0.1,
		},
		MajorLabels: []string{
			"Universal Music Group",
			"Sony Music Entertainment",
			"Warner Music Group",
			"UMG",
			"Sony",
			"Warner",
		},
		MinRunWeeksTop10:      10,
		MinRunWeeksTop50:      20,
		MinRunWeeksTop200:     50,
		BreakoutMinPosition:   50,
		BreakoutMinScore:      80,
		BreakoutMinStreamsPct: 25,
	}
}

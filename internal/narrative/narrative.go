// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package narrative generates the executive narrative for an analysis
// bundle by calling an external text-generation service. The response must
// match a fixed JSON schema; anything that fails strict validation is a
// recoverable MalformedResponse failure, never propagated unvalidated.
package narrative

import (
	"context"
	"errors"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

var (
	// ErrNotConfigured means no narrative service endpoint or key is set.
	// Callers short-circuit to analytics-only mode and must not retry per
	// request.
	ErrNotConfigured = errors.New("narrative: service not configured")

	// ErrMalformedResponse means the service answered but the payload
	// failed schema validation.
	ErrMalformedResponse = errors.New("narrative: malformed response")
)

// Insights is the validated narrative payload for one bundle.
type Insights struct {
	ExecutiveSummary string           `json:"executive_summary" validate:"required"`
	KeyFindings      []Finding        `json:"key_findings" validate:"dive"`
	MarketAnalysis   MarketAnalysis   `json:"market_analysis"`
	Recommendations  []Recommendation `json:"recommendations" validate:"dive"`
	Alerts           []NarrativeAlert `json:"alerts" validate:"dive"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Finding is one concrete insight backed by chart data.
type Finding struct {
	Type        string  `json:"type" validate:"required,oneof=market genre artist label trend alert"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=100"`
	Impact      string  `json:"impact" validate:"required,oneof=low medium high"`
	Actionable  bool    `json:"actionable"`
}

// MarketAnalysis is the narrative market breakdown.
type MarketAnalysis struct {
	GenreTrends            string `json:"genre_trends"`
	LabelDynamics          string `json:"label_dynamics"`
	ArtistMovements        string `json:"artist_movements"`
	CrossTerritoryInsights string `json:"cross_territory_insights"`
}

// Recommendation is one strategic call to action.
type Recommendation struct {
	Type        string `json:"type" validate:"required,oneof=opportunity risk strategy"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority" validate:"required,oneof=low medium high"`
}

// NarrativeAlert is a movement the narrative service flags for attention.
// Distinct from the rule engine's alerts: advisory prose, no registry id.
type NarrativeAlert struct {
	Type     string `json:"type" validate:"required,oneof=jump drop debut risk"`
	Track    string `json:"track" validate:"required"`
	Artist   string `json:"artist"`
	Message  string `json:"message" validate:"required"`
	Severity string `json:"severity" validate:"required,oneof=low medium high"`
}

// Generator produces the narrative for one analysis bundle.
type Generator interface {
	Generate(ctx context.Context, bundle *models.AnalysisBundle) (*Insights, error)
}

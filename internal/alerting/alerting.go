// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package alerting evaluates the configurable alert rules over one chart
// snapshot and owns the rule registry and the acknowledgement transform.
// Alert ids are content hashes of rule, subject and reporting bucket, so
// re-running a cycle regenerates byte-identical alerts instead of
// duplicates.
package alerting

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// RuleType dispatches rule evaluation.
type RuleType string

const (
	RuleJump        RuleType = "jump"
	RuleDrop        RuleType = "drop"
	RuleDebut       RuleType = "debut"
	RuleRisk        RuleType = "risk"
	RuleDataQuality RuleType = "data_quality"
)

// Severity grades an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertRule is one entry in the mutable rule registry.
type AlertRule struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        RuleType `json:"type"`
	Severity    Severity `json:"severity"`
	Threshold   float64  `json:"threshold"`
	Description string   `json:"description"`
	Enabled     bool     `json:"enabled"`
}

// RuleUpdate is a partial rule change merged by UpdateRule. Nil fields are
// left untouched.
type RuleUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Threshold   *float64  `json:"threshold,omitempty"`
	Description *string   `json:"description,omitempty"`
	Enabled     *bool     `json:"enabled,omitempty"`
}

// Alert is one rule firing for one track (or one snapshot-level check).
// Immutable except for acknowledgement.
type Alert struct {
	ID        string           `json:"id"`
	RuleID    string           `json:"rule_id"`
	Territory models.Territory `json:"territory"`
	Period    models.Period    `json:"period"`
	Date      time.Time        `json:"date"`
	Severity  Severity         `json:"severity"`
	Type      RuleType         `json:"type"`

	TrackID          string   `json:"track_id,omitempty"`
	TrackName        string   `json:"track_name,omitempty"`
	Artists          string   `json:"artists,omitempty"`
	Position         *int     `json:"position,omitempty"`
	PreviousPosition *int     `json:"previous_position,omitempty"`
	DeltaPosition    *int     `json:"delta_position,omitempty"`
	Streams          *int64   `json:"streams,omitempty"`
	DeltaStreamsPct  *float64 `json:"delta_streams_pct,omitempty"`

	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`

	CreatedAt      time.Time  `json:"created_at"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// alertID derives the stable alert id: a content hash of the rule, the
// subject (track id or check name) and the reporting bucket. Never
// clock-derived, so regeneration for the same cycle is idempotent.
func alertID(ruleID, subject string, period models.Period, date time.Time) string {
	sum := sha256.Sum256([]byte(ruleID + "|" + subject + "|" + dateBucket(period, date)))
	return hex.EncodeToString(sum[:])[:16]
}

// dateBucket collapses a cycle date onto its reporting bucket: calendar day
// for daily charts, ISO week for weekly.
func dateBucket(period models.Period, date time.Time) string {
	if period == models.PeriodWeekly {
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
	return date.Format("2006-01-02")
}

// DefaultRules returns the stock rule registry for a configuration.
func DefaultRules(cfg models.AnalysisConfig) []AlertRule {
	t := cfg.Thresholds
	return []AlertRule{
		{
			ID:          "jump_positions",
			Name:        "Big Position Jump",
			Type:        RuleJump,
			Severity:    SeverityMedium,
			Threshold:   t.JumpPositions,
			Description: fmt.Sprintf("Track improved by %.0f+ positions", t.JumpPositions),
			Enabled:     true,
		},
		{
			ID:          "drop_positions",
			Name:        "Big Position Drop",
			Type:        RuleDrop,
			Severity:    SeverityHigh,
			Threshold:   t.DropPositions,
			Description: fmt.Sprintf("Track dropped by %.0f+ positions from Top 50", t.DropPositions),
			Enabled:     true,
		},
		{
			ID:          "debut_top50",
			Name:        "Top 50 Debut",
			Type:        RuleDebut,
			Severity:    SeverityHigh,
			Threshold:   t.DebutTopPosition,
			Description: fmt.Sprintf("New track debuted in Top %.0f", t.DebutTopPosition),
			Enabled:     true,
		},
		{
			ID:          "risk_drop_streak",
			Name:        "Risk of Drop - Streak",
			Type:        RuleRisk,
			Severity:    SeverityMedium,
			Threshold:   t.RiskDropStreak,
			Description: "Track showing a sustained decline pattern",
			Enabled:     true,
		},
		{
			ID:          "risk_drop_position",
			Name:        "Risk of Drop - Position",
			Type:        RuleRisk,
			Severity:    SeverityLow,
			Threshold:   t.RiskDropPosition,
			Description: fmt.Sprintf("Track in position %.0f+ with declining streams", t.RiskDropPosition),
			Enabled:     true,
		},
		{
			ID:          "data_quality",
			Name:        "Data Quality Issue",
			Type:        RuleDataQuality,
			Severity:    SeverityHigh,
			Threshold:   0,
			Description: "Chart data not updated or incomplete",
			Enabled:     true,
		},
	}
}

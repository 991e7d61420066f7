// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package alerting

import (
	"fmt"
	"math"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// DeltaPos is previous minus current position throughout: positive means
// the track climbed, negative means it slid.

func (e *Engine) evaluateJump(rule AlertRule, tracks []models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) []Alert {
	threshold := math.Abs(rule.Threshold)

	var alerts []Alert
	for i := range tracks {
		t := &tracks[i]
		if t.DeltaPos == nil || float64(*t.DeltaPos) < threshold {
			continue
		}
		a := e.trackAlert(rule, t, territory, period, date)
		a.Message = fmt.Sprintf("%s by %s jumped %d positions to #%d", t.TrackName, t.Artists, *t.DeltaPos, t.Position)
		a.Value = float64(*t.DeltaPos)
		a.Threshold = threshold
		alerts = append(alerts, a)
	}
	return alerts
}

// evaluateDrop only fires for tracks falling out of the protected Top 50
// tier; churn deep in the chart is expected and not alertable.
func (e *Engine) evaluateDrop(rule AlertRule, tracks []models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) []Alert {
	threshold := math.Abs(rule.Threshold)

	var alerts []Alert
	for i := range tracks {
		t := &tracks[i]
		if t.DeltaPos == nil || t.PreviousPosition == nil {
			continue
		}
		lost := float64(-*t.DeltaPos)
		if lost < threshold || *t.PreviousPosition > 50 {
			continue
		}
		a := e.trackAlert(rule, t, territory, period, date)
		a.Message = fmt.Sprintf("%s by %s dropped %.0f positions from #%d to #%d",
			t.TrackName, t.Artists, lost, *t.PreviousPosition, t.Position)
		a.Value = lost
		a.Threshold = threshold
		alerts = append(alerts, a)
	}
	return alerts
}

func (e *Engine) evaluateDebut(rule AlertRule, tracks []models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) []Alert {
	var alerts []Alert
	for i := range tracks {
		t := &tracks[i]
		if !t.IsDebut || float64(t.Position) > rule.Threshold {
			continue
		}
		a := e.trackAlert(rule, t, territory, period, date)
		a.Message = fmt.Sprintf("NEW DEBUT: %s by %s entered at #%d", t.TrackName, t.Artists, t.Position)
		a.Value = float64(t.Position)
		a.Threshold = rule.Threshold
		alerts = append(alerts, a)
	}
	return alerts
}

func (e *Engine) evaluateRisk(rule AlertRule, tracks []models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) []Alert {
	switch rule.ID {
	case "risk_drop_streak":
		return e.evaluateRiskStreak(rule, tracks, territory, period, date)
	case "risk_drop_position":
		return e.evaluateRiskPosition(rule, tracks, territory, period, date)
	default:
		// Custom risk rules use the positional evaluator with their own
		// threshold.
		return e.evaluateRiskPosition(rule, tracks, territory, period, date)
	}
}

// evaluateRiskStreak is a positional proxy for a real decline streak:
// a track sliding below #100 this cycle. Per-track streak counters from
// the history ledger would tighten this, but the proxy keeps the rule
// meaningful for snapshots recorded before the ledger existed.
func (e *Engine) evaluateRiskStreak(rule AlertRule, tracks []models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) []Alert {
	var alerts []Alert
	for i := range tracks {
		t := &tracks[i]
		if t.DeltaPos == nil || *t.DeltaPos >= 0 || t.Position <= 100 {
			continue
		}
		a := e.trackAlert(rule, t, territory, period, date)
		a.Message = fmt.Sprintf("RISK: %s by %s showing decline pattern at #%d", t.TrackName, t.Artists, t.Position)
		a.Value = float64(-*t.DeltaPos)
		a.Threshold = rule.Threshold
		alerts = append(alerts, a)
	}
	return alerts
}

func (e *Engine) evaluateRiskPosition(rule AlertRule, tracks []models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) []Alert {
	declineFloor := e.cfg.Thresholds.RiskDropStreamsPct

	var alerts []Alert
	for i := range tracks {
		t := &tracks[i]
		if float64(t.Position) < rule.Threshold || t.DeltaStreamsPct == nil || *t.DeltaStreamsPct > declineFloor {
			continue
		}
		a := e.trackAlert(rule, t, territory, period, date)
		a.Message = fmt.Sprintf("RISK: %s by %s at #%d with %.1f%% streams decline",
			t.TrackName, t.Artists, t.Position, *t.DeltaStreamsPct)
		a.Value = *t.DeltaStreamsPct
		a.Threshold = declineFloor
		alerts = append(alerts, a)
	}
	return alerts
}

// evaluateDataQuality runs three independent snapshot-level checks:
// completeness (strictly below the configured percentage; the boundary is
// acceptable), missing-identifier ratio, and staleness per cadence.
func (e *Engine) evaluateDataQuality(rule AlertRule, tracks []models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) []Alert {
	var alerts []Alert

	expected := e.cfg.CatalogSize
	actual := len(tracks)
	completeness := 0.0
	if expected > 0 {
		completeness = float64(actual) / float64(expected) * 100
	}
	minPct := e.cfg.Thresholds.DataCompletenessPct

	if completeness < minPct {
		a := e.snapshotAlert(rule, "completeness", territory, period, date)
		a.Message = fmt.Sprintf("DATA QUALITY: Incomplete data for %s %s - %d/%d tracks (%.1f%%)",
			territory, period, actual, expected, completeness)
		a.Value = completeness
		a.Threshold = minPct
		alerts = append(alerts, a)
	}

	var missingIDs int
	for i := range tracks {
		if tracks[i].TrackID == "" {
			missingIDs++
		}
	}
	maxMissing := float64(actual) * e.cfg.Thresholds.MissingIDRatio
	if float64(missingIDs) > maxMissing {
		a := e.snapshotAlert(rule, "missing_ids", territory, period, date)
		a.Message = fmt.Sprintf("DATA QUALITY: %d tracks missing identifiers in %s %s", missingIDs, territory, period)
		a.Value = float64(missingIDs)
		a.Threshold = maxMissing
		alerts = append(alerts, a)
	}

	if age := e.now().Sub(date); age > period.StaleAfter() {
		a := e.snapshotAlert(rule, "stale", territory, period, date)
		a.Message = fmt.Sprintf("DATA QUALITY: Stale data for %s %s - %.0f hours old", territory, period, age.Hours())
		a.Value = age.Hours()
		a.Threshold = period.StaleAfter().Hours()
		alerts = append(alerts, a)
	}

	return alerts
}

func (e *Engine) trackAlert(rule AlertRule, t *models.TrackAnalysis, territory models.Territory, period models.Period, date time.Time) Alert {
	return Alert{
		ID:               alertID(rule.ID, t.TrackID, period, date),
		RuleID:           rule.ID,
		Territory:        territory,
		Period:           period,
		Date:             date,
		Severity:         rule.Severity,
		Type:             rule.Type,
		TrackID:          t.TrackID,
		TrackName:        t.TrackName,
		Artists:          t.Artists,
		Position:         models.IntPtr(t.Position),
		PreviousPosition: t.PreviousPosition,
		DeltaPosition:    t.DeltaPos,
		Streams:          t.Streams,
		DeltaStreamsPct:  t.DeltaStreamsPct,
		CreatedAt:        e.now(),
	}
}

func (e *Engine) snapshotAlert(rule AlertRule, check string, territory models.Territory, period models.Period, date time.Time) Alert {
	subject := fmt.Sprintf("%s:%s:%s", check, territory, period)
	return Alert{
		ID:        alertID(rule.ID, subject, period, date),
		RuleID:    rule.ID,
		Territory: territory,
		Period:    period,
		Date:      date,
		Severity:  rule.Severity,
		Type:      rule.Type,
		CreatedAt: e.now(),
	}
}

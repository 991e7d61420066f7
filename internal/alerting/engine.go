// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package alerting

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/models"
)

// ErrRuleNotFound marks registry operations against an unknown rule id.
var ErrRuleNotFound = errors.New("alerting: rule not found")

// Engine owns the rule registry and generates alerts for snapshots. The
// clock is injectable so staleness checks and created_at stamps are
// reproducible in tests; everything else is a pure function of the inputs
// and the registry.
type Engine struct {
	cfg models.AnalysisConfig
	now func() time.Time

	mu    sync.RWMutex
	rules []AlertRule
}

// NewEngine creates an alert engine seeded with the default rules. A nil
// clock uses time.Now.
func NewEngine(cfg models.AnalysisConfig, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:   cfg,
		now:   now,
		rules: DefaultRules(cfg),
	}
}

// Rules returns a copy of the registry.
func (e *Engine) Rules() []AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]AlertRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Rule returns one rule by id.
func (e *Engine) Rule(id string) (AlertRule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return AlertRule{}, ErrRuleNotFound
}

// AddRule appends a rule, assigning a fresh id.
func (e *Engine) AddRule(rule AlertRule) AlertRule {
	rule.ID = uuid.NewString()

	e.mu.Lock()
	e.rules = append(e.rules, rule)
	e.mu.Unlock()

	logging.Info().Str("rule_id", rule.ID).Str("type", string(rule.Type)).Msg("alert rule added")
	return rule
}

// UpdateRule merges a partial update into the rule with the given id.
func (e *Engine) UpdateRule(id string, update RuleUpdate) (AlertRule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.rules {
		if e.rules[i].ID != id {
			continue
		}
		if update.Name != nil {
			e.rules[i].Name = *update.Name
		}
		if update.Severity != nil {
			e.rules[i].Severity = *update.Severity
		}
		if update.Threshold != nil {
			e.rules[i].Threshold = *update.Threshold
		}
		if update.Description != nil {
			e.rules[i].Description = *update.Description
		}
		if update.Enabled != nil {
			e.rules[i].Enabled = *update.Enabled
		}
		return e.rules[i], nil
	}
	return AlertRule{}, ErrRuleNotFound
}

// RemoveRule deletes a rule by id.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

// GenerateAlerts evaluates every enabled rule against one snapshot.
// Identical inputs with an identical registry and clock yield an identical
// alert set.
func (e *Engine) GenerateAlerts(
	tracks []models.TrackAnalysis,
	territory models.Territory,
	period models.Period,
	date time.Time,
) []Alert {
	var alerts []Alert
	for _, rule := range e.Rules() {
		if !rule.Enabled {
			continue
		}
		switch rule.Type {
		case RuleJump:
			alerts = append(alerts, e.evaluateJump(rule, tracks, territory, period, date)...)
		case RuleDrop:
			alerts = append(alerts, e.evaluateDrop(rule, tracks, territory, period, date)...)
		case RuleDebut:
			alerts = append(alerts, e.evaluateDebut(rule, tracks, territory, period, date)...)
		case RuleRisk:
			alerts = append(alerts, e.evaluateRisk(rule, tracks, territory, period, date)...)
		case RuleDataQuality:
			alerts = append(alerts, e.evaluateDataQuality(rule, tracks, territory, period, date)...)
		}
	}

	logging.Debug().
		Str("territory", string(territory)).
		Str("period", string(period)).
		Int("alerts", len(alerts)).
		Msg("alert rules evaluated")

	return alerts
}

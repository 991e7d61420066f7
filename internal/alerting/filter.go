// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package alerting

import (
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// AlertFilter composes optional AND-combined predicates. Nil fields match
// everything.
type AlertFilter struct {
	Severity     *Severity         `json:"severity,omitempty"`
	Type         *RuleType         `json:"type,omitempty"`
	Territory    *models.Territory `json:"territory,omitempty"`
	Period       *models.Period    `json:"period,omitempty"`
	Acknowledged *bool             `json:"acknowledged,omitempty"`
	DateFrom     *time.Time        `json:"date_from,omitempty"`
	DateTo       *time.Time        `json:"date_to,omitempty"`
}

// FilterAlerts returns the alerts matching every set predicate.
func FilterAlerts(alerts []Alert, f AlertFilter) []Alert {
	var out []Alert
	for _, a := range alerts {
		if f.Severity != nil && a.Severity != *f.Severity {
			continue
		}
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.Territory != nil && a.Territory != *f.Territory {
			continue
		}
		if f.Period != nil && a.Period != *f.Period {
			continue
		}
		if f.Acknowledged != nil && a.Acknowledged != *f.Acknowledged {
			continue
		}
		if f.DateFrom != nil && a.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && a.Date.After(*f.DateTo) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// AcknowledgeAlerts returns a new slice where alerts whose id is in ids
// gain acknowledged=true with the given timestamp. Every other alert is
// structurally unchanged; the input slice is never mutated.
func AcknowledgeAlerts(ids []string, alerts []Alert, at time.Time) []Alert {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	out := make([]Alert, len(alerts))
	copy(out, alerts)
	for i := range out {
		if idSet[out[i].ID] && !out[i].Acknowledged {
			out[i].Acknowledged = true
			ts := at
			out[i].AcknowledgedAt = &ts
		}
	}
	return out
}

// Statistics aggregates alert counts along the reporting dimensions.
type Statistics struct {
	Total          int                      `json:"total"`
	BySeverity     map[Severity]int         `json:"by_severity"`
	ByType         map[RuleType]int         `json:"by_type"`
	ByTerritory    map[models.Territory]int `json:"by_territory"`
	Acknowledged   int                      `json:"acknowledged"`
	Unacknowledged int                      `json:"unacknowledged"`
}

// AlertStatistics computes aggregate counts over a set of alerts.
func AlertStatistics(alerts []Alert) Statistics {
	stats := Statistics{
		Total:       len(alerts),
		BySeverity:  make(map[Severity]int),
		ByType:      make(map[RuleType]int),
		ByTerritory: make(map[models.Territory]int),
	}
	for i := range alerts {
		stats.BySeverity[alerts[i].Severity]++
		stats.ByType[alerts[i].Type]++
		stats.ByTerritory[alerts[i].Territory]++
		if alerts[i].Acknowledged {
			stats.Acknowledged++
		} else {
			stats.Unacknowledged++
		}
	}
	return stats
}

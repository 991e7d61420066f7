// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package insights

import (
	"context"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

// Publication schedule in the configured location: daily charts land at
// 10:00, weekly charts Monday 07:00.
const (
	dailyUpdateHour  = 10
	weeklyUpdateHour = 7
)

// NextUpdateTime returns the next scheduled update instant for the
// cadence, always strictly in the future.
func (o *Orchestrator) NextUpdateTime(period models.Period) time.Time {
	return nextUpdateAfter(period, o.now(), o.cfg.Location)
}

func nextUpdateAfter(period models.Period, now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)

	if period == models.PeriodWeekly {
		daysAhead := (int(time.Monday) - int(local.Weekday()) + 7) % 7
		candidate := time.Date(local.Year(), local.Month(), local.Day()+daysAhead,
			weeklyUpdateHour, 0, 0, 0, loc)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, 7)
		}
		return candidate
	}

	candidate := time.Date(local.Year(), local.Month(), local.Day(),
		dailyUpdateHour, 0, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// lastUpdateBoundary is the most recent scheduled update instant at or
// before now: one cadence earlier than the next one.
func lastUpdateBoundary(period models.Period, now time.Time, loc *time.Location) time.Time {
	next := nextUpdateAfter(period, now, loc)
	if period == models.PeriodWeekly {
		return next.AddDate(0, 0, -7)
	}
	return next.AddDate(0, 0, -1)
}

// ShouldUpdate reports whether the key needs regeneration: no stored
// bundle, a stale one, or one generated before the most recent scheduled
// update instant.
func (o *Orchestrator) ShouldUpdate(ctx context.Context, territory models.Territory, period models.Period) bool {
	b, err := o.store.Get(ctx, territory, period)
	if err != nil {
		return true
	}
	if b.Stale {
		return true
	}
	return b.GeneratedAt.Before(lastUpdateBoundary(period, o.now(), o.cfg.Location))
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package insights

import (
	"context"
	"testing"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

func TestNextUpdateAfterDaily(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"before todays publication",
			time.Date(2026, 8, 31, 9, 0, 0, 0, testZone),
			time.Date(2026, 8, 31, 10, 0, 0, 0, testZone),
		},
		{
			"after todays publication",
			time.Date(2026, 8, 31, 11, 0, 0, 0, testZone),
			time.Date(2026, 9, 1, 10, 0, 0, 0, testZone),
		},
		{
			"exactly at publication",
			time.Date(2026, 8, 31, 10, 0, 0, 0, testZone),
			time.Date(2026, 9, 1, 10, 0, 0, 0, testZone),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextUpdateAfter(models.PeriodDaily, tc.now, testZone)
			if !got.Equal(tc.want) {
				t.Errorf("next = %v, want %v", got, tc.want)
			}
			if !got.After(tc.now) {
				t.Error("next update not strictly in the future")
			}
			if got.Sub(tc.now) > 24*time.Hour {
				t.Errorf("next update %v more than a day out", got.Sub(tc.now))
			}
		})
	}
}

func TestNextUpdateAfterWeekly(t *testing.T) {
	// 2026-08-31 is a Monday.
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"monday before publication",
			time.Date(2026, 8, 31, 6, 0, 0, 0, testZone),
			time.Date(2026, 8, 31, 7, 0, 0, 0, testZone),
		},
		{
			"monday after publication",
			time.Date(2026, 8, 31, 8, 0, 0, 0, testZone),
			time.Date(2026, 9, 7, 7, 0, 0, 0, testZone),
		},
		{
			"midweek",
			time.Date(2026, 9, 2, 12, 0, 0, 0, testZone),
			time.Date(2026, 9, 7, 7, 0, 0, 0, testZone),
		},
		{
			"sunday night",
			time.Date(2026, 9, 6, 23, 30, 0, 0, testZone),
			time.Date(2026, 9, 7, 7, 0, 0, 0, testZone),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextUpdateAfter(models.PeriodWeekly, tc.now, testZone)
			if !got.Equal(tc.want) {
				t.Errorf("next = %v, want %v", got, tc.want)
			}
			if got.Weekday() != time.Monday {
				t.Errorf("weekly update on %v, want Monday", got.Weekday())
			}
		})
	}
}

func TestLastUpdateBoundary(t *testing.T) {
	now := time.Date(2026, 9, 2, 12, 0, 0, 0, testZone) // Wednesday

	daily := lastUpdateBoundary(models.PeriodDaily, now, testZone)
	if want := time.Date(2026, 9, 2, 10, 0, 0, 0, testZone); !daily.Equal(want) {
		t.Errorf("daily boundary = %v, want %v", daily, want)
	}

	weekly := lastUpdateBoundary(models.PeriodWeekly, now, testZone)
	if want := time.Date(2026, 8, 31, 7, 0, 0, 0, testZone); !weekly.Equal(want) {
		t.Errorf("weekly boundary = %v, want %v", weekly, want)
	}
}

func TestShouldUpdate(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 8, 31, 9, 0, 0, 0, testZone)}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
	o := newTestOrchestrator(clock, provider, nil)
	ctx := context.Background()

	// No stored bundle yet.
	if !o.ShouldUpdate(ctx, models.TerritoryArgentina, models.PeriodDaily) {
		t.Error("missing bundle should need an update")
	}

	if _, _, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily); err != nil {
		t.Fatal(err)
	}

	// Generated 09:00, still before today's 10:00 boundary.
	if o.ShouldUpdate(ctx, models.TerritoryArgentina, models.PeriodDaily) {
		t.Error("fresh bundle flagged for update before the boundary")
	}

	// Past today's publication the 09:00 bundle predates the boundary.
	clock.Set(time.Date(2026, 8, 31, 10, 30, 0, 0, testZone))
	if !o.ShouldUpdate(ctx, models.TerritoryArgentina, models.PeriodDaily) {
		t.Error("pre-publication bundle survived the boundary check")
	}

	// Regenerate after the boundary and it holds until tomorrow.
	if _, err := o.ForceRefresh(ctx, models.TerritoryArgentina, models.PeriodDaily); err != nil {
		t.Fatal(err)
	}
	clock.Set(time.Date(2026, 8, 31, 23, 0, 0, 0, testZone))
	if o.ShouldUpdate(ctx, models.TerritoryArgentina, models.PeriodDaily) {
		t.Error("post-publication bundle flagged before the next boundary")
	}
}

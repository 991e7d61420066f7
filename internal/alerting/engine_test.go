// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package alerting

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

var (
	testDate  = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	testClock = func() time.Time { return testDate.Add(2 * time.Hour) }
)

func newTestEngine() *Engine {
	return NewEngine(models.DefaultAnalysisConfig(), testClock)
}

func makeTrack(id string, position int, previous *int) models.TrackAnalysis {
	t := models.TrackAnalysis{
		TrackID:   id,
		TrackName: "track " + id,
		Artists:   "artist " + id,
		Position:  position,
	}
	if previous != nil {
		t.PreviousPosition = previous
		t.DeltaPos = models.IntPtr(*previous - position)
	}
	return t
}

func fullChart(n int) []models.TrackAnalysis {
	tracks := make([]models.TrackAnalysis, n)
	for i := 0; i < n; i++ {
		pos := i + 1
		tracks[i] = makeTrack(fmt.Sprintf("t%03d", pos), pos, models.IntPtr(pos))
	}
	return tracks
}

func alertsOfType(alerts []Alert, t RuleType) []Alert {
	var out []Alert
	for _, a := range alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func TestJumpRuleFires(t *testing.T) {
	e := newTestEngine()
	// Position 20 to 5: climbed 15 places, threshold 10.
	tracks := append(fullChart(200), makeTrack("climber", 5, models.IntPtr(20)))

	alerts := alertsOfType(e.GenerateAlerts(tracks, models.TerritoryArgentina, models.PeriodWeekly, testDate), RuleJump)

	if len(alerts) != 1 {
		t.Fatalf("jump alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Value != 15 {
		t.Errorf("jump value = %v, want 15", alerts[0].Value)
	}
	if alerts[0].TrackID != "climber" {
		t.Errorf("jump track = %q", alerts[0].TrackID)
	}
}

func TestDropRuleProtectedTierOnly(t *testing.T) {
	e := newTestEngine()

	fromTop50 := makeTrack("protected", 60, models.IntPtr(30))  // lost 30 from #30
	fromDeep := makeTrack("deep", 190, models.IntPtr(160))      // lost 30 from #160
	smallSlide := makeTrack("small", 45, models.IntPtr(40))     // lost 5

	alerts := alertsOfType(e.GenerateAlerts(
		[]models.TrackAnalysis{fromTop50, fromDeep, smallSlide},
		models.TerritorySpain, models.PeriodWeekly, testDate), RuleDrop)

	if len(alerts) != 1 || alerts[0].TrackID != "protected" {
		t.Fatalf("drop alerts = %+v, want only the Top 50 faller", alerts)
	}
	if alerts[0].Value != 30 {
		t.Errorf("drop value = %v, want 30", alerts[0].Value)
	}
}

func TestDebutRule(t *testing.T) {
	e := newTestEngine()

	inside := makeTrack("b", 30, nil)
	inside.IsDebut = true
	outside := makeTrack("deep-debut", 120, nil)
	outside.IsDebut = true

	alerts := alertsOfType(e.GenerateAlerts(
		[]models.TrackAnalysis{inside, outside},
		models.TerritoryMexico, models.PeriodDaily, testDate), RuleDebut)

	if len(alerts) != 1 || alerts[0].TrackID != "b" {
		t.Fatalf("debut alerts = %+v, want only the Top 50 debut", alerts)
	}
}

func TestRiskRules(t *testing.T) {
	e := newTestEngine()

	sliding := makeTrack("slider", 150, models.IntPtr(130)) // declining below #100
	deepDecline := makeTrack("fading", 185, models.IntPtr(185))
	deepDecline.DeltaStreamsPct = models.Float64Ptr(-20)
	healthy := makeTrack("healthy", 185, models.IntPtr(186))
	healthy.DeltaStreamsPct = models.Float64Ptr(5)

	alerts := alertsOfType(e.GenerateAlerts(
		[]models.TrackAnalysis{sliding, deepDecline, healthy},
		models.TerritoryGlobal, models.PeriodWeekly, testDate), RuleRisk)

	byRule := make(map[string]int)
	for _, a := range alerts {
		byRule[a.RuleID]++
	}
	if byRule["risk_drop_streak"] != 1 {
		t.Errorf("streak risk alerts = %d, want 1", byRule["risk_drop_streak"])
	}
	if byRule["risk_drop_position"] != 1 {
		t.Errorf("positional risk alerts = %d, want 1", byRule["risk_drop_position"])
	}
}

func TestDataQualityCompletenessBoundary(t *testing.T) {
	e := newTestEngine()

	// 180/200 = 90.0%: boundary is inclusive, no alert.
	alerts := alertsOfType(e.GenerateAlerts(fullChart(180), models.TerritoryMexico, models.PeriodWeekly, testDate), RuleDataQuality)
	for _, a := range alerts {
		if a.Value == 90 {
			t.Errorf("completeness alert fired at exactly 90%%: %+v", a)
		}
	}

	// 179/200 = 89.5%: alert fires.
	alerts = alertsOfType(e.GenerateAlerts(fullChart(179), models.TerritoryMexico, models.PeriodWeekly, testDate), RuleDataQuality)
	found := false
	for _, a := range alerts {
		if a.Value < 90 && a.Threshold == 90 {
			found = true
		}
	}
	if !found {
		t.Error("completeness alert did not fire at 89.5%")
	}
}

func TestDataQualityStaleness(t *testing.T) {
	old := testDate.Add(-30 * time.Hour)
	e := NewEngine(models.DefaultAnalysisConfig(), func() time.Time { return testDate })

	alerts := alertsOfType(e.GenerateAlerts(fullChart(200), models.TerritoryArgentina, models.PeriodDaily, old), RuleDataQuality)
	if len(alerts) != 1 {
		t.Fatalf("staleness alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Value != 30 {
		t.Errorf("staleness hours = %v, want 30", alerts[0].Value)
	}
}

func TestGenerateAlertsPure(t *testing.T) {
	e := newTestEngine()
	tracks := fullChart(200)
	tracks[0] = makeTrack("climber", 5, models.IntPtr(20))

	first := e.GenerateAlerts(tracks, models.TerritoryArgentina, models.PeriodWeekly, testDate)
	second := e.GenerateAlerts(tracks, models.TerritoryArgentina, models.PeriodWeekly, testDate)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different alert sets")
	}
}

func TestAlertIDStableAcrossRuns(t *testing.T) {
	tracks := []models.TrackAnalysis{makeTrack("climber", 5, models.IntPtr(20))}

	// Different wall clocks, same reporting cycle.
	e1 := NewEngine(models.DefaultAnalysisConfig(), func() time.Time { return testDate.Add(time.Hour) })
	e2 := NewEngine(models.DefaultAnalysisConfig(), func() time.Time { return testDate.Add(5 * time.Hour) })

	a1 := alertsOfType(e1.GenerateAlerts(tracks, models.TerritorySpain, models.PeriodWeekly, testDate), RuleJump)
	a2 := alertsOfType(e2.GenerateAlerts(tracks, models.TerritorySpain, models.PeriodWeekly, testDate), RuleJump)

	if len(a1) != 1 || len(a2) != 1 {
		t.Fatalf("expected one jump alert per run")
	}
	if a1[0].ID != a2[0].ID {
		t.Errorf("alert id differs across re-runs: %q vs %q", a1[0].ID, a2[0].ID)
	}

	// A different weekly bucket produces a different id.
	nextWeek := alertsOfType(e1.GenerateAlerts(tracks, models.TerritorySpain, models.PeriodWeekly, testDate.AddDate(0, 0, 7)), RuleJump)
	if nextWeek[0].ID == a1[0].ID {
		t.Error("alert id identical across different reporting buckets")
	}
}

func TestRuleRegistryCRUD(t *testing.T) {
	e := newTestEngine()

	if len(e.Rules()) != 6 {
		t.Fatalf("default rules = %d, want 6", len(e.Rules()))
	}

	added := e.AddRule(AlertRule{
		Name:      "Deep Chart Jump",
		Type:      RuleJump,
		Severity:  SeverityLow,
		Threshold: 40,
		Enabled:   true,
	})
	if added.ID == "" {
		t.Fatal("added rule has no id")
	}

	enabled := false
	updated, err := e.UpdateRule(added.ID, RuleUpdate{Enabled: &enabled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Enabled {
		t.Error("update did not disable rule")
	}
	// Untouched fields survive a partial update.
	if updated.Threshold != 40 || updated.Name != "Deep Chart Jump" {
		t.Errorf("partial update clobbered fields: %+v", updated)
	}

	if err := e.RemoveRule(added.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := e.Rule(added.ID); err != ErrRuleNotFound {
		t.Errorf("rule still present after removal: %v", err)
	}
	if err := e.RemoveRule("nope"); err != ErrRuleNotFound {
		t.Errorf("removing unknown rule: %v, want ErrRuleNotFound", err)
	}
}

func TestDisabledRuleSkipped(t *testing.T) {
	e := newTestEngine()
	enabled := false
	if _, err := e.UpdateRule("jump_positions", RuleUpdate{Enabled: &enabled}); err != nil {
		t.Fatalf("disable: %v", err)
	}

	tracks := []models.TrackAnalysis{makeTrack("climber", 5, models.IntPtr(20))}
	alerts := alertsOfType(e.GenerateAlerts(tracks, models.TerritorySpain, models.PeriodWeekly, testDate), RuleJump)
	if len(alerts) != 0 {
		t.Errorf("disabled rule still fired %d alerts", len(alerts))
	}
}

func TestAcknowledgeAlertsNonDestructive(t *testing.T) {
	e := newTestEngine()
	tracks := []models.TrackAnalysis{
		makeTrack("one", 5, models.IntPtr(20)),
		makeTrack("two", 8, models.IntPtr(30)),
	}
	alerts := alertsOfType(e.GenerateAlerts(tracks, models.TerritorySpain, models.PeriodWeekly, testDate), RuleJump)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 jump alerts, got %d", len(alerts))
	}

	before := make([]Alert, len(alerts))
	copy(before, alerts)

	at := testDate.Add(3 * time.Hour)
	out := AcknowledgeAlerts([]string{alerts[0].ID}, alerts, at)

	if !out[0].Acknowledged || out[0].AcknowledgedAt == nil || !out[0].AcknowledgedAt.Equal(at) {
		t.Errorf("target alert not acknowledged: %+v", out[0])
	}
	if !reflect.DeepEqual(out[1], before[1]) {
		t.Error("untargeted alert changed")
	}
	// Input slice untouched.
	if alerts[0].Acknowledged {
		t.Error("input slice mutated")
	}
}

func TestFilterAlerts(t *testing.T) {
	high := SeverityHigh
	ack := false
	terr := models.TerritorySpain

	alerts := []Alert{
		{ID: "1", Severity: SeverityHigh, Territory: models.TerritorySpain, Date: testDate},
		{ID: "2", Severity: SeverityLow, Territory: models.TerritorySpain, Date: testDate},
		{ID: "3", Severity: SeverityHigh, Territory: models.TerritoryMexico, Date: testDate},
		{ID: "4", Severity: SeverityHigh, Territory: models.TerritorySpain, Date: testDate, Acknowledged: true},
	}

	got := FilterAlerts(alerts, AlertFilter{Severity: &high, Territory: &terr, Acknowledged: &ack})
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("filter result = %+v, want alert 1 only", got)
	}

	from := testDate.Add(time.Hour)
	if got := FilterAlerts(alerts, AlertFilter{DateFrom: &from}); len(got) != 0 {
		t.Errorf("date-from filter matched %d alerts, want 0", len(got))
	}
}

func TestAlertStatistics(t *testing.T) {
	alerts := []Alert{
		{Severity: SeverityHigh, Type: RuleJump, Territory: models.TerritorySpain},
		{Severity: SeverityHigh, Type: RuleDrop, Territory: models.TerritorySpain, Acknowledged: true},
		{Severity: SeverityLow, Type: RuleJump, Territory: models.TerritoryMexico},
	}

	s := AlertStatistics(alerts)
	if s.Total != 3 || s.Acknowledged != 1 || s.Unacknowledged != 2 {
		t.Errorf("totals = %+v", s)
	}
	if s.BySeverity[SeverityHigh] != 2 || s.ByType[RuleJump] != 2 || s.ByTerritory[models.TerritorySpain] != 2 {
		t.Errorf("breakdowns = %+v", s)
	}
}

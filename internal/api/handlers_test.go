// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/analysis"
	"github.com/tduarte/chartpulse/internal/audit"
	"github.com/tduarte/chartpulse/internal/history"
	"github.com/tduarte/chartpulse/internal/insights"
	"github.com/tduarte/chartpulse/internal/models"
	"github.com/tduarte/chartpulse/internal/snapshot"
	"github.com/tduarte/chartpulse/internal/storage"
)

var testDate = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type stubProvider struct {
	err  error
	snap *snapshot.Snapshot
}

func (p *stubProvider) Fetch(ctx context.Context, territory models.Territory, period models.Period) (*snapshot.Snapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := *p.snap
	out.Territory = territory
	out.Period = period
	return &out, nil
}

func testSnapshot(n int) *snapshot.Snapshot {
	entries := make([]snapshot.Entry, n)
	for i := range entries {
		entries[i] = snapshot.Entry{
			TrackID:   "track-" + string(rune('a'+i)),
			TrackName: "Song",
			Artists:   "Artist",
			Position:  i + 1,
			Streams:   models.Int64Ptr(int64(1000 * (n - i))),
		}
	}
	return &snapshot.Snapshot{
		Territory:   models.TerritoryArgentina,
		Period:      models.PeriodDaily,
		Date:        testDate,
		LastUpdated: testDate,
		Entries:     entries,
	}
}

type testStack struct {
	router http.Handler
	store  storage.Store
	rules  *alerting.Engine
}

func newTestStack(provider snapshot.Provider) *testStack {
	cfg := models.DefaultAnalysisConfig()
	store := storage.NewMemoryStore(25*time.Hour, nil)
	rules := alerting.NewEngine(cfg, nil)

	orch := insights.NewOrchestrator(
		insights.Config{
			Territories: []models.Territory{models.TerritoryArgentina},
			Periods:     []models.Period{models.PeriodDaily},
			Retention:   storage.DefaultRetention,
		},
		provider,
		snapshot.NewBuilder(history.NewMemoryLedger(), cfg.Momentum),
		analysis.NewEngine(cfg, nil),
		rules,
		nil,
		store,
		nil,
	)

	handler := NewHandler(orch, store, rules, audit.NewTrail(100, nil))
	router := NewRouter(handler, &MiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitDisabled:  true,
	})

	return &testStack{router: router.Setup(), store: store, rules: rules}
}

func (s *testStack) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp APIResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func seedBundle(t *testing.T, store storage.Store, alerts []alerting.Alert) {
	t.Helper()
	err := store.Put(context.Background(), &storage.Bundle{
		Territory:   models.TerritoryArgentina,
		Period:      models.PeriodDaily,
		Date:        testDate,
		GeneratedAt: time.Now(),
		Analysis:    &models.AnalysisBundle{},
		Alerts:      alerts,
	})
	if err != nil {
		t.Fatalf("seed bundle: %v", err)
	}
}

func TestGetInsightsEndpoint(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(20)})

	rec, resp := s.do(t, http.MethodGet, "/api/v1/insights/argentina/daily", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !resp.Success || resp.Data == nil {
		t.Fatal("expected success envelope with data")
	}
	if resp.Meta == nil || resp.Meta.FromCache == nil || *resp.Meta.FromCache {
		t.Error("first request should not come from cache")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/insights/argentina/daily", nil)
	if resp.Meta == nil || resp.Meta.FromCache == nil || !*resp.Meta.FromCache {
		t.Error("second request should come from cache")
	}
}

func TestGetInsightsBadKey(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})

	cases := []string{
		"/api/v1/insights/atlantis/daily",
		"/api/v1/insights/argentina/hourly",
	}
	for _, path := range cases {
		rec, resp := s.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		if resp.Error == nil || resp.Error.Code != ErrCodeBadRequest {
			t.Errorf("%s: error envelope = %+v", path, resp.Error)
		}
	}
}

func TestGetInsightsUpstreamFailure(t *testing.T) {
	s := newTestStack(&stubProvider{err: snapshot.ErrUpstreamUnavailable})

	rec, resp := s.do(t, http.MethodGet, "/api/v1/insights/argentina/daily", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeUpstreamFailed {
		t.Errorf("error envelope = %+v", resp.Error)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(20)})

	rec, resp := s.do(t, http.MethodPost, "/api/v1/insights/argentina/daily/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Meta == nil || resp.Meta.FromCache == nil || *resp.Meta.FromCache {
		t.Error("refresh must not be served from cache")
	}
}

func TestInsightsStatusEndpoint(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(20)})

	rec, resp := s.do(t, http.MethodGet, "/api/v1/insights/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T", resp.Data)
	}
	if data["overall"] != "error" {
		t.Errorf("overall = %v, want error before first generation", data["overall"])
	}
}

func TestListAlertsFiltering(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})
	seedBundle(t, s.store, []alerting.Alert{
		{ID: "a1", RuleID: "jump_positions", Type: alerting.RuleJump, Severity: alerting.SeverityMedium},
		{ID: "a2", RuleID: "drop_positions", Type: alerting.RuleDrop, Severity: alerting.SeverityHigh},
		{ID: "a3", RuleID: "chart_debut", Type: alerting.RuleDebut, Severity: alerting.SeverityHigh, Acknowledged: true},
	})

	rec, resp := s.do(t, http.MethodGet, "/api/v1/alerts/argentina/daily?severity=high", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]interface{})
	if count := data["count"].(float64); count != 2 {
		t.Errorf("high severity count = %v, want 2", count)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/alerts/argentina/daily?severity=high&acknowledged=false", nil)
	data = resp.Data.(map[string]interface{})
	if count := data["count"].(float64); count != 1 {
		t.Errorf("unacked high count = %v, want 1", count)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/alerts/argentina/daily?severity=catastrophic", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad severity: status = %d, want 400", rec.Code)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/alerts/spain/daily", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing bundle: status = %d, want 404", rec.Code)
	}
}

func TestAlertStatisticsEndpoint(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})
	seedBundle(t, s.store, []alerting.Alert{
		{ID: "a1", Type: alerting.RuleJump, Severity: alerting.SeverityMedium, Territory: models.TerritoryArgentina},
		{ID: "a2", Type: alerting.RuleDrop, Severity: alerting.SeverityHigh, Territory: models.TerritoryArgentina},
	})

	rec, resp := s.do(t, http.MethodGet, "/api/v1/alerts/argentina/daily/statistics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if total := data["total"].(float64); total != 2 {
		t.Errorf("total = %v, want 2", total)
	}
}

func TestAcknowledgeEndpoint(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})
	seedBundle(t, s.store, []alerting.Alert{
		{ID: "a1", Type: alerting.RuleJump, Severity: alerting.SeverityMedium},
		{ID: "a2", Type: alerting.RuleDrop, Severity: alerting.SeverityHigh},
	})

	rec, resp := s.do(t, http.MethodPost, "/api/v1/alerts/argentina/daily/acknowledge",
		map[string]interface{}{"ids": []string{"a1", "missing"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]interface{})
	if acked := data["acknowledged"].(float64); acked != 1 {
		t.Errorf("acknowledged = %v, want 1", acked)
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/alerts/argentina/daily/acknowledge",
		map[string]interface{}{"ids": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d, want 400", rec.Code)
	}
}

func TestRuleCRUD(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})

	rec, resp := s.do(t, http.MethodGet, "/api/v1/rules/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	defaults := resp.Data.([]interface{})
	if len(defaults) == 0 {
		t.Fatal("expected default rules")
	}

	rec, resp = s.do(t, http.MethodPost, "/api/v1/rules/", map[string]interface{}{
		"name":      "Viral Spike",
		"type":      "jump",
		"severity":  "high",
		"threshold": 25,
		"enabled":   true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := resp.Data.(map[string]interface{})
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("created rule has no id")
	}

	rec, resp = s.do(t, http.MethodPut, "/api/v1/rules/"+id,
		map[string]interface{}{"threshold": 30})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	updated := resp.Data.(map[string]interface{})
	if th := updated["threshold"].(float64); th != 30 {
		t.Errorf("threshold = %v, want 30", th)
	}

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/rules/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/rules/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d, want 404", rec.Code)
	}
}

func TestRuleValidation(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"unknown type", map[string]interface{}{"name": "x", "type": "levitation", "severity": "low"}},
		{"unknown severity", map[string]interface{}{"name": "x", "type": "jump", "severity": "cosmic"}},
		{"missing name", map[string]interface{}{"type": "jump", "severity": "low"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := s.do(t, http.MethodPost, "/api/v1/rules/", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
				t.Errorf("error envelope = %+v", resp.Error)
			}
		})
	}
}

func TestRuleChangeInvalidatesBundles(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})
	seedBundle(t, s.store, nil)

	_, _ = s.do(t, http.MethodPost, "/api/v1/rules/", map[string]interface{}{
		"name": "Viral Spike", "type": "jump", "severity": "high", "threshold": 25,
	})

	b, err := s.store.Get(context.Background(), models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Stale {
		t.Error("bundle should be stale after a rule change")
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})

	rec, _ := s.do(t, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	s := newTestStack(&stubProvider{snap: testSnapshot(5)})

	rec, resp := s.do(t, http.MethodGet, "/api/v1/audit/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit status = %d", rec.Code)
	}
	if events := resp.Data.([]interface{}); len(events) != 0 {
		t.Fatalf("expected empty trail, got %d events", len(events))
	}

	rec, resp = s.do(t, http.MethodPost, "/api/v1/rules/", map[string]interface{}{
		"name":      "Chart Debut",
		"type":      "debut",
		"severity":  "medium",
		"threshold": 10,
		"enabled":   true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	id := resp.Data.(map[string]interface{})["id"].(string)

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/rules/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/audit/events", nil)
	events := resp.Data.([]interface{})
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	newest := events[0].(map[string]interface{})
	if newest["type"] != "rule.deleted" {
		t.Errorf("newest event type = %v, want rule.deleted", newest["type"])
	}
	if newest["subject"] != id {
		t.Errorf("newest event subject = %v, want %s", newest["subject"], id)
	}

	_, resp = s.do(t, http.MethodGet, "/api/v1/audit/events?type=rule.created", nil)
	if events := resp.Data.([]interface{}); len(events) != 1 {
		t.Errorf("filtered events = %d, want 1", len(events))
	}

	rec, _ = s.do(t, http.MethodGet, "/api/v1/audit/events?since=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since: status = %d, want 400", rec.Code)
	}
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package narrative

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

func testBundle() *models.AnalysisBundle {
	return &models.AnalysisBundle{
		Territory: models.TerritoryArgentina,
		Period:    models.PeriodWeekly,
		Date:      time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
	}
}

func testClient(url string) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = url
	cfg.APIKey = "test-key"
	cfg.RatePerMinute = 6000
	return NewClient(cfg)
}

const validContent = `{
	"executive_summary": "Argentine chart turnover accelerated this week.",
	"key_findings": [
		{"type": "market", "title": "High turnover", "description": "20 debuts", "confidence": 90, "impact": "high", "actionable": true}
	],
	"market_analysis": {"genre_trends": "urbano up"},
	"recommendations": [
		{"type": "opportunity", "title": "Watch breakouts", "description": "Three tracks outside Top 50 show momentum", "priority": "medium"}
	],
	"alerts": [
		{"type": "jump", "track": "Song", "artist": "Artist", "message": "jumped 15", "severity": "medium"}
	]
}`

func TestGenerateValidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": ` + validContent + `}`)) //nolint:errcheck
	}))
	defer srv.Close()

	insights, err := testClient(srv.URL).Generate(context.Background(), testBundle())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if insights.ExecutiveSummary == "" || len(insights.KeyFindings) != 1 {
		t.Errorf("unexpected insights: %+v", insights)
	}
	if insights.GeneratedAt.IsZero() {
		t.Error("generated_at not stamped")
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	c := NewClient(DefaultClientConfig())
	if _, err := c.Generate(context.Background(), testBundle()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestGenerateMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": "not json at all"`)) //nolint:errcheck
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), testBundle()); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestGenerateSchemaViolation(t *testing.T) {
	// Syntactically valid JSON with an out-of-range confidence and a bad
	// enum value must be rejected wholesale.
	bad := `{
		"executive_summary": "ok",
		"key_findings": [{"type": "weather", "title": "x", "description": "y", "confidence": 300, "impact": "high"}]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": ` + bad + `}`)) //nolint:errcheck
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), testBundle()); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestGenerateEmptySummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": {"executive_summary": ""}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), testBundle()); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Generate(context.Background(), testBundle())
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrNotConfigured) {
		t.Errorf("transport failure mapped to wrong class: %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	for i := 0; i < 3; i++ {
		c.Generate(context.Background(), testBundle()) //nolint:errcheck
	}

	start := time.Now()
	_, err := c.Generate(context.Background(), testBundle())
	if err == nil {
		t.Fatal("expected open-breaker error")
	}
	// An open breaker fails fast without hitting the network.
	if time.Since(start) > 100*time.Millisecond {
		t.Error("breaker did not fail fast")
	}
}

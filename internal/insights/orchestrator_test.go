// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package insights

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/analysis"
	"github.com/tduarte/chartpulse/internal/history"
	"github.com/tduarte/chartpulse/internal/models"
	"github.com/tduarte/chartpulse/internal/narrative"
	"github.com/tduarte/chartpulse/internal/snapshot"
	"github.com/tduarte/chartpulse/internal/storage"
)

// Monday in the test timezone.
var testDate = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

// testZone avoids a tzdata dependency in tests.
var testZone = time.FixedZone("ART", -3*60*60)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
	snap  *snapshot.Snapshot
}

func (p *fakeProvider) Fetch(ctx context.Context, territory models.Territory, period models.Period) (*snapshot.Snapshot, error) {
	p.mu.Lock()
	p.calls++
	delay, err, snap := p.delay, p.err, p.snap
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	out := *snap
	out.Territory = territory
	out.Period = period
	return &out, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *fakeProvider) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type fakeGenerator struct {
	err   error
	calls int
}

func (g *fakeGenerator) Generate(ctx context.Context, bundle *models.AnalysisBundle) (*narrative.Insights, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &narrative.Insights{ExecutiveSummary: "an uneventful week on the charts"}, nil
}

func chartSnapshot(date time.Time, n int) *snapshot.Snapshot {
	entries := make([]snapshot.Entry, n)
	for i := range entries {
		pos := i + 1
		entries[i] = snapshot.Entry{
			TrackID:   trackID(pos),
			TrackName: "track",
			Artists:   "artist",
			Position:  pos,
			Streams:   models.Int64Ptr(int64(1000 * (n - i))),
		}
	}
	return &snapshot.Snapshot{
		Territory:   models.TerritoryArgentina,
		Period:      models.PeriodDaily,
		Date:        date,
		LastUpdated: date,
		Entries:     entries,
	}
}

func trackID(pos int) string {
	return "t" + string(rune('a'+pos/26)) + string(rune('a'+pos%26))
}

func newTestOrchestrator(clock *testClock, provider snapshot.Provider, gen narrative.Generator) *Orchestrator {
	cfg := models.DefaultAnalysisConfig()
	ledger := history.NewMemoryLedger()
	store := storage.NewMemoryStore(25*time.Hour, clock.Now)

	return NewOrchestrator(
		Config{
			Territories:  []models.Territory{models.TerritoryArgentina},
			Periods:      []models.Period{models.PeriodDaily},
			Retention:    storage.DefaultRetention,
			PollInterval: time.Minute,
			Location:     testZone,
		},
		provider,
		snapshot.NewBuilder(ledger, cfg.Momentum),
		analysis.NewEngine(cfg, nil),
		alerting.NewEngine(cfg, clock.Now),
		gen,
		store,
		clock.Now,
	)
}

func TestGetInsightsCachesFreshBundle(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
	o := newTestOrchestrator(clock, provider, nil)
	ctx := context.Background()

	b1, fromCache, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if fromCache {
		t.Error("first call claimed cache")
	}
	if b1.Analysis == nil || b1.Analysis.Movers == nil {
		t.Fatal("bundle missing analysis")
	}

	b2, fromCache, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if !fromCache {
		t.Error("second call not served from cache")
	}
	if !b2.GeneratedAt.Equal(b1.GeneratedAt) {
		t.Error("cached bundle regenerated")
	}
	if provider.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.Calls())
	}
}

func TestGetInsightsRegeneratesWhenStale(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
	o := newTestOrchestrator(clock, provider, nil)
	ctx := context.Background()

	if _, _, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily); err != nil {
		t.Fatal(err)
	}

	clock.Set(testDate.Add(26 * time.Hour))
	_, fromCache, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatal(err)
	}
	if fromCache {
		t.Error("stale bundle served from cache")
	}
	if provider.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.Calls())
	}
}

func TestGetInsightsTransientFallback(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
	o := newTestOrchestrator(clock, provider, nil)
	ctx := context.Background()

	first, _, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatal(err)
	}

	clock.Set(testDate.Add(26 * time.Hour))
	provider.SetError(snapshot.ErrUpstreamUnavailable)

	got, fromCache, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatalf("transient failure surfaced instead of falling back: %v", err)
	}
	if !fromCache {
		t.Error("fallback bundle not flagged as cached")
	}
	if !got.GeneratedAt.Equal(first.GeneratedAt) {
		t.Error("fallback returned a different bundle")
	}
}

func TestGetInsightsErrorWithoutFallback(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{err: snapshot.ErrUpstreamUnavailable}
	o := newTestOrchestrator(clock, provider, nil)

	_, _, err := o.GetInsights(context.Background(), models.TerritoryArgentina, models.PeriodDaily)
	if !errors.Is(err, snapshot.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want upstream unavailable", err)
	}
}

func TestForceRefreshBypassesCache(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
	o := newTestOrchestrator(clock, provider, nil)
	ctx := context.Background()

	if _, _, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily); err != nil {
		t.Fatal(err)
	}
	if _, err := o.ForceRefresh(ctx, models.TerritoryArgentina, models.PeriodDaily); err != nil {
		t.Fatal(err)
	}
	if provider.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2", provider.Calls())
	}
}

func TestConcurrentRegenerationDeduplicated(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200), delay: 20 * time.Millisecond}
	o := newTestOrchestrator(clock, provider, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily); err != nil {
				t.Errorf("concurrent get failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if provider.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1 (singleflight)", provider.Calls())
	}
}

func TestNarrativeIncludedWhenHealthy(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
	gen := &fakeGenerator{}
	o := newTestOrchestrator(clock, provider, gen)

	b, _, err := o.GetInsights(context.Background(), models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatal(err)
	}
	if b.Narrative == nil || b.Narrative.ExecutiveSummary == "" {
		t.Error("narrative missing from healthy bundle")
	}
}

func TestNarrativeFailureDegradesToAnalyticsOnly(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"malformed response", narrative.ErrMalformedResponse},
		{"not configured", narrative.ErrNotConfigured},
		{"transport failure", errors.New("connect: connection refused")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &testClock{now: testDate}
			provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
			o := newTestOrchestrator(clock, provider, &fakeGenerator{err: tc.err})

			b, _, err := o.GetInsights(context.Background(), models.TerritoryArgentina, models.PeriodDaily)
			if err != nil {
				t.Fatalf("narrative failure broke the pipeline: %v", err)
			}
			if b.Narrative != nil {
				t.Error("degraded bundle carries a narrative")
			}
			if b.Analysis == nil {
				t.Error("degraded bundle lost its analysis")
			}
		})
	}
}

func TestStatusStates(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 200)}
	o := newTestOrchestrator(clock, provider, nil)
	ctx := context.Background()

	// Nothing stored yet.
	st := o.Status(ctx)
	if st.Overall != "error" || len(st.Keys) != 1 || st.Keys[0].State != "error" {
		t.Fatalf("empty status = %+v", st)
	}

	if _, _, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily); err != nil {
		t.Fatal(err)
	}
	st = o.Status(ctx)
	if st.Overall != "healthy" || st.Keys[0].State != "healthy" {
		t.Fatalf("fresh status = %+v", st)
	}
	if !st.Keys[0].NextUpdate.After(clock.Now()) {
		t.Error("next update not in the future")
	}

	clock.Set(testDate.Add(26 * time.Hour))
	st = o.Status(ctx)
	if st.Overall != "degraded" || st.Keys[0].State != "degraded" {
		t.Fatalf("stale status = %+v", st)
	}
}

func TestNarrativeReusedWhenAnalysisUnchanged(t *testing.T) {
	clock := &testClock{now: testDate}
	provider := &fakeProvider{snap: chartSnapshot(testDate, 20)}
	gen := &fakeGenerator{}
	o := newTestOrchestrator(clock, provider, gen)
	ctx := context.Background()

	first, _, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily)
	if err != nil {
		t.Fatalf("first generation failed: %v", err)
	}
	if first.Narrative == nil || gen.calls != 1 {
		t.Fatalf("narrative = %v, gen calls = %d", first.Narrative, gen.calls)
	}

	// Stale by age, same upstream data: the pipeline reruns but the
	// unchanged analysis carries the stored narrative forward.
	clock.Set(testDate.Add(26 * time.Hour))
	second, fromCache, err := o.GetInsights(ctx, models.TerritoryArgentina, models.PeriodDaily)
	if err != nil || fromCache {
		t.Fatalf("regeneration failed: err=%v fromCache=%v", err, fromCache)
	}
	if provider.Calls() != 2 {
		t.Fatalf("provider calls = %d, want 2", provider.Calls())
	}
	if gen.calls != 1 {
		t.Errorf("gen calls = %d, want 1 (narrative reused)", gen.calls)
	}
	if second.Narrative == nil || second.Narrative.ExecutiveSummary != first.Narrative.ExecutiveSummary {
		t.Error("stored narrative not carried forward")
	}
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookup(t *testing.T) {
	hitsBefore := testutil.ToFloat64(CacheHits)
	missesBefore := testutil.ToFloat64(CacheMisses)

	RecordCacheLookup(true)
	RecordCacheLookup(true)
	RecordCacheLookup(false)

	if got := testutil.ToFloat64(CacheHits) - hitsBefore; got != 2 {
		t.Errorf("cache hits delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(CacheMisses) - missesBefore; got != 1 {
		t.Errorf("cache misses delta = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/insights", "200"))

	RecordAPIRequest("GET", "/api/v1/insights", "200", 25*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/insights", "200"))
	if after-before != 1 {
		t.Errorf("request counter delta = %v, want 1", after-before)
	}
}

func TestRecordPipelineSuccessSetsTimestamp(t *testing.T) {
	RecordPipeline("argentina", "weekly", 2*time.Second, nil)

	ts := testutil.ToFloat64(PipelineLastSuccess.WithLabelValues("argentina", "weekly"))
	if ts == 0 {
		t.Error("last success timestamp not set")
	}
}

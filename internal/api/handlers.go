// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/audit"
	"github.com/tduarte/chartpulse/internal/insights"
	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/metrics"
	"github.com/tduarte/chartpulse/internal/models"
	"github.com/tduarte/chartpulse/internal/snapshot"
	"github.com/tduarte/chartpulse/internal/storage"
)

// maxRequestBodySize bounds JSON request bodies.
const maxRequestBodySize = 1 << 20 // 1MB

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	orch  *insights.Orchestrator
	store storage.Store
	rules *alerting.Engine
	trail *audit.Trail
}

// NewHandler creates the endpoint handler set. A nil trail disables audit
// recording.
func NewHandler(orch *insights.Orchestrator, store storage.Store, rules *alerting.Engine, trail *audit.Trail) *Handler {
	return &Handler{orch: orch, store: store, rules: rules, trail: trail}
}

// record writes an audit event when a trail is configured.
func (h *Handler) record(r *http.Request, eventType audit.EventType, subject string, details map[string]string) {
	if h.trail == nil {
		return
	}
	h.trail.Record(eventType, subject, logging.RequestIDFromContext(r.Context()), details)
}

// chartKey parses the {territory} and {period} URL params. A false return
// means the 400 response has already been written.
func chartKey(w http.ResponseWriter, r *http.Request) (models.Territory, models.Period, bool) {
	territory, err := models.ParseTerritory(chi.URLParam(r, "territory"))
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return "", "", false
	}
	period, err := models.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return "", "", false
	}
	return territory, period, true
}

// decodeBody decodes a bounded JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, r, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeInsightsError maps pipeline errors onto HTTP status codes.
func writeInsightsError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rw.NotFound("no insights stored for this chart")
	case errors.Is(err, snapshot.ErrUpstreamUnavailable),
		errors.Is(err, snapshot.ErrEmptySnapshot):
		rw.UpstreamError(err)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("insights request failed")
		rw.InternalError("failed to produce insights")
	}
}

// GetInsights serves the full insights bundle for one chart, regenerating
// when the cached one is stale or missing.
func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	territory, period, ok := chartKey(w, r)
	if !ok {
		return
	}

	bundle, fromCache, err := h.orch.GetInsights(r.Context(), territory, period)
	if err != nil {
		writeInsightsError(w, r, err)
		return
	}

	NewResponseWriter(w, r).SuccessWithMeta(bundle, &APIMeta{FromCache: &fromCache})
}

// RefreshInsights forces regeneration for one chart, bypassing the cache.
func (h *Handler) RefreshInsights(w http.ResponseWriter, r *http.Request) {
	territory, period, ok := chartKey(w, r)
	if !ok {
		return
	}

	bundle, err := h.orch.ForceRefresh(r.Context(), territory, period)
	if err != nil {
		writeInsightsError(w, r, err)
		return
	}

	fromCache := false
	NewResponseWriter(w, r).SuccessWithMeta(bundle, &APIMeta{FromCache: &fromCache})
}

// InsightsStatus reports per-chart freshness and the overall state.
func (h *Handler) InsightsStatus(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.orch.Status(r.Context()))
}

// ListBundles lists every stored bundle with freshness info.
func (h *Handler) ListBundles(w http.ResponseWriter, r *http.Request) {
	infos, err := h.store.List(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("bundle listing failed")
		NewResponseWriter(w, r).InternalError("failed to list bundles")
		return
	}
	WriteSuccess(w, r, infos)
}

// alertFilterFromQuery builds an AlertFilter from query parameters.
// Unset parameters leave the predicate nil.
func alertFilterFromQuery(r *http.Request) (alerting.AlertFilter, error) {
	var f alerting.AlertFilter
	q := r.URL.Query()

	if v := q.Get("severity"); v != "" {
		s := alerting.Severity(v)
		switch s {
		case alerting.SeverityLow, alerting.SeverityMedium, alerting.SeverityHigh:
			f.Severity = &s
		default:
			return f, errors.New("unknown severity: " + v)
		}
	}
	if v := q.Get("type"); v != "" {
		t := alerting.RuleType(v)
		switch t {
		case alerting.RuleJump, alerting.RuleDrop, alerting.RuleDebut,
			alerting.RuleRisk, alerting.RuleDataQuality:
			f.Type = &t
		default:
			return f, errors.New("unknown alert type: " + v)
		}
	}
	if v := q.Get("acknowledged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("acknowledged must be a boolean")
		}
		f.Acknowledged = &b
	}
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("from must be YYYY-MM-DD")
		}
		f.DateFrom = &ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("to must be YYYY-MM-DD")
		}
		f.DateTo = &ts
	}
	return f, nil
}

// ListAlerts returns the alerts of the stored bundle for one chart,
// optionally narrowed by filter query parameters.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	territory, period, ok := chartKey(w, r)
	if !ok {
		return
	}

	filter, err := alertFilterFromQuery(r)
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	bundle, err := h.store.Get(r.Context(), territory, period)
	if err != nil {
		writeInsightsError(w, r, err)
		return
	}

	alerts := alerting.FilterAlerts(bundle.Alerts, filter)
	WriteSuccess(w, r, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// AlertStatistics aggregates alert counts for one chart's stored bundle.
func (h *Handler) AlertStatistics(w http.ResponseWriter, r *http.Request) {
	territory, period, ok := chartKey(w, r)
	if !ok {
		return
	}

	bundle, err := h.store.Get(r.Context(), territory, period)
	if err != nil {
		writeInsightsError(w, r, err)
		return
	}

	WriteSuccess(w, r, alerting.AlertStatistics(bundle.Alerts))
}

type acknowledgeRequest struct {
	IDs []string `json:"ids"`
}

// AcknowledgeAlerts acknowledges alerts by id on the stored bundle.
func (h *Handler) AcknowledgeAlerts(w http.ResponseWriter, r *http.Request) {
	territory, period, ok := chartKey(w, r)
	if !ok {
		return
	}

	var req acknowledgeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		WriteBadRequest(w, r, "ids must not be empty")
		return
	}

	acked, err := h.store.AcknowledgeAlerts(r.Context(), territory, period, req.IDs, time.Now().UTC())
	if err != nil {
		writeInsightsError(w, r, err)
		return
	}
	metrics.AlertsAcknowledged.Add(float64(acked))
	h.record(r, audit.EventTypeAlertsAcknowledged,
		string(territory)+"/"+string(period),
		map[string]string{"acknowledged": strconv.Itoa(acked)})

	WriteSuccess(w, r, map[string]interface{}{
		"acknowledged": acked,
		"requested":    len(req.IDs),
	})
}

// ListRules returns the rule registry.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.rules.Rules())
}

// GetRule returns one rule by id.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Rule(chi.URLParam(r, "id"))
	if err != nil {
		WriteNotFound(w, r, err.Error())
		return
	}
	WriteSuccess(w, r, rule)
}

// CreateRule adds a rule to the registry. Future generation cycles pick it
// up; cached bundles are invalidated so the next read re-evaluates.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule alerting.AlertRule
	if !decodeBody(w, r, &rule) {
		return
	}
	if err := validateRule(&rule); err != nil {
		NewResponseWriter(w, r).ValidationError("invalid rule", err.Error())
		return
	}

	created := h.rules.AddRule(rule)
	h.invalidateAll(r)
	h.record(r, audit.EventTypeRuleCreated, created.ID, map[string]string{"name": created.Name})
	NewResponseWriter(w, r).Created(created)
}

// UpdateRule applies a partial update to one rule.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var update alerting.RuleUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	if update.Severity != nil {
		switch *update.Severity {
		case alerting.SeverityLow, alerting.SeverityMedium, alerting.SeverityHigh:
		default:
			NewResponseWriter(w, r).ValidationError("invalid rule update",
				"unknown severity: "+string(*update.Severity))
			return
		}
	}

	rule, err := h.rules.UpdateRule(chi.URLParam(r, "id"), update)
	if err != nil {
		WriteNotFound(w, r, err.Error())
		return
	}

	h.invalidateAll(r)
	h.record(r, audit.EventTypeRuleUpdated, rule.ID, map[string]string{"name": rule.Name})
	WriteSuccess(w, r, rule)
}

// DeleteRule removes one rule from the registry.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.rules.RemoveRule(id); err != nil {
		WriteNotFound(w, r, err.Error())
		return
	}
	h.invalidateAll(r)
	h.record(r, audit.EventTypeRuleDeleted, id, nil)
	NewResponseWriter(w, r).NoContent()
}

// ListAuditEvents returns recent audit events, newest first. Supports
// type, since (RFC 3339) and limit query parameters.
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.trail == nil {
		WriteSuccess(w, r, []audit.Event{})
		return
	}

	var filter audit.Filter
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		filter.Type = audit.EventType(v)
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			WriteBadRequest(w, r, "since must be RFC 3339")
			return
		}
		filter.Since = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteBadRequest(w, r, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	WriteSuccess(w, r, h.trail.Recent(filter))
}

// validateRule checks a rule submitted over the API.
func validateRule(rule *alerting.AlertRule) error {
	switch rule.Type {
	case alerting.RuleJump, alerting.RuleDrop, alerting.RuleDebut,
		alerting.RuleRisk, alerting.RuleDataQuality:
	default:
		return errors.New("unknown rule type: " + string(rule.Type))
	}
	switch rule.Severity {
	case alerting.SeverityLow, alerting.SeverityMedium, alerting.SeverityHigh:
	default:
		return errors.New("unknown severity: " + string(rule.Severity))
	}
	if rule.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// invalidateAll marks every tracked bundle stale after a rule change so
// the next read regenerates alerts under the new registry.
func (h *Handler) invalidateAll(r *http.Request) {
	for _, key := range h.orch.Keys() {
		if err := h.store.Invalidate(r.Context(), key.Territory, key.Period); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).
				Str("territory", string(key.Territory)).
				Str("period", string(key.Period)).
				Msg("bundle invalidation after rule change failed")
		}
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the store must be reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.List(r.Context()); err != nil {
		NewResponseWriter(w, r).ServiceUnavailable("storage unavailable")
		return
	}
	WriteSuccess(w, r, map[string]string{"status": "ready"})
}

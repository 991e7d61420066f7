// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package audit records changes to the alerting configuration and alert
// lifecycle so operators can reconstruct who changed what and when. Events
// are held in a bounded in-memory ring; the trail is an operational aid,
// not durable storage.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventType categorizes audit events.
type EventType string

const (
	EventTypeRuleCreated        EventType = "rule.created"
	EventTypeRuleUpdated        EventType = "rule.updated"
	EventTypeRuleDeleted        EventType = "rule.deleted"
	EventTypeAlertsAcknowledged EventType = "alerts.acknowledged"
)

// Event is one recorded change.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	Subject   string            `json:"subject,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Filter narrows Recent queries. Zero values match everything.
type Filter struct {
	Type  EventType
	Since time.Time
	Limit int
}

// Trail is a fixed-capacity, most-recent-first event log. Safe for
// concurrent use. When full, the oldest events are discarded.
type Trail struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
	now    func() time.Time
}

// NewTrail creates a trail holding at most maxLen events. A nil now
// function defaults to time.Now.
func NewTrail(maxLen int, now func() time.Time) *Trail {
	if maxLen <= 0 {
		maxLen = 1000
	}
	if now == nil {
		now = time.Now
	}
	return &Trail{
		events: make([]Event, 0, maxLen),
		maxLen: maxLen,
		now:    now,
	}
}

// Record appends an event, assigning its ID and timestamp, and mirrors it
// to the structured log.
func (t *Trail) Record(eventType EventType, subject, requestID string, details map[string]string) Event {
	event := Event{
		ID:        uuid.New().String(),
		Timestamp: t.now().UTC(),
		Type:      eventType,
		Subject:   subject,
		RequestID: requestID,
		Details:   details,
	}

	t.mu.Lock()
	if len(t.events) >= t.maxLen {
		drop := t.maxLen / 10
		if drop < 1 {
			drop = 1
		}
		t.events = t.events[drop:]
	}
	t.events = append(t.events, event)
	t.mu.Unlock()

	log.Info().
		Str("component", "audit").
		Str("event_id", event.ID).
		Str("event_type", string(eventType)).
		Str("subject", subject).
		Str("request_id", requestID).
		Msg("Audit event recorded")

	return event
}

// Recent returns events matching the filter, newest first.
func (t *Trail) Recent(filter Filter) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	results := make([]Event, 0)
	for i := len(t.events) - 1; i >= 0; i-- {
		event := t.events[i]
		if filter.Type != "" && event.Type != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
			continue
		}
		results = append(results, event)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results
}

// Len reports the number of retained events.
func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/models"
)

// MemoryStore is an in-memory Store for tests and single-run tooling.
type MemoryStore struct {
	mu            sync.RWMutex
	bundles       map[string]*Bundle
	cacheDuration time.Duration
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store. A nil clock means
// time.Now.
func NewMemoryStore(cacheDuration time.Duration, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		bundles:       make(map[string]*Bundle),
		cacheDuration: cacheDuration,
		now:           now,
	}
}

func storeKey(territory models.Territory, period models.Period) string {
	return string(territory) + ":" + string(period)
}

func (s *MemoryStore) Get(ctx context.Context, territory models.Territory, period models.Period) (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bundles[storeKey(territory, period)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, territory, period)
	}

	out := *b
	computeStale(&out, s.cacheDuration, s.now())
	return &out, nil
}

func (s *MemoryStore) Put(ctx context.Context, b *Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *b
	stored.Invalidated = false
	stored.Stale = false
	s.bundles[stored.Key()] = &stored
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, territory models.Territory, period models.Period, fresh *models.AnalysisBundle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bundles[storeKey(territory, period)]
	if !ok {
		return false, fmt.Errorf("%w: %s/%s", ErrNotFound, territory, period)
	}

	significant := hasSignificantChanges(b.Analysis, fresh)
	if significant {
		b.Invalidated = true
	}
	return significant, nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, territory models.Territory, period models.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.bundles[storeKey(territory, period)]; ok {
		b.Invalidated = true
	}
	return nil
}

func (s *MemoryStore) AcknowledgeAlerts(ctx context.Context, territory models.Territory, period models.Period, ids []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bundles[storeKey(territory, period)]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, territory, period)
	}

	updated := alerting.AcknowledgeAlerts(ids, b.Alerts, at)
	acked := 0
	for i := range updated {
		if updated[i].Acknowledged && !b.Alerts[i].Acknowledged {
			acked++
		}
	}
	b.Alerts = updated
	return acked, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]BundleInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]BundleInfo, 0, len(s.bundles))
	for _, b := range s.bundles {
		copied := *b
		computeStale(&copied, s.cacheDuration, now)
		out = append(out, BundleInfo{
			Territory:   copied.Territory,
			Period:      copied.Period,
			Date:        copied.Date,
			GeneratedAt: copied.GeneratedAt,
			Stale:       copied.Stale,
			AlertCount:  len(copied.Alerts),
		})
	}
	return out, nil
}

func (s *MemoryStore) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-retention)
	removed := 0
	for key, b := range s.bundles {
		if b.GeneratedAt.Before(cutoff) {
			delete(s.bundles, key)
			removed++
		}
	}
	return removed, nil
}

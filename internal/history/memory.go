// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/tduarte/chartpulse/internal/models"
)

// MemoryLedger is an in-memory Ledger for tests and single-run tooling.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string][]Membership // newest last
	stats   map[string]map[string]TrackStats
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string][]Membership),
		stats:   make(map[string]map[string]TrackStats),
	}
}

func ledgerKey(territory models.Territory, period models.Period) string {
	return fmt.Sprintf("%s:%s", territory, period)
}

func (l *MemoryLedger) Record(ctx context.Context, territory models.Territory, period models.Period, m Membership) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(territory, period)
	m.Seq = uint64(len(l.records[key]) + 1)
	l.records[key] = append(l.records[key], m)
	return nil
}

func (l *MemoryLedger) Last(ctx context.Context, territory models.Territory, period models.Period, n int) ([]Membership, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.records[ledgerKey(territory, period)]
	if len(all) == 0 {
		return nil, ErrNoHistory
	}

	if n > len(all) {
		n = len(all)
	}
	out := make([]Membership, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (l *MemoryLedger) StatsFor(ctx context.Context, territory models.Territory, period models.Period, ids []string) (map[string]TrackStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byTrack := l.stats[ledgerKey(territory, period)]
	out := make(map[string]TrackStats, len(ids))
	for _, id := range ids {
		if s, ok := byTrack[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (l *MemoryLedger) PutStats(ctx context.Context, territory models.Territory, period models.Period, stats []TrackStats) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(territory, period)
	if l.stats[key] == nil {
		l.stats[key] = make(map[string]TrackStats, len(stats))
	}
	for _, s := range stats {
		l.stats[key][s.TrackID] = s
	}
	return nil
}

func (l *MemoryLedger) Prune(ctx context.Context, territory models.Territory, period models.Period, keep int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(territory, period)
	all := l.records[key]
	if len(all) <= keep {
		return 0, nil
	}
	dropped := len(all) - keep
	l.records[key] = append([]Membership{}, all[dropped:]...)
	return dropped, nil
}

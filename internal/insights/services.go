// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package insights

import (
	"context"
	"time"

	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/metrics"
)

// CleanupService is the suture service running retention cleanup on the
// bundle store.
type CleanupService struct {
	orch *Orchestrator
}

// NewCleanupService wraps the orchestrator's store cleanup in a
// supervisable service.
func NewCleanupService(orch *Orchestrator) *CleanupService {
	return &CleanupService{orch: orch}
}

func (s *CleanupService) String() string { return "insights-cleanup" }

// Serve implements suture.Service. Runs until the context is canceled.
func (s *CleanupService) Serve(ctx context.Context) error {
	interval := s.orch.cfg.CleanupInterval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.orch.store.Cleanup(ctx, s.orch.cfg.Retention)
			if err != nil {
				logging.Error().Err(err).Msg("retention cleanup failed")
				continue
			}
			if removed > 0 {
				metrics.BundlesCleaned.Add(float64(removed))
			}
		}
	}
}

// PollerService is the suture service driving scheduled regeneration: it
// periodically asks ShouldUpdate for every tracked key and regenerates the
// ones that fell behind their cadence boundary.
type PollerService struct {
	orch *Orchestrator
}

// NewPollerService wraps the cadence poll loop in a supervisable service.
func NewPollerService(orch *Orchestrator) *PollerService {
	return &PollerService{orch: orch}
}

func (s *PollerService) String() string { return "insights-poller" }

// Serve implements suture.Service. Runs until the context is canceled.
func (s *PollerService) Serve(ctx context.Context) error {
	interval := s.orch.cfg.PollInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// One pass on startup so a fresh deployment does not wait a full
	// interval for its first data.
	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *PollerService) poll(ctx context.Context) {
	for _, territory := range s.orch.cfg.Territories {
		for _, period := range s.orch.cfg.Periods {
			if ctx.Err() != nil {
				return
			}
			if !s.orch.ShouldUpdate(ctx, territory, period) {
				continue
			}
			if _, err := s.orch.refresh(ctx, territory, period); err != nil {
				logging.Error().Err(err).
					Str("territory", string(territory)).
					Str("period", string(period)).
					Msg("scheduled regeneration failed")
			}
		}
	}
}

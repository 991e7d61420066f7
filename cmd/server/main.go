// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Command server runs the ChartPulse daemon: the insights pipeline with
// its cadence poller and retention cleanup under a suture supervision
// tree, and the REST API in front of the cached bundles.
//
// Configuration is layered: built-in defaults, then config.yaml, then
// CHARTPULSE_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/analysis"
	"github.com/tduarte/chartpulse/internal/api"
	"github.com/tduarte/chartpulse/internal/audit"
	"github.com/tduarte/chartpulse/internal/config"
	"github.com/tduarte/chartpulse/internal/history"
	"github.com/tduarte/chartpulse/internal/insights"
	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/narrative"
	"github.com/tduarte/chartpulse/internal/snapshot"
	"github.com/tduarte/chartpulse/internal/storage"
	"github.com/tduarte/chartpulse/internal/supervisor"
)

// bundleCacheDuration is how long a generated bundle counts as fresh by
// age alone. A day plus slack, so a daily bundle survives until its next
// scheduled cycle without flapping to stale.
const bundleCacheDuration = 25 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("in_memory_storage", cfg.Storage.InMemory).
		Msg("ChartPulse starting")

	territories, err := cfg.TrackedTerritories()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid territory configuration")
	}
	periods, err := cfg.TrackedPeriods()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid period configuration")
	}
	location, err := time.LoadLocation(cfg.Insights.Timezone)
	if err != nil {
		logging.Fatal().Err(err).Str("timezone", cfg.Insights.Timezone).Msg("Invalid timezone")
	}

	db, err := openBadger(cfg)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open storage")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	// Pipeline wiring: feed -> builder -> analysis -> alerting -> narrative -> store.
	provider := snapshot.NewHTTPProvider(cfg.Feed)
	builder := snapshot.NewBuilder(history.NewBadgerLedger(db), cfg.Analysis.Momentum)
	engine := analysis.NewEngine(cfg.Analysis, nil)
	alerts := alerting.NewEngine(cfg.Analysis, nil)
	store := storage.NewBadgerStore(db, bundleCacheDuration, nil)

	// The narrative client is safe to construct unconfigured; Generate
	// then reports ErrNotConfigured and the orchestrator degrades to
	// analytics-only bundles.
	gen := narrative.NewClient(cfg.Narrative)

	orch := insights.NewOrchestrator(
		insights.Config{
			Territories:     territories,
			Periods:         periods,
			Retention:       time.Duration(cfg.Insights.RetentionDays) * 24 * time.Hour,
			CleanupInterval: cfg.Insights.CleanupInterval,
			PollInterval:    cfg.Insights.PollInterval,
			Location:        location,
		},
		provider, builder, engine, alerts, gen, store, nil,
	)

	trail := audit.NewTrail(1000, nil)
	handler := api.NewHandler(orch, store, alerts, trail)
	router := api.NewRouter(handler, &api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.API.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.API.RateLimitReqs,
		RateLimitWindow:    cfg.API.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(insights.NewPollerService(orch))
	tree.AddPipelineService(insights.NewCleanupService(orch))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().
		Str("addr", server.Addr).
		Int("territories", len(territories)).
		Int("periods", len(periods)).
		Msg("ChartPulse ready")

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor terminated with error")
		os.Exit(1)
	}

	logging.Info().Msg("ChartPulse stopped")
}

// openBadger opens the shared Badger database for the history ledger and
// the bundle store.
func openBadger(cfg *config.Config) (*badger.DB, error) {
	var opts badger.Options
	if cfg.Storage.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Storage.Path)
	}
	// Badger logs through its own interface; silence it in favor of our
	// structured logs.
	opts = opts.WithLogger(nil)
	return badger.Open(opts)
}

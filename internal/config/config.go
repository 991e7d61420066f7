// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package config loads and validates the ChartPulse configuration from
// layered sources: built-in defaults, an optional YAML file, then
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tduarte/chartpulse/internal/models"
	"github.com/tduarte/chartpulse/internal/narrative"
	"github.com/tduarte/chartpulse/internal/snapshot"
	"github.com/tduarte/chartpulse/internal/storage"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig            `koanf:"server"`
	Storage   StorageConfig           `koanf:"storage"`
	Feed      snapshot.ProviderConfig `koanf:"feed"`
	Narrative narrative.ClientConfig  `koanf:"narrative"`
	Analysis  models.AnalysisConfig   `koanf:"analysis"`
	Insights  InsightsConfig          `koanf:"insights"`
	API       APIConfig               `koanf:"api"`
	Logging   LoggingConfig           `koanf:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// StorageConfig configures the Badger database.
type StorageConfig struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// InsightsConfig configures the orchestrator.
type InsightsConfig struct {
	// Territories and Periods select which charts this deployment tracks.
	Territories []string `koanf:"territories"`
	Periods     []string `koanf:"periods"`

	// RetentionDays bounds how long generated bundles are kept.
	RetentionDays int `koanf:"retention_days" validate:"min=1"`

	// CleanupInterval is how often the retention loop runs.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// PollInterval is how often the cadence poller checks ShouldUpdate.
	PollInterval time.Duration `koanf:"poll_interval"`

	// Timezone anchors the update schedule.
	Timezone string `koanf:"timezone"`
}

// APIConfig configures the API middleware.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, overridden by config file
// and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8480,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path:     "/data/chartpulse",
			InMemory: false,
		},
		Feed:      snapshot.DefaultProviderConfig(),
		Narrative: narrative.DefaultClientConfig(),
		Analysis:  models.DefaultAnalysisConfig(),
		Insights: InsightsConfig{
			Territories:     territoryStrings(),
			Periods:         periodStrings(),
			RetentionDays:   int(storage.DefaultRetention.Hours() / 24),
			CleanupInterval: 6 * time.Hour,
			PollInterval:    15 * time.Minute,
			Timezone:        "America/Argentina/Buenos_Aires",
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

func territoryStrings() []string {
	all := models.AllTerritories()
	out := make([]string, len(all))
	for i, t := range all {
		out[i] = string(t)
	}
	return out
}

func periodStrings() []string {
	all := models.AllPeriods()
	out := make([]string, len(all))
	for i, p := range all {
		out[i] = string(p)
	}
	return out
}

// TrackedTerritories parses the configured territory list.
func (c *Config) TrackedTerritories() ([]models.Territory, error) {
	out := make([]models.Territory, 0, len(c.Insights.Territories))
	for _, s := range c.Insights.Territories {
		t, err := models.ParseTerritory(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// TrackedPeriods parses the configured period list.
func (c *Config) TrackedPeriods() ([]models.Period, error) {
	out := make([]models.Period, 0, len(c.Insights.Periods))
	for _, s := range c.Insights.Periods {
		p, err := models.ParsePeriod(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Validate checks tagged constraints plus the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := c.TrackedTerritories(); err != nil {
		return fmt.Errorf("insights.territories: %w", err)
	}
	if _, err := c.TrackedPeriods(); err != nil {
		return fmt.Errorf("insights.periods: %w", err)
	}
	if len(c.Insights.Territories) == 0 || len(c.Insights.Periods) == 0 {
		return fmt.Errorf("insights must track at least one territory and one period")
	}

	if _, err := time.LoadLocation(c.Insights.Timezone); err != nil {
		return fmt.Errorf("insights.timezone: %w", err)
	}

	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required unless storage.in_memory is set")
	}

	// The narrative service is optional, but a half-configured one is a
	// deployment mistake.
	if (c.Narrative.BaseURL == "") != (c.Narrative.APIKey == "") {
		return fmt.Errorf("narrative.base_url and narrative.api_key must be set together")
	}

	if c.Analysis.CatalogSize <= 0 || c.Analysis.TopNDefault <= 0 {
		return fmt.Errorf("analysis.catalog_size and analysis.top_n_default must be positive")
	}

	return nil
}

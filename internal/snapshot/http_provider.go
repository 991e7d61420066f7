// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/models"
)

// maxErrorBodySize caps how much of an upstream error body is read back
// for diagnostics.
const maxErrorBodySize = 64 * 1024

// ProviderConfig configures the HTTP chart feed client.
type ProviderConfig struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// MaxRetries bounds rate-limit and transient-failure retries;
	// RetryBaseDelay doubles on each attempt.
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RatePerMinute throttles outbound feed calls across all keys.
	RatePerMinute int `koanf:"rate_per_minute"`

	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// DefaultProviderConfig returns working defaults; BaseURL must be supplied
// by configuration.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:         30 * time.Second,
		MaxRetries:      5,
		RetryBaseDelay:  time.Second,
		RatePerMinute:   30,
		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	}
}

// HTTPProvider fetches snapshots from the chart feed REST API.
//
// Resilience:
//   - outbound calls throttled to the configured per-minute rate
//   - exponential backoff on HTTP 429 and 5xx (1s, 2s, 4s, 8s, 16s),
//     honoring Retry-After when present
//   - circuit breaker opening after consecutive failed fetches
//   - every wait is context-cancellable
//
// Safe for concurrent use.
type HTTPProvider struct {
	cfg     ProviderConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*Snapshot]
}

// NewHTTPProvider builds a feed client from configuration.
func NewHTTPProvider(cfg ProviderConfig) *HTTPProvider {
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = DefaultProviderConfig().RatePerMinute
	}

	settings := gobreaker.Settings{
		Name:    "chart-feed",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("chart feed circuit breaker state change")
		},
	}

	return &HTTPProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1),
		breaker: gobreaker.NewCircuitBreaker[*Snapshot](settings),
	}
}

// Fetch retrieves the current snapshot for the key. The limiter wait sits
// outside the breaker so throttling never counts as a feed failure.
func (p *HTTPProvider) Fetch(ctx context.Context, territory models.Territory, period models.Period) (*Snapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed rate limiter: %w", err)
	}
	return p.breaker.Execute(func() (*Snapshot, error) {
		return p.fetch(ctx, territory, period)
	})
}

// snapshotWire is the feed's response envelope. Dates arrive as RFC 3339
// strings and are parsed into the canonical Snapshot.
type snapshotWire struct {
	Territory   string  `json:"territory"`
	Period      string  `json:"period"`
	Date        string  `json:"date"`
	LastUpdated string  `json:"last_updated"`
	Entries     []Entry `json:"entries"`
}

func (p *HTTPProvider) fetch(ctx context.Context, territory models.Territory, period models.Period) (*Snapshot, error) {
	q := url.Values{}
	q.Set("apikey", p.cfg.APIKey)
	reqURL := fmt.Sprintf("%s/v1/charts/%s/%s?%s", p.cfg.BaseURL, territory, period, q.Encode())

	resp, err := p.doWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("chart feed returned HTTP %d: %s", resp.StatusCode, body)
	}

	var wire snapshotWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode chart feed response: %w", err)
	}
	return p.fromWire(&wire, territory, period)
}

func (p *HTTPProvider) fromWire(wire *snapshotWire, territory models.Territory, period models.Period) (*Snapshot, error) {
	if len(wire.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrEmptySnapshot, territory, period)
	}

	// The feed echoes the key back; trust the requested one but log a
	// mismatch, it indicates a routing problem upstream.
	if wire.Territory != "" {
		if echoed, err := models.ParseTerritory(wire.Territory); err != nil || echoed != territory {
			logging.Warn().Str("requested", string(territory)).Str("echoed", wire.Territory).
				Msg("chart feed echoed a different territory")
		}
	}

	date, err := time.Parse(time.RFC3339, wire.Date)
	if err != nil {
		return nil, fmt.Errorf("chart feed returned unparseable date %q: %w", wire.Date, err)
	}

	lastUpdated := date
	if wire.LastUpdated != "" {
		if v, err := time.Parse(time.RFC3339, wire.LastUpdated); err == nil {
			lastUpdated = v
		}
	}

	return &Snapshot{
		Territory:   territory,
		Period:      period,
		Date:        date,
		LastUpdated: lastUpdated,
		Entries:     wire.Entries,
	}, nil
}

// doWithRetry performs the GET, retrying HTTP 429 and 5xx with exponential
// backoff. Transport errors are retried the same way since the feed sits
// behind a load balancer that occasionally drops connections mid-deploy.
func (p *HTTPProvider) doWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := p.client.Do(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		var delay time.Duration
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if d, perr := time.ParseDuration(retryAfter + "s"); perr == nil {
					delay = d
				}
			}
			_ = resp.Body.Close()
		}

		if attempt == p.cfg.MaxRetries {
			break
		}
		if delay == 0 {
			delay = p.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt))
		}

		logging.Debug().Str("url", reqURL).Int("attempt", attempt+1).
			Dur("delay", delay).AnErr("cause", lastErr).
			Msg("retrying chart feed fetch")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %v (after %d retries)", ErrUpstreamUnavailable, lastErr, p.cfg.MaxRetries)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// readBodyForError reads at most maxErrorBodySize bytes for diagnostics.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package narrative

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/models"
)

// ClientConfig configures the HTTP narrative client.
type ClientConfig struct {
	// BaseURL is the generation endpoint. Empty means not configured.
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`

	Timeout     time.Duration `koanf:"timeout"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature float64       `koanf:"temperature"`

	// RatePerMinute throttles outbound generation calls.
	RatePerMinute int `koanf:"rate_per_minute"`

	// BreakerFailures trips the circuit after this many consecutive
	// failures.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// DefaultClientConfig returns working defaults; BaseURL and APIKey must be
// supplied by configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Model:           "chartpulse-narrative-1",
		Timeout:         60 * time.Second,
		MaxTokens:       4000,
		Temperature:     0.3,
		RatePerMinute:   10,
		BreakerFailures: 3,
		BreakerTimeout:  2 * time.Minute,
	}
}

// Client calls the narrative service over HTTP with circuit breaking, rate
// limiting and strict response validation.
type Client struct {
	cfg      ClientConfig
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*Insights]
	limiter  *rate.Limiter
	validate *validator.Validate
	now      func() time.Time
}

// NewClient builds a narrative client. The client is usable even when
// unconfigured; Generate then returns ErrNotConfigured immediately.
func NewClient(cfg ClientConfig) *Client {
	settings := gobreaker.Settings{
		Name:    "narrative",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("narrative circuit breaker state change")
		},
	}

	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 10
	}

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		breaker:  gobreaker.NewCircuitBreaker[*Insights](settings),
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60), 1),
		validate: validator.New(),
		now:      time.Now,
	}
}

// Configured reports whether the client has an endpoint to call.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

type generateRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Analysis    json.RawMessage `json:"analysis"`
}

type generateResponse struct {
	Content json.RawMessage `json:"content"`
}

// Generate requests a narrative for the bundle. Failures map onto the
// pipeline error taxonomy: unconfigured service short-circuits, schema
// violations surface as ErrMalformedResponse, transport errors pass
// through for retry handling upstream.
func (c *Client) Generate(ctx context.Context, bundle *models.AnalysisBundle) (*Insights, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("narrative rate limit: %w", err)
	}

	return c.breaker.Execute(func() (*Insights, error) {
		return c.generate(ctx, bundle)
	})
}

func (c *Client) generate(ctx context.Context, bundle *models.AnalysisBundle) (*Insights, error) {
	analysis, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Analysis:    analysis,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("narrative request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain for connection reuse.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, fmt.Errorf("narrative service returned %d", resp.StatusCode)
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	insights, err := c.parseInsights(envelope.Content)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("territory", string(bundle.Territory)).
		Str("period", string(bundle.Period)).
		Int("findings", len(insights.KeyFindings)).
		Msg("narrative generated")

	return insights, nil
}

// parseInsights decodes and strictly validates the generated JSON. Model
// output is untrusted input: any schema violation rejects the whole
// payload.
func (c *Client) parseInsights(content []byte) (*Insights, error) {
	var insights Insights
	if err := json.Unmarshal(content, &insights); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if insights.ExecutiveSummary == "" {
		return nil, fmt.Errorf("%w: empty executive summary", ErrMalformedResponse)
	}
	if err := c.validate.Struct(&insights); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	insights.GeneratedAt = c.now()
	return &insights, nil
}

// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

// Package snapshot fetches ranked chart snapshots from the upstream feed
// and turns raw entries into fully derived track records: position and
// stream deltas, ledger-based debut/re-entry/exit classification, peak and
// run longevity, speed, acceleration and the momentum score. The builder
// is the only writer of the history ledger.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/tduarte/chartpulse/internal/models"
)

var (
	// ErrEmptySnapshot marks an upstream response carrying zero entries.
	ErrEmptySnapshot = errors.New("snapshot: upstream returned no entries")

	// ErrUpstreamUnavailable wraps transport failures and upstream 5xx
	// responses after retries are exhausted.
	ErrUpstreamUnavailable = errors.New("snapshot: upstream unavailable")
)

// Entry is one raw chart row as delivered by the upstream feed, before any
// derivation. Optional numerics are pointers so an absent value survives
// the trip through JSON.
type Entry struct {
	TrackID          string `json:"track_id"`
	TrackName        string `json:"track_name"`
	Artists          string `json:"artists"`
	Position         int    `json:"position"`
	PreviousPosition *int   `json:"previous_position,omitempty"`
	Streams          *int64 `json:"streams,omitempty"`

	// Classification flags as computed upstream. The ledger's own history
	// wins; these are trusted only when it has nothing to diff against.
	IsNewEntry bool `json:"is_new_entry,omitempty"`
	IsReEntry  bool `json:"is_re_entry,omitempty"`
	IsNewPeak  bool `json:"is_new_peak,omitempty"`

	// Catalog enrichment, passed through untouched.
	Genres            []string `json:"genres,omitempty"`
	Label             string   `json:"label,omitempty"`
	Distributor       string   `json:"distributor,omitempty"`
	MainArtistCountry string   `json:"main_artist_country,omitempty"`
	MainArtistCity    string   `json:"main_artist_city,omitempty"`

	// Social reach at snapshot time.
	SpotifyFollowers *int64   `json:"spotify_followers,omitempty"`
	IGFollowers      *int64   `json:"ig_followers,omitempty"`
	TikTokFollowers  *int64   `json:"tiktok_followers,omitempty"`
	EngagementRate   *float64 `json:"engagement_rate,omitempty"`
}

// Snapshot is one fetched chart: the key, the publication instant reported
// upstream, and the position-ordered entries.
type Snapshot struct {
	Territory   models.Territory `json:"territory"`
	Period      models.Period    `json:"period"`
	Date        time.Time        `json:"date"`
	LastUpdated time.Time        `json:"last_updated"`
	Entries     []Entry          `json:"entries"`
}

// Provider fetches the current snapshot for one (territory, period) key.
// Implementations must be safe for concurrent use.
type Provider interface {
	Fetch(ctx context.Context, territory models.Territory, period models.Period) (*Snapshot, error)
}

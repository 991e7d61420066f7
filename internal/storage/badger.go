// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tduarte/chartpulse/internal/alerting"
	"github.com/tduarte/chartpulse/internal/logging"
	"github.com/tduarte/chartpulse/internal/models"
)

const bundleKeyPrefix = "insights:"

// BadgerStore implements Store on BadgerDB for durable insights across
// restarts.
type BadgerStore struct {
	db            *badger.DB
	cacheDuration time.Duration
	now           func() time.Time
}

// NewBadgerStore creates a BadgerDB-backed store. The cache duration
// bounds how long a bundle is served without the explicit stale flag; the
// reporting cadence staleness window is the usual choice. A nil clock
// means time.Now.
func NewBadgerStore(db *badger.DB, cacheDuration time.Duration, now func() time.Time) *BadgerStore {
	if now == nil {
		now = time.Now
	}
	return &BadgerStore{db: db, cacheDuration: cacheDuration, now: now}
}

func bundleKey(territory models.Territory, period models.Period) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", bundleKeyPrefix, territory, period))
}

func (s *BadgerStore) Get(ctx context.Context, territory models.Territory, period models.Period) (*Bundle, error) {
	var b Bundle

	err := s.db.View(func(txn *badger.Txn) error {
		return readBundle(txn, territory, period, &b)
	})
	if err != nil {
		return nil, err
	}

	computeStale(&b, s.cacheDuration, s.now())
	return &b, nil
}

func (s *BadgerStore) Put(ctx context.Context, b *Bundle) error {
	stored := *b
	stored.Invalidated = false
	stored.Stale = false

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(bundleKey(b.Territory, b.Period), data); err != nil {
			return fmt.Errorf("set bundle: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) Update(ctx context.Context, territory models.Territory, period models.Period, fresh *models.AnalysisBundle) (bool, error) {
	var significant bool

	err := s.db.Update(func(txn *badger.Txn) error {
		var b Bundle
		if err := readBundle(txn, territory, period, &b); err != nil {
			return err
		}

		significant = hasSignificantChanges(b.Analysis, fresh)
		if !significant {
			return nil
		}

		b.Invalidated = true
		return writeBundle(txn, &b)
	})
	if err != nil {
		return false, err
	}

	if significant {
		logging.Info().
			Str("territory", string(territory)).
			Str("period", string(period)).
			Msg("significant data change, cached insights invalidated")
	}
	return significant, nil
}

func (s *BadgerStore) Invalidate(ctx context.Context, territory models.Territory, period models.Period) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var b Bundle
		if err := readBundle(txn, territory, period, &b); err != nil {
			return err
		}
		b.Invalidated = true
		return writeBundle(txn, &b)
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// AcknowledgeAlerts runs the full read-modify-write inside one Badger
// update transaction, keeping alert state single-writer.
func (s *BadgerStore) AcknowledgeAlerts(ctx context.Context, territory models.Territory, period models.Period, ids []string, at time.Time) (int, error) {
	var acked int

	err := s.db.Update(func(txn *badger.Txn) error {
		var b Bundle
		if err := readBundle(txn, territory, period, &b); err != nil {
			return err
		}

		updated := alerting.AcknowledgeAlerts(ids, b.Alerts, at)
		for i := range updated {
			if updated[i].Acknowledged && !b.Alerts[i].Acknowledged {
				acked++
			}
		}
		if acked == 0 {
			return nil
		}

		b.Alerts = updated
		return writeBundle(txn, &b)
	})
	if err != nil {
		return 0, err
	}
	return acked, nil
}

func (s *BadgerStore) List(ctx context.Context) ([]BundleInfo, error) {
	var out []BundleInfo
	now := s.now()

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(bundleKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var b Bundle
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				return fmt.Errorf("decode bundle: %w", err)
			}
			computeStale(&b, s.cacheDuration, now)
			out = append(out, BundleInfo{
				Territory:   b.Territory,
				Period:      b.Period,
				Date:        b.Date,
				GeneratedAt: b.GeneratedAt,
				Stale:       b.Stale,
				AlertCount:  len(b.Alerts),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	var victims [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(bundleKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var b Bundle
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				return fmt.Errorf("decode bundle: %w", err)
			}
			if b.GeneratedAt.Before(cutoff) {
				victims = append(victims, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan bundles: %w", err)
	}

	if len(victims) == 0 {
		return 0, nil
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range victims {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete bundle: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.Info().Int("removed", len(victims)).Msg("insights retention cleanup")
	return len(victims), nil
}

func readBundle(txn *badger.Txn, territory models.Territory, period models.Period, b *Bundle) error {
	item, err := txn.Get(bundleKey(territory, period))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, territory, period)
	}
	if err != nil {
		return fmt.Errorf("get bundle: %w", err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, b); err != nil {
			return fmt.Errorf("decode bundle: %w", err)
		}
		return nil
	})
}

func writeBundle(txn *badger.Txn, b *Bundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	if err := txn.Set(bundleKey(b.Territory, b.Period), data); err != nil {
		return fmt.Errorf("set bundle: %w", err)
	}
	return nil
}

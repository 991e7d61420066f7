// ChartPulse - Music Chart Analytics and Alerting
// Copyright 2026 Tomas D. (tduarte)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tduarte/chartpulse

package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tduarte/chartpulse/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	chartKeyPrefix = "chart:"
	seqKeyPrefix   = "chartseq:"
	statKeyPrefix  = "trackstat:"
)

// BadgerLedger implements Ledger on BadgerDB for durable history across
// restarts.
type BadgerLedger struct {
	db *badger.DB
}

// NewBadgerLedger creates a BadgerDB-backed ledger.
func NewBadgerLedger(db *badger.DB) *BadgerLedger {
	return &BadgerLedger{db: db}
}

func chartPrefix(territory models.Territory, period models.Period) string {
	return fmt.Sprintf("%s%s:%s:", chartKeyPrefix, territory, period)
}

// chartKey zero-pads the sequence so lexicographic key order matches
// recording order and reverse iteration yields newest first.
func chartKey(territory models.Territory, period models.Period, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%012d", chartPrefix(territory, period), seq))
}

func seqKey(territory models.Territory, period models.Period) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", seqKeyPrefix, territory, period))
}

func statKey(territory models.Territory, period models.Period, trackID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", statKeyPrefix, territory, period, trackID))
}

// Record appends one membership, assigning the next sequence number in the
// same transaction so concurrent recorders cannot collide.
func (l *BadgerLedger) Record(ctx context.Context, territory models.Territory, period models.Period, m Membership) error {
	return l.db.Update(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get(seqKey(territory, period))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			seq = 1
		case err != nil:
			return fmt.Errorf("get sequence: %w", err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &seq)
			}); err != nil {
				return fmt.Errorf("decode sequence: %w", err)
			}
			seq++
		}

		m.Seq = seq
		data, err := json.Marshal(&m)
		if err != nil {
			return fmt.Errorf("marshal membership: %w", err)
		}

		if err := txn.Set(chartKey(territory, period, seq), data); err != nil {
			return fmt.Errorf("set membership: %w", err)
		}

		seqData, err := json.Marshal(seq)
		if err != nil {
			return fmt.Errorf("marshal sequence: %w", err)
		}
		if err := txn.Set(seqKey(territory, period), seqData); err != nil {
			return fmt.Errorf("set sequence: %w", err)
		}
		return nil
	})
}

// Last returns up to n memberships, newest first.
func (l *BadgerLedger) Last(ctx context.Context, territory models.Territory, period models.Period, n int) ([]Membership, error) {
	var out []Membership

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chartPrefix(territory, period))
		// Reverse iteration seeks to the last possible key under the prefix.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < n; it.Next() {
			var m Membership
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode membership: %w", err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoHistory
	}
	return out, nil
}

// StatsFor fetches running stats for the given track ids.
func (l *BadgerLedger) StatsFor(ctx context.Context, territory models.Territory, period models.Period, ids []string) (map[string]TrackStats, error) {
	out := make(map[string]TrackStats, len(ids))

	err := l.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(statKey(territory, period, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get stats %s: %w", id, err)
			}
			var s TrackStats
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return fmt.Errorf("decode stats %s: %w", id, err)
			}
			out[id] = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutStats upserts running stats after a cycle.
func (l *BadgerLedger) PutStats(ctx context.Context, territory models.Territory, period models.Period, stats []TrackStats) error {
	return l.db.Update(func(txn *badger.Txn) error {
		for i := range stats {
			data, err := json.Marshal(&stats[i])
			if err != nil {
				return fmt.Errorf("marshal stats %s: %w", stats[i].TrackID, err)
			}
			if err := txn.Set(statKey(territory, period, stats[i].TrackID), data); err != nil {
				return fmt.Errorf("set stats %s: %w", stats[i].TrackID, err)
			}
		}
		return nil
	})
}

// Prune drops memberships beyond the newest keep entries.
func (l *BadgerLedger) Prune(ctx context.Context, territory models.Territory, period models.Period, keep int) (int, error) {
	var victims [][]byte

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(chartPrefix(territory, period))
		seek := append(append([]byte{}, prefix...), 0xff)
		n := 0
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			n++
			if n <= keep {
				continue
			}
			victims = append(victims, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan history: %w", err)
	}

	if len(victims) == 0 {
		return 0, nil
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		for _, key := range victims {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete membership: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(victims), nil
}

// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package store

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/undersounds/stats-service/internal/config"
	"github.com/undersounds/stats-service/internal/models"
)

const snapshotKeyPrefix = "kpi/artist/"

// SnapshotStore holds precomputed per-artist MetricTotals in badger.
// It is a fast path only: a missing snapshot is never an error, callers
// fall back to zero totals or to recomputation.
type SnapshotStore struct {
	db *badger.DB
}

// OpenSnapshots opens the badger-backed snapshot store. An empty path
// opens an in-memory store.
func OpenSnapshots(cfg *config.SnapshotConfig) (*SnapshotStore, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// ArtistTotals returns the stored snapshot for an artist, or nil when
// none exists.
func (s *SnapshotStore) ArtistTotals(artistID string) (*models.MetricTotals, error) {
	var totals *models.MetricTotals
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKeyPrefix + artistID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var t models.MetricTotals
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("decode snapshot for %s: %w", artistID, err)
			}
			totals = &t
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot lookup for %s: %w", artistID, err)
	}
	return totals, nil
}

// PutArtistTotals stores or replaces an artist's snapshot.
func (s *SnapshotStore) PutArtistTotals(totals models.MetricTotals) error {
	raw, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", totals.ArtistID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKeyPrefix+totals.ArtistID), raw)
	})
	if err != nil {
		return fmt.Errorf("store snapshot for %s: %w", totals.ArtistID, err)
	}
	return nil
}

// Close releases the badger store.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

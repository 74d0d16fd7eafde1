// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package store provides read access to the append-only engagement event
// log (DuckDB) and to the precomputed per-artist KPI snapshots (badger).
//
// The event log is the only source of truth for windowed queries; the
// snapshot store is a fast path consulted only when no explicit window
// is requested.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/undersounds/stats-service/internal/config"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/models"
)

// ErrStoreUnavailable indicates the event store cannot be reached. It is
// fatal for the calling request: windowed aggregations have no local
// fallback.
var ErrStoreUnavailable = errors.New("event store unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          VARCHAR PRIMARY KEY,
	entity_id   VARCHAR NOT NULL,
	entity_type VARCHAR NOT NULL,
	event_type  VARCHAR NOT NULL,
	user_id     VARCHAR NOT NULL,
	genre       VARCHAR NOT NULL DEFAULT '',
	artist_id   VARCHAR NOT NULL DEFAULT '',
	amount      DOUBLE  NOT NULL DEFAULT 0,
	metadata    VARCHAR NOT NULL DEFAULT '',
	ts          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts);
CREATE INDEX IF NOT EXISTS idx_events_artist ON events (artist_id);
CREATE INDEX IF NOT EXISTS idx_events_user ON events (user_id);
`

// DB wraps the DuckDB connection holding the event log.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the DuckDB event store and ensures the schema
// exists. An empty path opens an in-memory database.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	connStr := ""
	if cfg.Path != "" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, threads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).Msg("Event store opened")
	return &DB{conn: conn}, nil
}

// Ping verifies the event store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InsertEvents appends events to the log. The stats core never calls
// this on the request path; it exists for the ingest boundary shared
// with upstream producers and for tests.
func (db *DB) InsertEvents(ctx context.Context, events []models.Event) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, entity_id, entity_type, event_type, user_id, genre, artist_id, amount, metadata, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range events {
		e := &events[i]
		meta := ""
		if len(e.Metadata) > 0 {
			raw, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for event %s: %w", e.ID, err)
			}
			meta = string(raw)
		}
		amount, _ := e.Amount.Float64()
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.EntityID, e.EntityType, e.EventType, e.UserID,
			e.Genre, e.ArtistID, amount, meta, e.Timestamp.UTC()); err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListArtistIDs returns the distinct artist ids present in the event
// log. Used by the snapshot refresh worker.
func (db *DB) ListArtistIDs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT artist_id FROM events WHERE artist_id <> '' ORDER BY artist_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan artist id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ids, nil
}

// windowConditions appends WHERE fragments and args for a time window.
func windowConditions(w models.Window, conds []string, args []interface{}) ([]string, []interface{}) {
	if w.Since != nil {
		conds = append(conds, "ts >= ?")
		args = append(args, w.Since.UTC())
	}
	if w.Until != nil {
		conds = append(conds, "ts <= ?")
		args = append(args, w.Until.UTC())
	}
	return conds, args
}

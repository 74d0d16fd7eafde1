// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package aggregate turns raw event filters into ranked, deterministic
// aggregation results. All heavy lifting happens inside the event store;
// this package owns window resolution, the period->days policy and the
// snapshot fast path for artist totals.
package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/metrics"
	"github.com/undersounds/stats-service/internal/models"
	"github.com/undersounds/stats-service/internal/store"
)

// ErrInvalidLimit rejects non-positive result limits.
var ErrInvalidLimit = errors.New("aggregate: limit must be at least 1")

// EventStore is the read-only slice of the event log the engine needs.
type EventStore interface {
	AggregateCount(ctx context.Context, filter store.CountFilter, groupBy string, window models.Window, limit int) ([]models.GroupCount, error)
	AggregateSums(ctx context.Context, artistID string, window models.Window) (models.MetricTotals, error)
}

// SnapshotReader looks up precomputed per-artist totals.
type SnapshotReader interface {
	ArtistTotals(artistID string) (*models.MetricTotals, error)
}

// Engine computes per-entity and per-group metrics over time windows.
type Engine struct {
	events    EventStore
	snapshots SnapshotReader
}

// New creates an aggregation engine over the given stores.
func New(events EventStore, snapshots SnapshotReader) *Engine {
	return &Engine{events: events, snapshots: snapshots}
}

// periodDays is the single canonical period->days map. The historical
// API computed this mapping independently per endpoint with slightly
// different contents; every caller now goes through this one.
var periodDays = map[string]int{
	"day":   1,
	"week":  7,
	"month": 30,
	"year":  365,
}

const defaultPeriodDaysBack = 7

// WindowForPeriod maps a named period onto a window ending now. Unknown
// period names silently fall back to 7 days; clients have always relied
// on that behavior, so it must not become an error.
func WindowForPeriod(period string, now time.Time) models.Window {
	days, ok := periodDays[period]
	if !ok {
		days = defaultPeriodDaysBack
	}
	return models.SinceTime(now.AddDate(0, 0, -days))
}

// TopEntities groups events of the given entity type within the window,
// counts occurrences per entity, and returns the top limit entities
// sorted descending by count with ties broken by ascending entity id.
// An empty event set yields an empty slice.
func (e *Engine) TopEntities(ctx context.Context, entityType string, window models.Window, limit int) ([]models.RankedEntity, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	metrics.AggregationQueries.WithLabelValues("top_entities").Inc()

	counts, err := e.events.AggregateCount(ctx, store.CountFilter{EntityType: entityType}, store.GroupByEntity, window, limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]models.RankedEntity, len(counts))
	for i, gc := range counts {
		ranked[i] = models.RankedEntity{EntityID: gc.Key, MetricValue: gc.Count}
	}
	return ranked, nil
}

// TrendingGroups groups events matching the filter by the given column
// (typically genre) and ranks groups by event count, same ordering
// contract as TopEntities.
func (e *Engine) TrendingGroups(ctx context.Context, groupBy string, filter store.CountFilter, window models.Window, limit int) ([]models.GroupCount, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	metrics.AggregationQueries.WithLabelValues("trending_groups").Inc()

	return e.events.AggregateCount(ctx, filter, groupBy, window, limit)
}

// ArtistTotals returns engagement totals for an artist. With an explicit
// window it always recomputes from the event log (freshness over speed).
// Without one it prefers the precomputed snapshot and falls back to
// zero-valued totals when no snapshot exists; a missing or unreadable
// snapshot never fails the request.
func (e *Engine) ArtistTotals(ctx context.Context, artistID string, window models.Window) (models.MetricTotals, error) {
	if err := window.Validate(); err != nil {
		return models.MetricTotals{}, err
	}

	if !window.IsZero() {
		metrics.AggregationQueries.WithLabelValues("artist_totals").Inc()
		return e.events.AggregateSums(ctx, artistID, window)
	}

	snapshot, err := e.snapshots.ArtistTotals(artistID)
	if err != nil {
		metrics.SnapshotHits.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Str("artist_id", artistID).Msg("Snapshot lookup failed, serving zero totals")
		return models.ZeroTotals(artistID), nil
	}
	if snapshot == nil {
		metrics.SnapshotHits.WithLabelValues("miss").Inc()
		return models.ZeroTotals(artistID), nil
	}
	metrics.SnapshotHits.WithLabelValues("hit").Inc()
	return *snapshot, nil
}

// exportLimit caps export result sets, matching the historical API.
const exportLimit = 10000

// ExportCounts groups all events in the window by entity id. Feeds the
// CSV/JSON export boundary; no entity-type filter is applied.
func (e *Engine) ExportCounts(ctx context.Context, window models.Window) ([]models.GroupCount, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	metrics.AggregationQueries.WithLabelValues("export").Inc()

	return e.events.AggregateCount(ctx, store.CountFilter{}, store.GroupByEntity, window, exportLimit)
}

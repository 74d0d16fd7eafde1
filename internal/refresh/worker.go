// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package refresh

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/metrics"
	"github.com/undersounds/stats-service/internal/models"
)

// EventSource enumerates artists and recomputes their all-time totals.
type EventSource interface {
	ListArtistIDs(ctx context.Context) ([]string, error)
	AggregateSums(ctx context.Context, artistID string, window models.Window) (models.MetricTotals, error)
}

// SnapshotWriter persists recomputed totals.
type SnapshotWriter interface {
	PutArtistTotals(totals models.MetricTotals) error
}

// Worker consumes refresh jobs and rebuilds every artist's KPI snapshot
// from the event log.
type Worker struct {
	queue     *Queue
	events    EventSource
	snapshots SnapshotWriter
}

// NewWorker wires a worker to its queue and stores.
func NewWorker(queue *Queue, events EventSource, snapshots SnapshotWriter) *Worker {
	return &Worker{queue: queue, events: events, snapshots: snapshots}
}

// Run consumes jobs until ctx is cancelled. Job failures are logged and
// counted, never fatal; the next job starts from scratch.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.queue.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe refresh queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.handle(ctx, msg.Payload)
			msg.Ack()
		}
	}
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		metrics.RefreshJobsProcessed.WithLabelValues("error").Inc()
		logging.Error().Err(err).Msg("Malformed refresh job payload")
		return
	}

	refreshed, err := w.refreshAll(ctx)
	if err != nil {
		metrics.RefreshJobsProcessed.WithLabelValues("error").Inc()
		logging.Error().Err(err).Str("job_id", job.ID).Msg("Refresh job failed")
		return
	}

	metrics.RefreshJobsProcessed.WithLabelValues("ok").Inc()
	logging.Info().
		Str("job_id", job.ID).
		Int("artists", refreshed).
		Msg("Refresh job completed")
}

// refreshAll recomputes all-time totals for every artist seen in the
// event log and stores them as snapshots. Per-artist errors abort the
// job; a half-written refresh is fine since snapshots are only a fast
// path over recomputable data.
func (w *Worker) refreshAll(ctx context.Context) (int, error) {
	artistIDs, err := w.events.ListArtistIDs(ctx)
	if err != nil {
		return 0, err
	}

	for i, artistID := range artistIDs {
		totals, err := w.events.AggregateSums(ctx, artistID, models.AllTime())
		if err != nil {
			return i, fmt.Errorf("recompute totals for %s: %w", artistID, err)
		}
		if err := w.snapshots.PutArtistTotals(totals); err != nil {
			return i, fmt.Errorf("store snapshot for %s: %w", artistID, err)
		}
	}
	return len(artistIDs), nil
}

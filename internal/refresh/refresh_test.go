// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/undersounds/stats-service/internal/config"
	"github.com/undersounds/stats-service/internal/models"
)

type stubEventSource struct {
	artistIDs []string

	mu      sync.Mutex
	sumsErr error
}

func (s *stubEventSource) ListArtistIDs(context.Context) ([]string, error) {
	return s.artistIDs, nil
}

func (s *stubEventSource) AggregateSums(_ context.Context, artistID string, _ models.Window) (models.MetricTotals, error) {
	s.mu.Lock()
	err := s.sumsErr
	s.mu.Unlock()
	if err != nil {
		return models.MetricTotals{}, err
	}
	totals := models.ZeroTotals(artistID)
	totals.Plays = int64(len(artistID))
	return totals, nil
}

func (s *stubEventSource) setErr(err error) {
	s.mu.Lock()
	s.sumsErr = err
	s.mu.Unlock()
}

type recordingSnapshots struct {
	mu     sync.Mutex
	stored map[string]models.MetricTotals
	done   chan struct{}
	want   int
}

func newRecordingSnapshots(want int) *recordingSnapshots {
	return &recordingSnapshots{
		stored: make(map[string]models.MetricTotals),
		done:   make(chan struct{}),
		want:   want,
	}
}

func (r *recordingSnapshots) PutArtistTotals(totals models.MetricTotals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored[totals.ArtistID] = totals
	if len(r.stored) == r.want {
		close(r.done)
	}
	return nil
}

func TestEnqueueAssignsJobID(t *testing.T) {
	q := NewQueue(&config.RefreshConfig{Buffer: 4})
	t.Cleanup(func() { _ = q.Close() })

	job, err := q.Enqueue(context.Background())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID == "" {
		t.Error("expected a job id")
	}
	if job.RequestedAt.IsZero() {
		t.Error("expected a request timestamp")
	}

	other, err := q.Enqueue(context.Background())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if other.ID == job.ID {
		t.Error("job ids must be unique")
	}
}

func TestWorkerProcessesRefreshJob(t *testing.T) {
	q := NewQueue(&config.RefreshConfig{Buffer: 4})
	t.Cleanup(func() { _ = q.Close() })

	events := &stubEventSource{artistIDs: []string{"a1", "a2", "long-artist"}}
	snapshots := newRecordingSnapshots(len(events.artistIDs))
	worker := NewWorker(q, events, snapshots)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = worker.Run(ctx) }()

	if _, err := q.Enqueue(ctx); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-snapshots.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process the refresh job in time")
	}

	snapshots.mu.Lock()
	defer snapshots.mu.Unlock()
	got, ok := snapshots.stored["long-artist"]
	if !ok {
		t.Fatal("expected snapshot for long-artist")
	}
	if got.Plays != int64(len("long-artist")) {
		t.Errorf("stored totals %+v", got)
	}
}

func TestWorkerSurvivesFailingJob(t *testing.T) {
	q := NewQueue(&config.RefreshConfig{Buffer: 4})
	t.Cleanup(func() { _ = q.Close() })

	events := &stubEventSource{artistIDs: []string{"a1"}, sumsErr: errors.New("store gone")}
	snapshots := newRecordingSnapshots(1)
	worker := NewWorker(q, events, snapshots)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = worker.Run(ctx) }()

	if _, err := q.Enqueue(ctx); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// The failed job must not kill the worker: heal the source and the
	// next job goes through.
	time.Sleep(50 * time.Millisecond)
	events.setErr(nil)
	if _, err := q.Enqueue(ctx); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-snapshots.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from a failed job")
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	q := NewQueue(&config.RefreshConfig{Buffer: 1})
	t.Cleanup(func() { _ = q.Close() })

	worker := NewWorker(q, &stubEventSource{}, newRecordingSnapshots(1))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}

// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/undersounds/stats-service/internal/catalog"
	"github.com/undersounds/stats-service/internal/models"
)

func ranked(ids ...string) []models.RankedEntity {
	items := make([]models.RankedEntity, len(ids))
	for i, id := range ids {
		items[i] = models.RankedEntity{EntityID: id, MetricValue: int64(len(ids) - i)}
	}
	return items
}

func TestEnrichPreservesOrderAndCount(t *testing.T) {
	lookup := func(_ context.Context, entityType, id string) (*catalog.Entity, error) {
		return &catalog.Entity{ID: id, Type: entityType, Title: "title-" + id}, nil
	}
	o := New(lookup, 4)

	items := ranked("a3", "a1", "a2")
	got := o.Enrich(context.Background(), "artist", items)

	if len(got) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(got))
	}
	for i, item := range items {
		if got[i].ID != item.EntityID {
			t.Errorf("position %d: got id %q, want %q", i, got[i].ID, item.EntityID)
		}
		if got[i].MetricValue != item.MetricValue {
			t.Errorf("position %d: metric %d, want %d", i, got[i].MetricValue, item.MetricValue)
		}
		if got[i].Title == nil || *got[i].Title != "title-"+item.EntityID {
			t.Errorf("position %d: title %v", i, got[i].Title)
		}
		if got[i].Type != "artist" {
			t.Errorf("position %d: type %q", i, got[i].Type)
		}
	}
}

func TestEnrichDegradesFailedItems(t *testing.T) {
	lookup := func(_ context.Context, entityType, id string) (*catalog.Entity, error) {
		if id == "a2" {
			return nil, catalog.ErrNotFound
		}
		return &catalog.Entity{ID: id, Type: entityType, Title: "t"}, nil
	}
	o := New(lookup, 2)

	got := o.Enrich(context.Background(), "artist", ranked("a1", "a2", "a3"))
	if got[0].Title == nil || got[2].Title == nil {
		t.Error("successful lookups must keep their titles")
	}
	if got[1].Title != nil {
		t.Errorf("failed lookup must yield nil title, got %q", *got[1].Title)
	}
}

func TestEnrichEmptyTitleIsAbsent(t *testing.T) {
	lookup := func(_ context.Context, entityType, id string) (*catalog.Entity, error) {
		return &catalog.Entity{ID: id, Type: entityType}, nil
	}
	got := New(lookup, 1).Enrich(context.Background(), "album", ranked("al1"))
	if got[0].Title != nil {
		t.Errorf("document without title fields must yield nil title, got %q", *got[0].Title)
	}
}

func TestEnrichShortCircuitsOnOpenCircuit(t *testing.T) {
	var attempts atomic.Int64
	lookup := func(_ context.Context, _, _ string) (*catalog.Entity, error) {
		attempts.Add(1)
		return nil, catalog.ErrCircuitOpen
	}
	// Sequential workers make the short-circuit deterministic: the first
	// rejection flags the batch, every later worker skips its lookup.
	o := New(lookup, 1)

	items := ranked("a1", "a2", "a3", "a4", "a5")
	got := o.Enrich(context.Background(), "artist", items)

	if len(got) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(got))
	}
	for i := range got {
		if got[i].Title != nil {
			t.Errorf("position %d: expected nil title", i)
		}
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("expected a single lookup attempt before short-circuit, got %d", n)
	}
}

func TestEnrichBoundsConcurrency(t *testing.T) {
	const limit = 3
	var mu sync.Mutex
	inFlight, peak := 0, 0

	lookup := func(_ context.Context, entityType, id string) (*catalog.Entity, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		defer func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
		return &catalog.Entity{ID: id, Type: entityType, Title: "t"}, nil
	}

	o := New(lookup, limit)
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("a%d", i)
	}
	o.Enrich(context.Background(), "artist", ranked(ids...))

	if peak > limit {
		t.Errorf("observed %d concurrent lookups, limit is %d", peak, limit)
	}
}

func TestEnrichEmptyInput(t *testing.T) {
	o := New(func(context.Context, string, string) (*catalog.Entity, error) {
		t.Fatal("lookup must not be called for an empty batch")
		return nil, nil
	}, 4)

	got := o.Enrich(context.Background(), "artist", nil)
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d items", len(got))
	}
}

// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package enrich joins locally computed rankings with catalog metadata.
// Remote failures never abort a batch: a failed lookup degrades that
// item to an absent title, and a known-open circuit short-circuits the
// remaining lookups so a down dependency costs at most one rejection.
package enrich

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/undersounds/stats-service/internal/catalog"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/metrics"
	"github.com/undersounds/stats-service/internal/models"
)

// LookupFunc resolves one entity id to catalog metadata. The production
// lookup is Client.GetEntity; tests inject stubs.
type LookupFunc func(ctx context.Context, entityType, id string) (*catalog.Entity, error)

// Orchestrator fans out catalog lookups for ranked items with bounded
// concurrency.
type Orchestrator struct {
	lookup      LookupFunc
	concurrency int
}

// New creates an orchestrator. Concurrency below 1 is coerced to 1.
func New(lookup LookupFunc, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{lookup: lookup, concurrency: concurrency}
}

// Enrich attaches catalog titles to ranked entities. The result always
// has exactly len(items) elements in input order; items whose lookup
// failed, found nothing, or was skipped carry a nil Title. Once any
// lookup reports an open circuit, lookups not yet started are skipped.
func (o *Orchestrator) Enrich(ctx context.Context, entityType string, items []models.RankedEntity) []models.EnrichedItem {
	results := make([]models.EnrichedItem, len(items))
	var circuitOpen atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, item := range items {
		results[i] = models.EnrichedItem{
			ID:          item.EntityID,
			Type:        entityType,
			MetricValue: item.MetricValue,
		}

		g.Go(func() error {
			if circuitOpen.Load() {
				metrics.EnrichmentItems.WithLabelValues("short_circuit").Inc()
				return nil
			}

			entity, err := o.lookup(gctx, entityType, item.EntityID)
			switch {
			case err == nil:
				results[i].Title = entity.TitlePtr()
				metrics.EnrichmentItems.WithLabelValues("enriched").Inc()
			case errors.Is(err, catalog.ErrCircuitOpen):
				circuitOpen.Store(true)
				metrics.EnrichmentItems.WithLabelValues("short_circuit").Inc()
			default:
				metrics.EnrichmentItems.WithLabelValues("fallback").Inc()
				logging.Debug().
					Err(err).
					Str("entity_type", entityType).
					Str("entity_id", item.EntityID).
					Msg("Enrichment lookup failed, serving bare item")
			}
			return nil
		})
	}

	// Workers never return errors; degraded items are the contract.
	_ = g.Wait()
	return results
}

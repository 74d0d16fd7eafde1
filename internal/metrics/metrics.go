// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package metrics defines the Prometheus collectors for the stats
// service. Collectors are registered on the default registry via
// promauto and exposed by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP boundary metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Aggregation metrics
	AggregationQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_queries_total",
			Help: "Total number of event store aggregation queries",
		},
		[]string{"query"}, // "top_entities", "trending_groups", "artist_totals", "export"
	)

	SnapshotHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_snapshot_lookups_total",
			Help: "Precomputed KPI snapshot lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "miss", "error"
	)

	// Catalog client metrics
	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Latency of catalog service requests, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CatalogRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_request_retries_total",
			Help: "Total number of catalog request retry attempts",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Enrichment metrics
	EnrichmentItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_items_total",
			Help: "Enriched items by outcome",
		},
		[]string{"outcome"}, // "enriched", "fallback", "short_circuit"
	)

	// Recommendation metrics
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Recommendation candidates served by reason",
		},
		[]string{"reason"},
	)

	// Refresh queue metrics
	RefreshJobsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_jobs_accepted_total",
			Help: "Refresh jobs accepted onto the queue",
		},
	)

	RefreshJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_jobs_processed_total",
			Help: "Refresh jobs processed by the snapshot worker",
		},
		[]string{"result"}, // "ok", "error"
	)
)

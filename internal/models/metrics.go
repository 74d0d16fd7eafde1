// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package models

import "github.com/shopspring/decimal"

// MetricTotals holds per-artist engagement counters. Totals are derived
// and always recomputable from event history; a persisted snapshot is a
// fast path only, never the source of truth.
type MetricTotals struct {
	ArtistID  string          `json:"artistId"`
	Plays     int64           `json:"plays"`
	Likes     int64           `json:"likes"`
	Follows   int64           `json:"follows"`
	Purchases int64           `json:"purchases"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// ZeroTotals returns all-zero totals for an artist. Used when neither a
// snapshot nor events exist; a missing snapshot is not an error.
func ZeroTotals(artistID string) MetricTotals {
	return MetricTotals{ArtistID: artistID, Revenue: decimal.Zero}
}

// RankedEntity is one row of a ranked aggregation result: an entity and
// the count or sum it ranked by. Results are sorted descending by
// MetricValue with ties broken by ascending EntityID, so identical event
// histories always produce byte-identical orderings.
type RankedEntity struct {
	EntityID    string `json:"id"`
	MetricValue int64  `json:"metricValue"`
}

// GroupCount is one row of a grouped aggregation: a group key (genre,
// entity id, ...) and the number of matching events.
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// EnrichedItem is a RankedEntity joined with catalog metadata. A nil
// Title means enrichment failed or the catalog had no match; that is a
// degraded-but-valid result, not an error.
type EnrichedItem struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Title       *string `json:"title"`
	MetricValue int64   `json:"metricValue"`
}

// Reason explains why a candidate was recommended.
type Reason string

const (
	ReasonGenreAffinity      Reason = "genre-affinity"
	ReasonPopularityFallback Reason = "popularity-fallback"
	ReasonSameGenre          Reason = "same-genre"
)

// RecommendationCandidate is one entry of a recommendation result.
type RecommendationCandidate struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Reason Reason  `json:"reason"`
	Score  float64 `json:"score"`
}

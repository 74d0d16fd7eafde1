// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package api is the HTTP boundary adapter: a thin chi layer mapping
// routes 1:1 onto the aggregation, enrichment, recommendation and
// refresh contracts. It validates requests and encodes responses; it
// holds no business logic.
package api

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/undersounds/stats-service/internal/aggregate"
	"github.com/undersounds/stats-service/internal/catalog"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/models"
	"github.com/undersounds/stats-service/internal/refresh"
	"github.com/undersounds/stats-service/internal/store"
)

// Aggregator is the engine surface the handlers consume.
type Aggregator interface {
	TopEntities(ctx context.Context, entityType string, window models.Window, limit int) ([]models.RankedEntity, error)
	TrendingGroups(ctx context.Context, groupBy string, filter store.CountFilter, window models.Window, limit int) ([]models.GroupCount, error)
	ArtistTotals(ctx context.Context, artistID string, window models.Window) (models.MetricTotals, error)
	ExportCounts(ctx context.Context, window models.Window) ([]models.GroupCount, error)
}

// Enricher attaches catalog titles to ranked results.
type Enricher interface {
	Enrich(ctx context.Context, entityType string, items []models.RankedEntity) []models.EnrichedItem
}

// Recommender serves the two recommendation operations.
type Recommender interface {
	ForUser(ctx context.Context, userID string, limit int) ([]models.RecommendationCandidate, error)
	Similar(ctx context.Context, entityType, id string, limit int) ([]models.RecommendationCandidate, error)
}

// RefreshQueue accepts fire-and-forget snapshot refresh jobs.
type RefreshQueue interface {
	Enqueue(ctx context.Context) (refresh.Job, error)
}

// Pinger reports event store connectivity for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the wired core components behind the routes.
type Handlers struct {
	aggregator  Aggregator
	enricher    Enricher
	recommender Recommender
	refresh     RefreshQueue
	pinger      Pinger
	breakers    *catalog.Registry
}

// NewHandlers wires the boundary to the core.
func NewHandlers(agg Aggregator, enr Enricher, rec Recommender, queue RefreshQueue, pinger Pinger, breakers *catalog.Registry) *Handlers {
	return &Handlers{
		aggregator:  agg,
		enricher:    enr,
		recommender: rec,
		refresh:     queue,
		pinger:      pinger,
		breakers:    breakers,
	}
}

// ArtistKPIs serves GET /stats/artist/{id}/kpis. Optional since/until
// bounds force recomputation; without them the snapshot fast path runs.
func (h *Handlers) ArtistKPIs(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "id")
	window, err := parseWindow(r)
	if err != nil {
		respondBadRequest(w, err)
		return
	}

	totals, err := h.aggregator.ArtistTotals(r.Context(), artistID, window)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

type topResponse struct {
	Type   string               `json:"type"`
	Period string               `json:"period"`
	Items  []models.EnrichedItem `json:"items"`
}

// Top serves GET /stats/top: ranked entities of one type within a named
// period, enriched with catalog titles. A degraded catalog yields items
// with null titles, never an error status.
func (h *Handlers) Top(w http.ResponseWriter, r *http.Request) {
	req, err := parseTopRequest(r)
	if err != nil {
		respondBadRequest(w, err)
		return
	}

	window := aggregate.WindowForPeriod(req.Period, time.Now().UTC())
	ranked, err := h.aggregator.TopEntities(r.Context(), req.Type, window, req.Limit)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, topResponse{
		Type:   req.Type,
		Period: periodOrDefault(req.Period),
		Items:  h.enricher.Enrich(r.Context(), req.Type, ranked),
	})
}

type trendEntry struct {
	Genre string `json:"genre"`
	Score int64  `json:"score"`
}

type trendingResponse struct {
	Period string       `json:"period"`
	Trends []trendEntry `json:"trends"`
}

// Trending serves GET /stats/trending: event counts grouped by genre
// within a named period, optionally narrowed to one genre.
func (h *Handlers) Trending(w http.ResponseWriter, r *http.Request) {
	req, err := parseTrendingRequest(r)
	if err != nil {
		respondBadRequest(w, err)
		return
	}

	window := aggregate.WindowForPeriod(req.Period, time.Now().UTC())
	groups, err := h.aggregator.TrendingGroups(r.Context(), store.GroupByGenre,
		store.CountFilter{Genre: req.Genre}, window, req.Limit)
	if err != nil {
		respondError(w, err)
		return
	}

	trends := make([]trendEntry, len(groups))
	for i, g := range groups {
		trends[i] = trendEntry{Genre: g.Key, Score: g.Count}
	}
	respondJSON(w, http.StatusOK, trendingResponse{
		Period: periodOrDefault(req.Period),
		Trends: trends,
	})
}

// Export serves GET /stats/export: all-event counts per entity within
// an optional window, as CSV (default) or JSON.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		respondBadRequest(w, err)
		return
	}

	counts, err := h.aggregator.ExportCounts(r.Context(), window)
	if err != nil {
		respondError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		respondJSON(w, http.StatusOK, counts)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="stats-export.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "count"})
	for _, gc := range counts {
		_ = cw.Write([]string{gc.Key, strconv.FormatInt(gc.Count, 10)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Error().Err(err).Msg("Failed to write CSV export")
	}
}

type recommendationsResponse struct {
	UserID     string                           `json:"userId,omitempty"`
	Candidates []models.RecommendationCandidate `json:"candidates"`
}

// RecommendUser serves GET /recommendations/user/{userId}.
func (h *Handlers) RecommendUser(w http.ResponseWriter, r *http.Request) {
	req, err := parseRecommendRequest(r, 20)
	if err != nil {
		respondBadRequest(w, err)
		return
	}
	userID := chi.URLParam(r, "userId")

	candidates, err := h.recommender.ForUser(r.Context(), userID, req.Limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recommendationsResponse{UserID: userID, Candidates: candidates})
}

// RecommendSimilar serves GET /recommendations/similar. A failed or
// not-found seed lookup is a 200 with an empty candidate list.
func (h *Handlers) RecommendSimilar(w http.ResponseWriter, r *http.Request) {
	req, err := parseSimilarRequest(r)
	if err != nil {
		respondBadRequest(w, err)
		return
	}

	candidates, err := h.recommender.Similar(r.Context(), req.Type, req.ID, req.Limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, recommendationsResponse{Candidates: candidates})
}

type refreshResponse struct {
	Accepted bool   `json:"accepted"`
	JobID    string `json:"jobId"`
}

// Refresh serves POST /recommendations/refresh: enqueue a snapshot
// refresh job and acknowledge with 202 before any work happens.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	job, err := h.refresh.Enqueue(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, refreshResponse{Accepted: true, JobID: job.ID})
}

type healthResponse struct {
	Status  string `json:"status"`
	Catalog string `json:"catalog"`
}

// Health serves GET /health: event store connectivity plus the catalog
// breaker state. An open breaker degrades the report but not the status
// code; the service still answers from local data.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "unhealthy",
			Catalog: breakerStateString(h.breakers.State(catalog.TargetCatalog)),
		})
		return
	}
	respondJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Catalog: breakerStateString(h.breakers.State(catalog.TargetCatalog)),
	})
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// periodOrDefault echoes the effective period back to the client.
func periodOrDefault(period string) string {
	if period == "" {
		return "week"
	}
	return period
}

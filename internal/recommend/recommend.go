// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package recommend derives ranked candidate lists from a user's
// engagement history, with a local popularity fallback for when the
// catalog dependency is degraded or the user has no history.
package recommend

import (
	"context"
	"errors"

	"github.com/undersounds/stats-service/internal/catalog"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/metrics"
	"github.com/undersounds/stats-service/internal/models"
	"github.com/undersounds/stats-service/internal/store"
)

// maxAffinityGenres caps how many preferred genres seed the candidate
// search.
const maxAffinityGenres = 5

// AffinitySource is the slice of the aggregation engine the recommender
// needs.
type AffinitySource interface {
	TrendingGroups(ctx context.Context, groupBy string, filter store.CountFilter, window models.Window, limit int) ([]models.GroupCount, error)
	TopEntities(ctx context.Context, entityType string, window models.Window, limit int) ([]models.RankedEntity, error)
}

// Catalog is the slice of the resilient catalog client the recommender
// needs.
type Catalog interface {
	GetEntity(ctx context.Context, entityType, id string) (*catalog.Entity, error)
	ListByGenre(ctx context.Context, entityType, genre string, limit int) ([]catalog.Entity, error)
}

// Recommender combines local affinity signals with catalog lookups.
type Recommender struct {
	affinity AffinitySource
	catalog  Catalog
}

// New creates a recommender over the given sources.
func New(affinity AffinitySource, cat Catalog) *Recommender {
	return &Recommender{affinity: affinity, catalog: cat}
}

// ForUser recommends up to limit albums for a user. Preferred genres
// come from the user's played and liked track events; each genre seeds
// a catalog lookup (reason genre-affinity). When no candidate can be
// produced, locally computed all-time top artists are served instead
// (reason popularity-fallback) — that path needs no remote calls and is
// always available. The affinity path fails soft: a degraded catalog
// degrades the answer to the fallback, never to an error.
func (r *Recommender) ForUser(ctx context.Context, userID string, limit int) ([]models.RecommendationCandidate, error) {
	filter := store.CountFilter{
		EntityType: models.EntityTrack,
		EventTypes: []string{models.EventTrackPlayed, models.EventTrackLiked},
		UserID:     userID,
	}
	genres, err := r.affinity.TrendingGroups(ctx, store.GroupByGenre, filter, models.AllTime(), maxAffinityGenres)
	if err != nil {
		return nil, err
	}

	candidates := r.affinityCandidates(ctx, genres, limit)
	if len(candidates) > 0 {
		metrics.RecommendationsServed.WithLabelValues(string(models.ReasonGenreAffinity)).Add(float64(len(candidates)))
		return candidates, nil
	}

	fallback, err := r.popularityFallback(ctx, limit)
	if err != nil {
		return nil, err
	}
	metrics.RecommendationsServed.WithLabelValues(string(models.ReasonPopularityFallback)).Add(float64(len(fallback)))
	return fallback, nil
}

// affinityCandidates collects same-genre albums for each preferred
// genre, deduplicated, capped at limit. An open circuit abandons the
// remaining genres at once; other remote failures skip one genre.
func (r *Recommender) affinityCandidates(ctx context.Context, genres []models.GroupCount, limit int) []models.RecommendationCandidate {
	candidates := make([]models.RecommendationCandidate, 0, limit)
	seen := make(map[string]struct{}, limit)

	for _, genre := range genres {
		if len(candidates) >= limit {
			break
		}
		entities, err := r.catalog.ListByGenre(ctx, models.EntityAlbum, genre.Key, limit-len(candidates))
		if err != nil {
			if errors.Is(err, catalog.ErrCircuitOpen) {
				logging.Warn().Str("genre", genre.Key).Msg("Catalog circuit open, abandoning affinity candidates")
				break
			}
			logging.Debug().Err(err).Str("genre", genre.Key).Msg("Genre candidate lookup failed, skipping genre")
			continue
		}
		for _, e := range entities {
			if len(candidates) >= limit {
				break
			}
			if e.ID == "" {
				continue
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			candidates = append(candidates, models.RecommendationCandidate{
				ID:     e.ID,
				Type:   models.EntityAlbum,
				Reason: models.ReasonGenreAffinity,
				Score:  1.0,
			})
		}
	}
	return candidates
}

// popularityFallback serves the all-time top artists from local data.
func (r *Recommender) popularityFallback(ctx context.Context, limit int) ([]models.RecommendationCandidate, error) {
	top, err := r.affinity.TopEntities(ctx, models.EntityArtist, models.AllTime(), limit)
	if err != nil {
		return nil, err
	}
	candidates := make([]models.RecommendationCandidate, len(top))
	for i, entity := range top {
		candidates[i] = models.RecommendationCandidate{
			ID:     entity.EntityID,
			Type:   models.EntityArtist,
			Reason: models.ReasonPopularityFallback,
			Score:  float64(entity.MetricValue),
		}
	}
	return candidates, nil
}

// Similar recommends up to limit entities sharing the seed entity's
// genre. Genre is not known locally, so there is no fallback: any
// remote failure, including a 404 for the seed, yields an empty result
// with a nil error. Callers see a degraded answer, never an exception.
func (r *Recommender) Similar(ctx context.Context, entityType, id string, limit int) ([]models.RecommendationCandidate, error) {
	seed, err := r.catalog.GetEntity(ctx, entityType, id)
	if err != nil {
		logging.Debug().Err(err).Str("entity_id", id).Msg("Similar seed lookup failed, serving empty result")
		return []models.RecommendationCandidate{}, nil
	}
	if seed.Genre == "" {
		return []models.RecommendationCandidate{}, nil
	}

	// One extra slot covers the seed itself appearing in its own genre.
	entities, err := r.catalog.ListByGenre(ctx, entityType, seed.Genre, limit+1)
	if err != nil {
		logging.Debug().Err(err).Str("genre", seed.Genre).Msg("Similar genre lookup failed, serving empty result")
		return []models.RecommendationCandidate{}, nil
	}

	candidates := make([]models.RecommendationCandidate, 0, limit)
	for _, e := range entities {
		if len(candidates) >= limit {
			break
		}
		if e.ID == "" || e.ID == id {
			continue
		}
		candidates = append(candidates, models.RecommendationCandidate{
			ID:     e.ID,
			Type:   entityType,
			Reason: models.ReasonSameGenre,
			Score:  1.0,
		})
	}
	metrics.RecommendationsServed.WithLabelValues(string(models.ReasonSameGenre)).Add(float64(len(candidates)))
	return candidates, nil
}

// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/undersounds/stats-service/internal/aggregate"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/models"
	"github.com/undersounds/stats-service/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondBadRequest(w http.ResponseWriter, err error) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// respondError maps core errors onto status codes. Remote-dependency
// failures never reach this path: every handler consumes them as
// degraded results per the fallback contracts.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidWindow), errors.Is(err, aggregate.ErrInvalidLimit):
		respondBadRequest(w, err)
	case errors.Is(err, store.ErrStoreUnavailable):
		logging.Error().Err(err).Msg("Event store unavailable")
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "event store unavailable"})
	default:
		logging.Error().Err(err).Msg("Unhandled request error")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

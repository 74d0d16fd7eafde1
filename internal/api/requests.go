// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/undersounds/stats-service/internal/models"
)

var validate = validator.New()

// topRequest is the query surface of GET /stats/top.
//
// Period is deliberately unvalidated: unknown period names default to a
// 7-day window, a documented compatibility policy, never a 400.
type topRequest struct {
	Type   string `validate:"required,oneof=track album artist"`
	Period string
	Limit  int `validate:"min=1,max=100"`
}

func parseTopRequest(r *http.Request) (topRequest, error) {
	req := topRequest{
		Type:   queryDefault(r, "type", models.EntityTrack),
		Period: r.URL.Query().Get("period"),
		Limit:  10,
	}
	if err := parseIntParam(r, "limit", &req.Limit); err != nil {
		return req, err
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// trendingRequest is the query surface of GET /stats/trending.
type trendingRequest struct {
	Period string
	Genre  string
	Limit  int `validate:"min=1,max=100"`
}

func parseTrendingRequest(r *http.Request) (trendingRequest, error) {
	req := trendingRequest{
		Period: r.URL.Query().Get("period"),
		Genre:  r.URL.Query().Get("genre"),
		Limit:  10,
	}
	if err := parseIntParam(r, "limit", &req.Limit); err != nil {
		return req, err
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// recommendRequest covers the limit surface shared by the two
// recommendation endpoints.
type recommendRequest struct {
	Limit int `validate:"min=1,max=100"`
}

func parseRecommendRequest(r *http.Request, defaultLimit int) (recommendRequest, error) {
	req := recommendRequest{Limit: defaultLimit}
	if err := parseIntParam(r, "limit", &req.Limit); err != nil {
		return req, err
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// similarRequest is the query surface of GET /recommendations/similar.
type similarRequest struct {
	Type  string `validate:"required,oneof=track album artist"`
	ID    string `validate:"required"`
	Limit int    `validate:"min=1,max=100"`
}

func parseSimilarRequest(r *http.Request) (similarRequest, error) {
	req := similarRequest{
		Type:  queryDefault(r, "type", models.EntityAlbum),
		ID:    r.URL.Query().Get("id"),
		Limit: 10,
	}
	if err := parseIntParam(r, "limit", &req.Limit); err != nil {
		return req, err
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// parseWindow reads optional since/until RFC3339 bounds. Absent bounds
// leave the window open on that side; an inverted pair is rejected by
// Window.Validate at the engine boundary.
func parseWindow(r *http.Request) (models.Window, error) {
	var w models.Window
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return w, fmt.Errorf("invalid since %q: must be RFC3339", raw)
		}
		w.Since = &t
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return w, fmt.Errorf("invalid until %q: must be RFC3339", raw)
		}
		w.Until = &t
	}
	return w, nil
}

func parseIntParam(r *http.Request, name string, dst *int) error {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: must be an integer", name, raw)
	}
	*dst = n
	return nil
}

func queryDefault(r *http.Request, name, fallback string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return fallback
}

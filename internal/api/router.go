// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/undersounds/stats-service/internal/metrics"
)

// NewRouter builds the HTTP routing tree.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(prometheusMetrics)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/stats", func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))
		r.Get("/artist/{id}/kpis", h.ArtistKPIs)
		r.Get("/top", h.Top)
		r.Get("/trending", h.Trending)
		r.Get("/export", h.Export)
	})

	r.Route("/recommendations", func(r chi.Router) {
		r.Use(httprate.LimitByIP(120, time.Minute))
		r.Get("/user/{userId}", h.RecommendUser)
		r.Get("/similar", h.RecommendSimilar)
		r.Post("/refresh", h.Refresh)
	})

	return r
}

// prometheusMetrics records request counts and latency per route
// pattern. The chi pattern, not the raw path, keeps cardinality down.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

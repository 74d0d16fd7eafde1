// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Command server runs the stats service: windowed event aggregation,
// catalog-enriched rankings and recommendations over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/undersounds/stats-service/internal/aggregate"
	"github.com/undersounds/stats-service/internal/api"
	"github.com/undersounds/stats-service/internal/catalog"
	"github.com/undersounds/stats-service/internal/config"
	"github.com/undersounds/stats-service/internal/enrich"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/recommend"
	"github.com/undersounds/stats-service/internal/refresh"
	"github.com/undersounds/stats-service/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Service failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().
		Int("port", cfg.Server.Port).
		Str("catalog", cfg.Catalog.BaseURL).
		Msg("Starting stats service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer func() { _ = db.Close() }()

	snapshots, err := store.OpenSnapshots(&cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() { _ = snapshots.Close() }()

	breakers := catalog.NewRegistry(cfg.Catalog.Breaker)
	client := catalog.NewClient(&cfg.Catalog, breakers)

	engine := aggregate.New(db, snapshots)
	orchestrator := enrich.New(client.GetEntity, cfg.Enrich.Concurrency)
	recommender := recommend.New(engine, client)

	queue := refresh.NewQueue(&cfg.Refresh)
	defer func() { _ = queue.Close() }()
	worker := refresh.NewWorker(queue, db, snapshots)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Refresh worker stopped")
		}
	}()

	handlers := api.NewHandlers(engine, orchestrator, recommender, queue, db, breakers)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logging.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP shutdown incomplete")
	}
	return nil
}

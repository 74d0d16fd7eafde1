// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package catalog is the resilient client for the external content
// catalog service. Every logical call runs through a per-target circuit
// breaker; transient failures are retried with doubling backoff inside a
// single breaker execution so that only the final outcome of the logical
// call enters the breaker's rolling statistics.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/undersounds/stats-service/internal/config"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/metrics"
)

// Client calls the content catalog service. Safe for concurrent use;
// all in-flight requests to the same target share one breaker.
type Client struct {
	baseURL  string
	http     *http.Client
	breakers *Registry

	timeout  time.Duration
	attempts int
	delay    time.Duration
}

// NewClient builds a catalog client from configuration. The breaker
// registry is injected so health reporting and tests can observe it.
func NewClient(cfg *config.CatalogConfig, breakers *Registry) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breakers: breakers,
		timeout:  cfg.Timeout,
		attempts: cfg.RetryAttempts,
		delay:    cfg.RetryDelay,
	}
}

// GetEntity fetches one catalog document by type and id. Returns
// ErrNotFound for a 404 and ErrCircuitOpen without any network attempt
// while the catalog's circuit is open.
func (c *Client) GetEntity(ctx context.Context, entityType, id string) (*Entity, error) {
	endpoint := fmt.Sprintf("%s/%ss/%s", c.baseURL, entityType, url.PathEscape(id))
	body, err := c.call(ctx, "get_entity", endpoint)
	if err != nil {
		return nil, err
	}
	return decodeEntity(entityType, body)
}

// ListByGenre fetches up to limit documents of the given type in a
// genre. An empty result is a valid answer, not ErrNotFound.
func (c *Client) ListByGenre(ctx context.Context, entityType, genre string, limit int) ([]Entity, error) {
	q := url.Values{}
	q.Set("genre", genre)
	q.Set("limit", strconv.Itoa(limit))
	endpoint := fmt.Sprintf("%s/%ss?%s", c.baseURL, entityType, q.Encode())

	body, err := c.call(ctx, "list_by_genre", endpoint)
	if err != nil {
		return nil, err
	}
	return decodeEntityList(entityType, body)
}

// call runs one logical catalog operation through the breaker. The
// retry loop lives inside Execute: a logical call that succeeds on its
// third attempt is one breaker success, not two failures and a success.
func (c *Client) call(ctx context.Context, operation, endpoint string) ([]byte, error) {
	start := time.Now()
	cb := c.breakers.breaker(TargetCatalog)

	body, err := cb.Execute(func() ([]byte, error) {
		return c.getWithRetry(ctx, endpoint)
	})
	metrics.CatalogRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(TargetCatalog, "success").Inc()
		return body, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(TargetCatalog, "rejected").Inc()
		return nil, ErrCircuitOpen
	case isBreakerFailure(err):
		metrics.CircuitBreakerRequests.WithLabelValues(TargetCatalog, "failure").Inc()
		logging.Warn().Err(err).Str("operation", operation).Msg("Catalog request failed")
		return nil, err
	default:
		// Definitive negative (404, other 4xx): success at the breaker
		// level, error for the caller.
		metrics.CircuitBreakerRequests.WithLabelValues(TargetCatalog, "success").Inc()
		return nil, err
	}
}

// getWithRetry performs the HTTP GET with per-attempt timeout, retrying
// transient failures with doubling backoff. Definitive responses (2xx,
// 404, other 4xx, 5xx) never trigger a retry.
func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	delay := c.delay
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		body, err := c.get(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isTransient(err) {
			return nil, err
		}
		if attempt == c.attempts {
			break
		}

		metrics.CatalogRetries.Inc()
		logging.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying catalog request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

// get is a single attempt with its own timeout budget.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Enclosing request cancelled; do not reinterpret as a
			// remote fault.
			return nil, ctx.Err()
		}
		return nil, classifyTransportError(err)
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, classifyTransportError(err)
		}
		return body, nil
	case res.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case res.StatusCode >= 500:
		return nil, &ServerError{Status: res.StatusCode}
	default:
		return nil, &StatusError{Status: res.StatusCode}
	}
}

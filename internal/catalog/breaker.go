// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package catalog

import (
	"sync"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/undersounds/stats-service/internal/config"
	"github.com/undersounds/stats-service/internal/logging"
	"github.com/undersounds/stats-service/internal/metrics"
)

// TargetCatalog is the logical breaker target for the content catalog
// service as a whole. Finer per-route targets can be added later if
// failure correlation data shows routes degrading independently.
const TargetCatalog = "catalog"

// Registry holds one circuit breaker per logical remote target. Breakers
// are created lazily on first use and live for the process lifetime.
// Safe for concurrent use; gobreaker serializes state transitions
// internally, so concurrent callers observe a consistent state and the
// half-open trial quota is never exceeded.
type Registry struct {
	cfg config.BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewRegistry creates an empty breaker registry with shared settings.
func NewRegistry(cfg config.BreakerConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

// breaker returns the breaker for a target, creating it on first use.
func (r *Registry) breaker(target string) *gobreaker.CircuitBreaker[[]byte] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[target]; ok {
		return cb
	}
	cb := r.newBreaker(target)
	r.breakers[target] = cb
	return cb
}

// State exposes the current state of a target's breaker for health
// reporting. Unknown targets read as closed.
func (r *Registry) State(target string) gobreaker.State {
	r.mu.Lock()
	cb, ok := r.breakers[target]
	r.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

func (r *Registry) newBreaker(target string) *gobreaker.CircuitBreaker[[]byte] {
	cfg := r.cfg
	metrics.CircuitBreakerState.WithLabelValues(target).Set(stateToFloat(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        target,
		MaxRequests: cfg.HalfOpenMax,
		Interval:    cfg.Interval,
		Timeout:     cfg.Cooldown,

		// Open when the failure ratio over the current interval reaches
		// the threshold, but only after a minimum call volume so a
		// single early failure cannot trip the circuit.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := ratio >= cfg.FailureRatio
			if trip {
				logging.Warn().
					Str("target", target).
					Uint32("requests", counts.Requests).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_ratio", ratio).
					Msg("Circuit breaker opening")
			}
			return trip
		},

		// A 404 or other definitive 4xx reached the service and got an
		// answer; only connectivity failures and 5xx count against it.
		IsSuccessful: func(err error) bool {
			return !isBreakerFailure(err)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().
				Str("target", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

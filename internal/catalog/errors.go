// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel remote errors. Callers branch on these with errors.Is; the
// breaker classifies them via isBreakerFailure.
var (
	// ErrCircuitOpen is returned without any network attempt while the
	// target's circuit is open (or its half-open trial quota is full).
	ErrCircuitOpen = errors.New("catalog: circuit open")

	// ErrNotFound is a definitive negative answer from the catalog. It
	// is never retried and counts as a success for the breaker.
	ErrNotFound = errors.New("catalog: not found")

	// ErrTimeout is a per-attempt deadline expiry. Transient.
	ErrTimeout = errors.New("catalog: request timed out")

	// ErrConnection is a transport-level failure (refused, reset, DNS).
	// Transient.
	ErrConnection = errors.New("catalog: connection failed")
)

// ServerError is a 5xx response. Counts as a breaker failure but is not
// retried: the request reached the service, hammering it again mid-fault
// only makes things worse.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("catalog: server error %d", e.Status)
}

// StatusError covers the remaining non-2xx, non-404 statuses (401, 403,
// 422, ...). Definitive answers: breaker success, never retried.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: unexpected status %d", e.Status)
}

// isTransient reports whether a failed attempt is worth retrying.
// Only connectivity-class failures qualify; definitive responses
// (404, other 4xx, 5xx) are not retried.
func isTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

// isBreakerFailure classifies the final outcome of a logical call for
// the circuit breaker. Timeouts, connection errors and 5xx are failures;
// everything else, including 404 and other 4xx, is a success.
func isBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	var srv *ServerError
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection) || errors.As(err, &srv)
}

// classifyTransportError maps net/http plumbing errors onto the remote
// error taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

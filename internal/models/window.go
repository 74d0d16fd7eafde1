// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package models

import (
	"errors"
	"time"
)

// ErrInvalidWindow indicates a window whose bounds are inverted.
var ErrInvalidWindow = errors.New("window: since must not be after until")

// Window is a half-open or fully-open time range used to filter events
// for aggregation. A nil bound means "all time" on that side.
type Window struct {
	Since *time.Time
	Until *time.Time
}

// AllTime returns the fully open window.
func AllTime() Window {
	return Window{}
}

// SinceTime returns a window open on the right, starting at t.
func SinceTime(t time.Time) Window {
	return Window{Since: &t}
}

// Between returns a window covering [since, until].
func Between(since, until time.Time) Window {
	return Window{Since: &since, Until: &until}
}

// IsZero reports whether neither bound is set.
func (w Window) IsZero() bool {
	return w.Since == nil && w.Until == nil
}

// Validate checks the window invariant: when both bounds are present,
// since must not be after until.
func (w Window) Validate() error {
	if w.Since != nil && w.Until != nil && w.Since.After(*w.Until) {
		return ErrInvalidWindow
	}
	return nil
}

// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/undersounds/stats-service/internal/models"
)

// Group columns the adapter will aggregate on. Anything else is
// rejected, so caller input can never reach the SQL text.
const (
	GroupByEntity = "entity_id"
	GroupByGenre  = "genre"
)

var groupColumns = map[string]string{
	GroupByEntity: "entity_id",
	GroupByGenre:  "genre",
}

// CountFilter narrows the event set before grouping. Zero-valued fields
// are ignored.
type CountFilter struct {
	EntityType string
	EventTypes []string
	UserID     string
	Genre      string
}

func (f CountFilter) conditions() ([]string, []interface{}) {
	conds := make([]string, 0, 4)
	args := make([]interface{}, 0, 8)

	if f.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if len(f.EventTypes) > 0 {
		placeholders := make([]string, len(f.EventTypes))
		for i, et := range f.EventTypes {
			placeholders[i] = "?"
			args = append(args, et)
		}
		conds = append(conds, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Genre != "" {
		conds = append(conds, "genre = ?")
		args = append(args, f.Genre)
	}
	return conds, args
}

// AggregateCount groups events matching the filter and window by the
// given column and counts them. Results are sorted descending by count,
// ties broken by ascending key, truncated to limit. An empty result set
// is an empty slice, not an error.
func (db *DB) AggregateCount(ctx context.Context, filter CountFilter, groupBy string, window models.Window, limit int) ([]models.GroupCount, error) {
	col, ok := groupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported group column %q", groupBy)
	}

	conds, args := filter.conditions()
	conds = append(conds, col+" <> ''")
	conds, args = windowConditions(window, conds, args)

	query := fmt.Sprintf(`
		SELECT %s AS grp, COUNT(*) AS cnt
		FROM events
		WHERE %s
		GROUP BY grp
		ORDER BY cnt DESC, grp ASC
		LIMIT ?`, col, strings.Join(conds, " AND "))
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]models.GroupCount, 0, limit)
	for rows.Next() {
		var gc models.GroupCount
		if err := rows.Scan(&gc.Key, &gc.Count); err != nil {
			return nil, fmt.Errorf("scan group count: %w", err)
		}
		results = append(results, gc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return results, nil
}

// AggregateSums recomputes per-artist engagement totals from the event
// log within the window. Zero-filled totals when no events match.
func (db *DB) AggregateSums(ctx context.Context, artistID string, window models.Window) (models.MetricTotals, error) {
	conds := []string{"artist_id = ?"}
	args := []interface{}{artistID}
	conds, args = windowConditions(window, conds, args)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE event_type = '%s'),
			COUNT(*) FILTER (WHERE event_type = '%s'),
			COUNT(*) FILTER (WHERE event_type = '%s'),
			COUNT(*) FILTER (WHERE event_type = '%s'),
			COALESCE(SUM(amount) FILTER (WHERE event_type = '%s'), 0)
		FROM events
		WHERE %s`,
		models.EventTrackPlayed, models.EventTrackLiked,
		models.EventArtistFollowed, models.EventAlbumPurchased,
		models.EventAlbumPurchased,
		strings.Join(conds, " AND "))

	totals := models.ZeroTotals(artistID)
	var revenue sql.NullFloat64
	row := db.conn.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&totals.Plays, &totals.Likes, &totals.Follows, &totals.Purchases, &revenue); err != nil {
		return models.MetricTotals{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revenue.Valid {
		totals.Revenue = decimal.NewFromFloat(revenue.Float64)
	}
	return totals, nil
}

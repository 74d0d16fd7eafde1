// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity types known to the catalog service.
const (
	EntityArtist = "artist"
	EntityAlbum  = "album"
	EntityTrack  = "track"
)

// Event types emitted by the upstream producers. The stats service only
// reads them; it never creates or mutates events.
const (
	EventTrackPlayed    = "track.played"
	EventTrackLiked     = "track.liked"
	EventArtistFollowed = "artist.followed"
	EventAlbumPurchased = "album.purchased"
)

// Event is an immutable engagement fact from the append-only event log.
//
// Genre, ArtistID and Amount are metadata fields promoted to columns so
// the store can filter and aggregate on them without unpacking Metadata.
type Event struct {
	ID         string            `json:"id"`
	EntityID   string            `json:"entityId"`
	EntityType string            `json:"entityType"`
	EventType  string            `json:"eventType"`
	UserID     string            `json:"userId"`
	Genre      string            `json:"genre,omitempty"`
	ArtistID   string            `json:"artistId,omitempty"`
	Amount     decimal.Decimal   `json:"amount"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package catalog

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Entity is the normalized view of a catalog document. Title and Genre
// are empty when the remote document carries neither of the accepted
// fields; that is a valid degraded result, not an error.
type Entity struct {
	ID    string
	Type  string
	Title string
	Genre string
}

// TitlePtr returns the title as an optional value for response shaping.
func (e *Entity) TitlePtr() *string {
	if e == nil || e.Title == "" {
		return nil
	}
	t := e.Title
	return &t
}

// Field precedence for the catalog's loosely-typed JSON documents. The
// content service mixes English and Spanish field names depending on
// which collection a document came from; the precedence order below is
// the documented contract, first non-empty wins.
//
//	id:             _id, id
//	artist title:   name, titulo
//	album/track:    title, name
//	genre:          genre, genero
var (
	idFields          = []string{"_id", "id"}
	artistTitleFields = []string{"name", "titulo"}
	workTitleFields   = []string{"title", "name"}
	genreFields       = []string{"genre", "genero"}
)

func titleFields(entityType string) []string {
	if entityType == "artist" {
		return artistTitleFields
	}
	return workTitleFields
}

func stringField(doc map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := doc[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func entityFromDoc(entityType string, doc map[string]interface{}) Entity {
	return Entity{
		ID:    stringField(doc, idFields),
		Type:  entityType,
		Title: stringField(doc, titleFields(entityType)),
		Genre: stringField(doc, genreFields),
	}
}

// decodeEntity parses a single catalog document.
func decodeEntity(entityType string, body []byte) (*Entity, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode %s document: %w", entityType, err)
	}
	e := entityFromDoc(entityType, doc)
	return &e, nil
}

// decodeEntityList parses a list response. The catalog returns either a
// bare JSON array or an object wrapping one under "items".
func decodeEntityList(entityType string, body []byte) ([]Entity, error) {
	var docs []map[string]interface{}
	if err := json.Unmarshal(body, &docs); err != nil {
		var wrapped struct {
			Items []map[string]interface{} `json:"items"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("catalog: decode %s list: %w", entityType, err)
		}
		docs = wrapped.Items
	}

	entities := make([]Entity, 0, len(docs))
	for _, doc := range docs {
		entities = append(entities, entityFromDoc(entityType, doc))
	}
	return entities, nil
}

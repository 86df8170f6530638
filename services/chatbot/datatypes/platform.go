// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the core record types shared across the chatbot
// service: platforms, events, and the chat request/response envelopes.
//
// Records are explicit structs with typed optional fields rather than
// loosely-shaped maps, so a missing value is a zero value the compiler knows
// about, not an absent map key discovered at runtime.
package datatypes

import "strings"

// Platform type values stored in the catalog.
const (
	PlatformTypeTech    = "Tech"
	PlatformTypeOutdoor = "Outdoor/Travel"
)

// Platform is a community/organization record in the searchable catalog.
//
// # Description
//
// Platform records are owned by the ingestion pipeline and are read-only in
// the conversational core. RelevanceScore is transient per-query state
// attached by the retriever (higher = more relevant); it is never persisted.
//
// # JSON Serialization
//
// Field names match the catalog JSON and the Qdrant payload keys, so the same
// struct round-trips through ingestion, search, and the HTTP API.
type Platform struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Category        string   `json:"category"`
	FocusArea       string   `json:"focus_area"`
	Description     string   `json:"description"`
	Website         string   `json:"website"`
	Founded         string   `json:"founded,omitempty"`
	CommunitySize   string   `json:"community_size,omitempty"`
	KeyPrograms     []string `json:"key_programs,omitempty"`
	GeographicFocus string   `json:"geographic_focus,omitempty"`
	Tags            []string `json:"tags,omitempty"`

	// RelevanceScore is attached per query by the retriever.
	// Higher = more relevant. Not persisted.
	RelevanceScore float64 `json:"relevance_score"`
}

// Document builds the searchable text that gets embedded for this platform.
// Ingestion and the retriever must agree on this format, so it lives here.
func (p *Platform) Document() string {
	parts := []string{p.Name}

	if p.Type != "" {
		parts = append(parts, "Type: "+p.Type)
	}
	if p.FocusArea != "" {
		parts = append(parts, "Focus: "+p.FocusArea)
	}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.KeyPrograms) > 0 {
		parts = append(parts, "Programs: "+strings.Join(p.KeyPrograms, ", "))
	}
	if len(p.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(p.Tags, ", "))
	}

	return strings.Join(parts, " | ")
}

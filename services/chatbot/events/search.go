// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides semantic and attribute search over the event
// collection, always filtered to upcoming events.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/index"
)

var tracer = otel.Tracer("afroadv/events")

// Payload keys for the event collection.
const (
	fieldTitle      = "title"
	fieldURL        = "url"
	fieldDate       = "date"
	fieldTime       = "time"
	fieldLocation   = "location"
	fieldDesc       = "description"
	fieldEventType  = "event_type"
	fieldOrgName    = "org_name"
	fieldPlatformID = "platform_id"
	fieldSource     = "source"
)

const (
	// docDescriptionLimit caps the description portion of the embedded
	// document text.
	docDescriptionLimit = 300

	// metaTitleLimit caps the title stored in metadata.
	metaTitleLimit = 200
)

// Indexer is the slice of index.Index that EventSearch needs.
type Indexer interface {
	Search(ctx context.Context, vector []float32, limit int, match map[string]string) ([]index.Hit, error)
	Upsert(ctx context.Context, points []index.Point) error
	DeleteByMatch(ctx context.Context, match map[string]string) error
	Count(ctx context.Context) (uint64, error)
}

// Search finds events by semantic similarity and attribute filters.
//
// # Description
//
// Every read path applies the future-only filter: an event whose parsed
// date is strictly before today is discarded, while events with an absent
// or unparseable date are kept, treated as perpetually upcoming. The
// discovery pipeline that writes events cannot be trusted to prune stale
// ones, so pruning happens at read time.
//
// The Now field exists so tests can pin "today"; it defaults to time.Now.
type Search struct {
	embedder index.Embedder
	idx      Indexer

	// Now returns the current time for the future-date filter.
	Now func() time.Time
}

// NewSearch creates an event search over idx.
func NewSearch(embedder index.Embedder, idx Indexer) *Search {
	return &Search{embedder: embedder, idx: idx, Now: time.Now}
}

// SearchEvents returns up to nResults upcoming events matching query,
// optionally restricted by platformID and eventType, in similarity order.
func (s *Search) SearchEvents(ctx context.Context, query, platformID, eventType string, nResults int) ([]datatypes.Event, error) {
	ctx, span := tracer.Start(ctx, "EventSearch.SearchEvents")
	defer span.End()
	span.SetAttributes(attribute.String("events.query", query))

	if strings.TrimSpace(query) == "" || nResults <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding event query: %w", err)
	}

	match := map[string]string{}
	if platformID != "" {
		match[fieldPlatformID] = platformID
	}
	if eventType != "" {
		match[fieldEventType] = eventType
	}

	// Over-fetch so the future-date filter still leaves enough results.
	hits, err := s.idx.Search(ctx, vector, 2*nResults, match)
	if err != nil {
		return nil, fmt.Errorf("searching events: %w", err)
	}

	upcoming := s.filterUpcoming(hits)
	if len(upcoming) > nResults {
		upcoming = upcoming[:nResults]
	}
	span.SetAttributes(attribute.Int("events.results", len(upcoming)))
	return upcoming, nil
}

// PlatformEvents returns up to limit upcoming events for one platform.
// Used by the orchestrator's backfill pass.
func (s *Search) PlatformEvents(ctx context.Context, platformID string, limit int) ([]datatypes.Event, error) {
	ctx, span := tracer.Start(ctx, "EventSearch.PlatformEvents")
	defer span.End()
	span.SetAttributes(attribute.String("events.platform_id", platformID))

	if platformID == "" || limit <= 0 {
		return nil, nil
	}

	// The query text is only a ranking signal here; the platform filter
	// does the real work.
	vector, err := s.embedder.Embed(ctx, "upcoming events")
	if err != nil {
		return nil, fmt.Errorf("embedding platform event query: %w", err)
	}

	hits, err := s.idx.Search(ctx, vector, 2*limit, map[string]string{fieldPlatformID: platformID})
	if err != nil {
		return nil, fmt.Errorf("fetching events for platform %s: %w", platformID, err)
	}

	upcoming := s.filterUpcoming(hits)
	if len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming, nil
}

// ClearPlatformEvents removes every event belonging to platformID. The
// refresh pipeline calls this before re-adding a platform's events, and
// depends on the delete being visible to the next read.
func (s *Search) ClearPlatformEvents(ctx context.Context, platformID string) error {
	if platformID == "" {
		return fmt.Errorf("platform id is required")
	}
	slog.Info("Clearing platform events", "platform_id", platformID)
	return s.idx.DeleteByMatch(ctx, map[string]string{fieldPlatformID: platformID})
}

// AddEvents embeds and upserts events for platformID. Events already in
// the collection with the same derived ID are overwritten.
func (s *Search) AddEvents(ctx context.Context, platformID string, evs []datatypes.Event) error {
	ctx, span := tracer.Start(ctx, "EventSearch.AddEvents")
	defer span.End()
	span.SetAttributes(
		attribute.String("events.platform_id", platformID),
		attribute.Int("events.count", len(evs)),
	)

	points := make([]index.Point, 0, len(evs))
	for i, ev := range evs {
		vector, err := s.embedder.Embed(ctx, eventDocument(ev))
		if err != nil {
			return fmt.Errorf("embedding event %q: %w", ev.Title, err)
		}
		points = append(points, index.Point{
			ID:      eventID(platformID, ev, i),
			Vector:  vector,
			Payload: eventPayload(platformID, ev),
		})
	}

	if err := s.idx.Upsert(ctx, points); err != nil {
		return fmt.Errorf("storing %d events for %s: %w", len(points), platformID, err)
	}
	slog.Info("Stored events", "platform_id", platformID, "count", len(points))
	return nil
}

// Count returns the number of stored events.
func (s *Search) Count(ctx context.Context) (uint64, error) {
	return s.idx.Count(ctx)
}

// filterUpcoming converts hits to events and drops past-dated ones.
func (s *Search) filterUpcoming(hits []index.Hit) []datatypes.Event {
	today := s.Now()
	out := make([]datatypes.Event, 0, len(hits))
	for _, hit := range hits {
		ev := eventFromPayload(hit.Payload)
		ev.Similarity = hit.Score
		if !ev.IsUpcoming(today) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// eventDocument is the text embedded for similarity search.
func eventDocument(ev datatypes.Event) string {
	desc := ev.Description
	if len(desc) > docDescriptionLimit {
		desc = desc[:docDescriptionLimit]
	}
	parts := []string{
		ev.Title,
		"Type: " + ev.EventType,
		"Organized by: " + ev.OrgName,
		"Date: " + ev.Date,
		"Location: " + ev.Location,
		"Description: " + desc,
	}
	return strings.Join(parts, " | ")
}

// eventID derives a stable point ID so re-adding the same scrape is an
// overwrite, not a duplicate.
func eventID(platformID string, ev datatypes.Event, i int) string {
	datePart := strings.ReplaceAll(ev.Date, "-", "")
	if datePart == "" {
		datePart = "nodate"
	}
	return fmt.Sprintf("%s_event_%s_%d", platformID, datePart, i)
}

func eventPayload(platformID string, ev datatypes.Event) map[string]string {
	title := ev.Title
	if len(title) > metaTitleLimit {
		title = title[:metaTitleLimit]
	}
	return map[string]string{
		fieldTitle:      title,
		fieldURL:        ev.URL,
		fieldDate:       ev.Date,
		fieldTime:       ev.Time,
		fieldLocation:   ev.Location,
		fieldDesc:       ev.Description,
		fieldEventType:  ev.EventType,
		fieldOrgName:    ev.OrgName,
		fieldPlatformID: platformID,
		fieldSource:     ev.Source,
	}
}

func eventFromPayload(payload map[string]string) datatypes.Event {
	return datatypes.Event{
		Title:       payload[fieldTitle],
		URL:         payload[fieldURL],
		Date:        payload[fieldDate],
		Time:        payload[fieldTime],
		Location:    payload[fieldLocation],
		Description: payload[fieldDesc],
		EventType:   payload[fieldEventType],
		OrgName:     payload[fieldOrgName],
		PlatformID:  payload[fieldPlatformID],
		Source:      payload[fieldSource],
	}
}

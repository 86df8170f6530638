// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/index"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeIndex struct {
	hits      []index.Hit
	upserted  []index.Point
	deleted   []map[string]string
	gotLimit  int
	gotFilter map[string]string
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int, match map[string]string) ([]index.Hit, error) {
	f.gotLimit = limit
	f.gotFilter = match
	return f.hits, nil
}

func (f *fakeIndex) Upsert(_ context.Context, points []index.Point) error {
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeIndex) DeleteByMatch(_ context.Context, match map[string]string) error {
	f.deleted = append(f.deleted, match)
	return nil
}

func (f *fakeIndex) Count(_ context.Context) (uint64, error) {
	return uint64(len(f.upserted)), nil
}

// fixedToday pins the clock so date filtering is deterministic.
var fixedToday = time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

func newTestSearch(idx *fakeIndex) *Search {
	s := NewSearch(fakeEmbedder{}, idx)
	s.Now = func() time.Time { return fixedToday }
	return s
}

func hitFor(title, date string) index.Hit {
	return index.Hit{
		ID:    title,
		Score: 0.8,
		Payload: map[string]string{
			"title":       title,
			"date":        date,
			"platform_id": "techqueria",
		},
	}
}

func TestSearchEventsFutureOnly(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{
		hitFor("long past", "2025-07-01"),
		hitFor("yesterday", "2026-08-29"),
		hitFor("today", "2026-08-30"),
		hitFor("tomorrow", "2026-08-31"),
		hitFor("dateless", ""),
		hitFor("garbled", "next Tuesday"),
	}}
	s := newTestSearch(idx)

	got, err := s.SearchEvents(context.Background(), "tech meetups", "", "", 10)
	if err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}

	want := map[string]bool{"today": true, "tomorrow": true, "dateless": true, "garbled": true}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(got), len(want), titles(got))
	}
	for _, ev := range got {
		if !want[ev.Title] {
			t.Errorf("past event %q survived the filter", ev.Title)
		}
	}
}

func TestSearchEventsFutureOnlyBehindUTC(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{
		hitFor("yesterday", "2026-08-29"),
		hitFor("today", "2026-08-30"),
		hitFor("tomorrow", "2026-08-31"),
	}}
	s := NewSearch(fakeEmbedder{}, idx)
	// Noon in a zone five hours behind UTC. An event dated today must still
	// count as upcoming.
	s.Now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	}

	got, err := s.SearchEvents(context.Background(), "tech meetups", "", "", 10)
	if err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}

	want := map[string]bool{"today": true, "tomorrow": true}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %v", len(got), len(want), titles(got))
	}
	for _, ev := range got {
		if !want[ev.Title] {
			t.Errorf("unexpected event %q after filtering", ev.Title)
		}
	}
}

func TestSearchEventsOverFetchAndTruncate(t *testing.T) {
	var hits []index.Hit
	for i := 0; i < 8; i++ {
		hits = append(hits, hitFor("ev"+strings.Repeat("x", i), "2026-09-15"))
	}
	idx := &fakeIndex{hits: hits}
	s := newTestSearch(idx)

	got, err := s.SearchEvents(context.Background(), "conferences", "", "", 3)
	if err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}
	if idx.gotLimit != 6 {
		t.Errorf("vector limit = %d, want 6 (2x over-fetch)", idx.gotLimit)
	}
	if len(got) != 3 {
		t.Errorf("got %d events, want 3", len(got))
	}
}

func TestSearchEventsFilters(t *testing.T) {
	idx := &fakeIndex{}
	s := newTestSearch(idx)

	if _, err := s.SearchEvents(context.Background(), "meetups", "techqueria", datatypes.EventTypeMeetup, 5); err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}
	if idx.gotFilter["platform_id"] != "techqueria" || idx.gotFilter["event_type"] != datatypes.EventTypeMeetup {
		t.Errorf("filters not forwarded: %v", idx.gotFilter)
	}
}

func TestSearchEventsEmptyQuery(t *testing.T) {
	s := newTestSearch(&fakeIndex{})
	got, err := s.SearchEvents(context.Background(), "  ", "", "", 5)
	if err != nil || got != nil {
		t.Errorf("empty query: got %v, %v", got, err)
	}
}

func TestPlatformEventsAppliesSameFilter(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{
		hitFor("stale", "2025-01-01"),
		hitFor("fresh", "2026-12-01"),
	}}
	s := newTestSearch(idx)

	got, err := s.PlatformEvents(context.Background(), "techqueria", 3)
	if err != nil {
		t.Fatalf("PlatformEvents: %v", err)
	}
	if idx.gotFilter["platform_id"] != "techqueria" {
		t.Errorf("platform filter missing: %v", idx.gotFilter)
	}
	if len(got) != 1 || got[0].Title != "fresh" {
		t.Errorf("got %v, want only the fresh event", titles(got))
	}
}

func TestClearPlatformEvents(t *testing.T) {
	idx := &fakeIndex{}
	s := newTestSearch(idx)

	if err := s.ClearPlatformEvents(context.Background(), "techqueria"); err != nil {
		t.Fatalf("ClearPlatformEvents: %v", err)
	}
	if len(idx.deleted) != 1 || idx.deleted[0]["platform_id"] != "techqueria" {
		t.Errorf("delete filter = %v", idx.deleted)
	}

	if err := s.ClearPlatformEvents(context.Background(), ""); err == nil {
		t.Error("empty platform id must be rejected")
	}
}

func TestAddEventsDerivesStableIDs(t *testing.T) {
	idx := &fakeIndex{}
	s := newTestSearch(idx)

	evs := []datatypes.Event{
		{Title: "Annual Summit", Date: "2026-10-05", EventType: datatypes.EventTypeConference},
		{Title: "Community Hike", Date: ""},
	}
	if err := s.AddEvents(context.Background(), "outdoor_afro", evs); err != nil {
		t.Fatalf("AddEvents: %v", err)
	}

	if len(idx.upserted) != 2 {
		t.Fatalf("upserted %d points, want 2", len(idx.upserted))
	}
	if idx.upserted[0].ID != "outdoor_afro_event_20261005_0" {
		t.Errorf("id = %q", idx.upserted[0].ID)
	}
	if idx.upserted[1].ID != "outdoor_afro_event_nodate_1" {
		t.Errorf("id = %q", idx.upserted[1].ID)
	}
	if idx.upserted[0].Payload["platform_id"] != "outdoor_afro" {
		t.Errorf("payload missing platform_id: %v", idx.upserted[0].Payload)
	}
}

func TestAddEventsTruncatesLongFields(t *testing.T) {
	idx := &fakeIndex{}
	s := newTestSearch(idx)

	longTitle := strings.Repeat("t", 250)
	if err := s.AddEvents(context.Background(), "bgc", []datatypes.Event{{Title: longTitle}}); err != nil {
		t.Fatalf("AddEvents: %v", err)
	}
	if got := idx.upserted[0].Payload["title"]; len(got) != 200 {
		t.Errorf("stored title length = %d, want 200", len(got))
	}
}

func TestEventDocumentShape(t *testing.T) {
	doc := eventDocument(datatypes.Event{
		Title:       "AfroTech Conference",
		EventType:   datatypes.EventTypeConference,
		OrgName:     "AfroTech",
		Date:        "2026-11-09",
		Location:    "Houston, TX",
		Description: strings.Repeat("d", 400),
	})
	if !strings.HasPrefix(doc, "AfroTech Conference | Type: conference | Organized by: AfroTech | Date: 2026-11-09 | Location: Houston, TX | Description: ") {
		t.Errorf("unexpected document shape: %q", doc)
	}
	if strings.Contains(doc, strings.Repeat("d", 301)) {
		t.Error("description not truncated to 300 chars")
	}
}

func titles(evs []datatypes.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Title
	}
	return out
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// EventDateLayout is the calendar date format events carry ("2025-11-08").
const EventDateLayout = "2006-01-02"

// Event type values used in event metadata.
const (
	EventTypeConference = "conference"
	EventTypeWorkshop   = "workshop"
	EventTypeMeetup     = "meetup"
	EventTypeWebinar    = "webinar"
	EventTypeOther      = "other"
)

// Event is a scheduled happening associated with a platform.
//
// # Description
//
// Events are written by the out-of-band discovery pipeline and only read by
// the conversational core. Date is an optional calendar date string in
// EventDateLayout; an empty or unparseable date means the event has no known
// schedule and is treated as perpetually upcoming.
//
// PlatformID is a weak reference to a Platform: the platform may have been
// removed since the event was discovered, so it must never be dereferenced
// without a presence check.
type Event struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description"`
	EventType   string `json:"event_type"`
	OrgName     string `json:"org_name"`
	PlatformID  string `json:"platform_id"`
	Source      string `json:"source"`

	PublishedDate string `json:"published_date,omitempty"`
	LastUpdated   string `json:"last_updated,omitempty"`

	// Similarity is the search score from the event index, higher = closer.
	// Zero for events fetched by platform lookup rather than semantic search.
	Similarity float64 `json:"similarity,omitempty"`
}

// ParsedDate returns the event date as a time.Time and whether parsing
// succeeded. Absent and malformed dates both report ok=false.
func (e *Event) ParsedDate() (time.Time, bool) {
	if e.Date == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(EventDateLayout, e.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsUpcoming reports whether the event should be shown for the given day.
// Events dated today or later are upcoming; events with no parseable date are
// always upcoming (the discovery pipeline often cannot pin a date).
func (e *Event) IsUpcoming(today time.Time) bool {
	d, ok := e.ParsedDate()
	if !ok {
		return true
	}
	// ParsedDate yields midnight UTC, so the cutoff must be today's calendar
	// date in UTC as well. Building it in today's zone shifts the cutoff
	// past the event instant in zones behind UTC and drops same-day events.
	y, m, day := today.Date()
	midnight := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return !d.Before(midnight)
}

// Key returns the (title, date) pair used for exact de-duplication when
// merging backfilled platform events into semantic search results.
func (e *Event) Key() EventKey {
	return EventKey{Title: e.Title, Date: e.Date}
}

// EventKey is the exact de-dup key for events.
type EventKey struct {
	Title string
	Date  string
}

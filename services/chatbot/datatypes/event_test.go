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

import (
	"testing"
	"time"
)

func TestEventIsUpcoming(t *testing.T) {
	utc := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		date  string
		today time.Time
		want  bool
	}{
		{"yesterday", "2026-08-29", utc, false},
		{"today", "2026-08-30", utc, true},
		{"tomorrow", "2026-08-31", utc, true},
		{"no date", "", utc, true},
		{"garbled date", "next Tuesday", utc, true},
		{"long past", "2020-01-01", utc, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Title: "t", Date: tt.date}
			if got := ev.IsUpcoming(tt.today); got != tt.want {
				t.Errorf("IsUpcoming(%q, %s) = %v, want %v", tt.date, tt.today, got, tt.want)
			}
		})
	}
}

// The upcoming check compares calendar days, so the caller's zone must not
// shift the boundary. An event dated today stays upcoming even when the
// local clock sits behind UTC, and the day does not flip early ahead of UTC.
func TestEventIsUpcomingAcrossZones(t *testing.T) {
	behindUTC := time.FixedZone("UTC-5", -5*60*60)
	aheadUTC := time.FixedZone("UTC+9", 9*60*60)

	tests := []struct {
		name  string
		date  string
		today time.Time
		want  bool
	}{
		{"today in UTC-5", "2026-08-30", time.Date(2026, 8, 30, 12, 0, 0, 0, behindUTC), true},
		{"today at local midnight in UTC-5", "2026-08-30", time.Date(2026, 8, 30, 0, 0, 0, 0, behindUTC), true},
		{"yesterday in UTC-5", "2026-08-29", time.Date(2026, 8, 30, 12, 0, 0, 0, behindUTC), false},
		{"today in UTC+9", "2026-08-30", time.Date(2026, 8, 30, 23, 0, 0, 0, aheadUTC), true},
		{"yesterday in UTC+9", "2026-08-29", time.Date(2026, 8, 30, 1, 0, 0, 0, aheadUTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Title: "t", Date: tt.date}
			if got := ev.IsUpcoming(tt.today); got != tt.want {
				t.Errorf("IsUpcoming(%q, %s) = %v, want %v", tt.date, tt.today, got, tt.want)
			}
		})
	}
}

func TestEventParsedDate(t *testing.T) {
	ev := Event{Date: "2026-11-09"}
	d, ok := ev.ParsedDate()
	if !ok {
		t.Fatal("expected parseable date")
	}
	if d.Year() != 2026 || d.Month() != time.November || d.Day() != 9 {
		t.Errorf("ParsedDate = %s, want 2026-11-09", d)
	}

	for _, bad := range []string{"", "soon", "11/09/2026"} {
		ev := Event{Date: bad}
		if _, ok := ev.ParsedDate(); ok {
			t.Errorf("ParsedDate(%q) ok = true, want false", bad)
		}
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import "testing"

func TestDetectorScore(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"standalone long query", "find me outdoor communities for black women hikers", 0},
		{"short only", "outdoor hiking groups", 1},
		{"pronoun and short", "what do they offer?", 3},
		{"connector prefix and short", "And Techqueria?", 3},
		{"connector mid-sentence does not count", "hiking and biking communities please bye", 0},
		{"comparative and short", "any other similar groups?", 2},
		{"pronoun long sentence", "can you tell me what programs they are running this year", 2},
		{"what about opener", "What about events?", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Score(tt.query); got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestDetectorNeedsReformulation(t *testing.T) {
	d := NewDetector()

	if d.NeedsReformulation("And Techqueria?", false) {
		t.Error("first query of a session must never be reformulated")
	}
	if !d.NeedsReformulation("And Techqueria?", true) {
		t.Error("context-dependent follow-up with history should be reformulated")
	}
	if d.NeedsReformulation("find me outdoor communities for black women in tech", true) {
		t.Error("standalone query should not be reformulated")
	}
}

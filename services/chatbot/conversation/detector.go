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

import "strings"

// reformulationThreshold is the minimum dependency score at which a query
// is considered context-dependent.
const reformulationThreshold = 2

var pronouns = map[string]struct{}{
	"it": {}, "they": {}, "them": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "he": {}, "she": {},
}

// connectors are continuation openers. Checked as query prefixes, longest
// first so "what about" wins over a bare word match.
var connectors = []string{
	"what about", "how about", "and", "also", "but", "or",
}

var comparatives = map[string]struct{}{
	"more": {}, "other": {}, "another": {}, "similar": {}, "different": {},
}

// Detector scores how much a query depends on prior conversation context.
//
// # Description
//
// The score sums independent signals: very short queries (+1), pronouns
// (+2), a continuation opener as the first words (+2), and comparative
// terms (+1). A query needs reformulation when the score reaches the
// threshold AND conversation history exists; without history there is
// nothing to resolve against, no matter how dependent the phrasing looks.
//
// # Example
//
//	d := NewDetector()
//	d.NeedsReformulation("And Techqueria?", true)   // true (short +1, connector +2)
//	d.NeedsReformulation("And Techqueria?", false)  // false, no history
type Detector struct{}

// NewDetector returns a context-dependency detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Score returns the context-dependency score for query.
func (d *Detector) Score(query string) int {
	lower := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(lower)

	score := 0
	if len(words) < 5 {
		score++
	}

	for _, w := range words {
		if _, ok := pronouns[strings.Trim(w, ".,!?;:")]; ok {
			score += 2
			break
		}
	}

	for _, c := range connectors {
		if lower == c || strings.HasPrefix(lower, c+" ") {
			score += 2
			break
		}
	}

	for _, w := range words {
		if _, ok := comparatives[strings.Trim(w, ".,!?;:")]; ok {
			score++
			break
		}
	}

	return score
}

// NeedsReformulation reports whether query should be rewritten into a
// standalone question before retrieval.
func (d *Detector) NeedsReformulation(query string, hasHistory bool) bool {
	if !hasHistory {
		return false
	}
	return d.Score(query) >= reformulationThreshold
}

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

import (
	"strings"
	"unicode"
)

// Intent classifies what a user is trying to accomplish with a query.
type Intent string

const (
	IntentNone             Intent = ""
	IntentFindEvents       Intent = "find_events"
	IntentProgramDetails   Intent = "program_details"
	IntentLocationSpecific Intent = "location_specific"
	IntentDiscoverPlatform Intent = "discover_platforms"

	// IntentDemographicFocus is reserved for demographic-driven queries.
	// No classification rule assigns it yet; demographics currently land in
	// State.Entities instead.
	IntentDemographicFocus Intent = "demographic"
)

// intentRule pairs an intent with the keywords that trigger it. Rules are
// checked in order and the first match wins, so more specific intents must
// come before broader ones.
type intentRule struct {
	intent   Intent
	keywords []string
}

var intentRules = []intentRule{
	{IntentFindEvents, []string{
		"event", "events", "upcoming", "conference", "meetup",
		"happening", "schedule", "calendar", "gathering", "summit",
	}},
	{IntentProgramDetails, []string{
		"program", "programs", "offer", "provide", "services",
		"mentorship", "training", "course", "workshop",
	}},
	{IntentLocationSpecific, []string{
		" in ", " near ", " at ", "local", "area", "city",
		"bay area", "nyc", "atlanta", "seattle", "austin",
	}},
}

// demographicTerms are community descriptors extracted as "demographics"
// entities when they appear as words in a query.
var demographicTerms = map[string]struct{}{
	"black": {}, "african american": {}, "afro": {}, "latinx": {},
	"latina": {}, "latino": {}, "hispanic": {}, "asian": {},
	"indigenous": {}, "native": {}, "women": {}, "lgbtq": {},
	"queer": {}, "trans": {},
}

// capitalizedStop lists capitalized tokens that are sentence mechanics, not
// platform names.
var capitalizedStop = map[string]struct{}{
	"I": {}, "In": {}, "At": {}, "On": {}, "The": {},
	"A": {}, "An": {}, "For": {}, "To": {}, "Of": {},
}

// Tracker classifies query intent and extracts entities into conversation
// state.
//
// # Description
//
// Classification is keyword-based, checked against ordered rules. When no
// rule matches, the previously tracked intent is kept (intent is sticky);
// with no prior intent the query defaults to platform discovery. Entity
// extraction pulls demographic terms and capitalized tokens (candidate
// platform names), merging them into State.Entities by category.
//
// # Limitations
//
// Keyword matching is substring-based and case-insensitive; "preventing"
// matches "event". This mirrors the matching the rest of the pipeline uses
// and keeps classification cheap and deterministic.
type Tracker struct{}

// NewTracker returns an intent tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Classify returns the intent for query given the previously tracked intent.
func (t *Tracker) Classify(query string, previous Intent) Intent {
	lower := strings.ToLower(query)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	if previous != IntentNone {
		return previous
	}
	return IntentDiscoverPlatform
}

// ExtractEntities pulls recognized entities from query, keyed by category.
// A category missing from the result was simply not mentioned.
func (t *Tracker) ExtractEntities(query string) map[string][]string {
	entities := make(map[string][]string)
	lower := strings.ToLower(query)

	var demographics []string
	for term := range demographicTerms {
		if containsWord(lower, term) {
			demographics = append(demographics, term)
		}
	}
	if len(demographics) > 0 {
		entities["demographics"] = demographics
	}

	var platforms []string
	for _, tok := range strings.Fields(query) {
		trimmed := strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" {
			continue
		}
		if _, stop := capitalizedStop[trimmed]; stop {
			continue
		}
		first := []rune(trimmed)[0]
		if unicode.IsUpper(first) {
			platforms = append(platforms, trimmed)
		}
	}
	if len(platforms) > 0 {
		entities["platforms"] = platforms
	}

	return entities
}

// UpdateState classifies query and merges its entities into state, in place.
// The returned intent is the (possibly carried-over) intent now active.
func (t *Tracker) UpdateState(state *State, query string) Intent {
	state.CurrentIntent = t.Classify(query, state.CurrentIntent)
	for category, values := range t.ExtractEntities(query) {
		state.Entities[category] = values
	}
	return state.CurrentIntent
}

// containsWord reports whether s contains term bounded by non-letter
// characters (or string edges), so "trans" does not match "transit".
// Multi-word terms are matched on the same boundary rule.
func containsWord(s, term string) bool {
	for start := 0; ; {
		idx := strings.Index(s[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)
		leftOK := idx == 0 || !isWordRune(rune(s[idx-1]))
		rightOK := end == len(s) || !isWordRune(rune(s[end]))
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

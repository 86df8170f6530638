// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import "strings"

// keywordStopwords are filler words stripped before keyword matching.
var keywordStopwords = map[string]struct{}{
	"tell": {}, "me": {}, "about": {}, "more": {}, "what": {},
	"is": {}, "are": {}, "the": {}, "a": {}, "an": {},
	"find": {}, "show": {}, "looking": {}, "for": {},
}

// brandStopwords are stripped from a query before deciding whether it is a
// brand query, in listed order so multi-token phrases collapse cleanly.
var brandStopwords = []string{
	"tell", "me", "about", "more", "what", "is", "find", "show", "the", "a", "an",
}

// KeywordMatcher matches queries against platform names exactly or by
// significant-word containment. It exists as a recall channel for brand
// names ("Black Girls CODE") that vector similarity tends to under-rank.
type KeywordMatcher struct {
	catalog *Catalog
}

// NewKeywordMatcher creates a matcher over catalog.
func NewKeywordMatcher(catalog *Catalog) *KeywordMatcher {
	return &KeywordMatcher{catalog: catalog}
}

// Match returns the IDs of platforms whose name matches query,
// case-insensitively, optionally restricted to platformType. A platform
// matches when the query and name contain each other as substrings, or
// when every significant query word appears in the name.
func (m *KeywordMatcher) Match(query, platformType string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	words := significantWords(q)

	var ids []string
	for _, p := range m.catalog.All() {
		if platformType != "" && p.Type != platformType {
			continue
		}
		name := strings.ToLower(p.Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			ids = append(ids, p.ID)
			continue
		}
		if len(words) > 0 && allWordsIn(words, name) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// BrandQuery strips conversational filler from query and returns what is
// left, lowercased. An empty result means the query carried no brand
// candidate at all.
func BrandQuery(query string) string {
	lower := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(lower)

	kept := words[:0]
	for _, w := range words {
		keep := true
		trimmed := strings.Trim(w, ".,!?;:")
		for _, stop := range brandStopwords {
			if trimmed == stop {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}

// significantWords returns the lowercased words of q longer than two
// characters that are not stopwords.
func significantWords(q string) []string {
	var out []string
	for _, w := range strings.Fields(q) {
		w = strings.Trim(w, ".,!?;:")
		if len(w) <= 2 {
			continue
		}
		if _, stop := keywordStopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func allWordsIn(words []string, name string) bool {
	for _, w := range words {
		if !strings.Contains(name, w) {
			return false
		}
	}
	return true
}

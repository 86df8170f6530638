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

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/index"
)

var tracer = otel.Tracer("afroadv/retrieval")

// platformTypeKey is the metadata field used for type filtering in the
// platform collection. The index command writes it; retrieval filters on it.
const platformTypeKey = "platform_type"

// Config holds the ranking constants. The defaults reproduce long-observed
// behavior; they are configuration rather than invariants, so deployments
// can tune them without a code change.
type Config struct {
	// KeywordScore is assigned to platforms found only by keyword match.
	KeywordScore float64

	// BoostAmount is added to a candidate whose name matches the brand
	// portion of the query.
	BoostAmount float64

	// BoostCap is the ceiling a boosted score may reach.
	BoostCap float64
}

// DefaultConfig returns the standard ranking constants.
func DefaultConfig() Config {
	return Config{KeywordScore: 0.95, BoostAmount: 0.4, BoostCap: 0.98}
}

// Searcher is the slice of index.Index that retrieval needs.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int, match map[string]string) ([]index.Hit, error)
}

// HybridRetriever ranks platforms for a query.
//
// # Description
//
// Vector similarity alone under-ranks exact brand-name queries because
// embeddings blur short proper nouns. HybridRetriever layers two
// deterministic corrections on top: platforms found by exact keyword match
// join the candidate set at a fixed high score, and any candidate whose
// name matches the brand portion of the query gets a capped boost. The
// merged set is sorted by score descending with a stable sort, so ties
// keep their vector-search relative order.
//
// # Limitations
//
// A vector-search failure degrades to keyword-only results (possibly
// empty); it is logged and never propagated, since losing retrieval should
// read as "no results", not a crashed turn.
type HybridRetriever struct {
	embedder index.Embedder
	searcher Searcher
	keywords *KeywordMatcher
	catalog  *Catalog
	cfg      Config
}

// NewHybridRetriever wires a retriever over the platform collection.
func NewHybridRetriever(embedder index.Embedder, searcher Searcher, catalog *Catalog, cfg Config) *HybridRetriever {
	return &HybridRetriever{
		embedder: embedder,
		searcher: searcher,
		keywords: NewKeywordMatcher(catalog),
		catalog:  catalog,
		cfg:      cfg,
	}
}

// Retrieve returns up to nResults platforms ranked for query, optionally
// restricted to typeFilter ("Tech" or "Outdoor/Travel"). Each returned
// platform carries its per-query RelevanceScore.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, nResults int, typeFilter string) []datatypes.Platform {
	ctx, span := tracer.Start(ctx, "HybridRetriever.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("retrieval.query", query))

	if strings.TrimSpace(query) == "" || nResults <= 0 {
		return nil
	}

	// Over-fetch for re-ranking headroom.
	candidates := r.vectorCandidates(ctx, query, 2*nResults, typeFilter)

	// Keyword fallback: append brand-name matches vector search missed.
	// A keyword hit for an ID already in the candidate list keeps the
	// higher of the two scores.
	for _, id := range r.keywords.Match(query, typeFilter) {
		found := false
		for i := range candidates {
			if candidates[i].ID == id {
				if r.cfg.KeywordScore > candidates[i].RelevanceScore {
					candidates[i].RelevanceScore = r.cfg.KeywordScore
				}
				found = true
				break
			}
		}
		if found {
			continue
		}
		if p, ok := r.catalog.Get(id); ok {
			p.RelevanceScore = r.cfg.KeywordScore
			candidates = append(candidates, p)
		}
	}

	// Name-boost pass against the brand portion of the query.
	if brand := BrandQuery(query); brand != "" {
		for i := range candidates {
			name := strings.ToLower(candidates[i].Name)
			if strings.Contains(name, brand) || strings.Contains(brand, name) {
				boosted := candidates[i].RelevanceScore + r.cfg.BoostAmount
				if boosted > r.cfg.BoostCap {
					boosted = r.cfg.BoostCap
				}
				if boosted > candidates[i].RelevanceScore {
					candidates[i].RelevanceScore = boosted
				}
			}
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].RelevanceScore > candidates[b].RelevanceScore
	})

	if len(candidates) > nResults {
		candidates = candidates[:nResults]
	}
	span.SetAttributes(attribute.Int("retrieval.results", len(candidates)))
	return candidates
}

// vectorCandidates embeds query and runs similarity search, hydrating hits
// through the catalog. Failures log and return nil.
func (r *HybridRetriever) vectorCandidates(ctx context.Context, query string, limit int, typeFilter string) []datatypes.Platform {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Embedding query failed, falling back to keyword-only retrieval", "error", err)
		return nil
	}

	var match map[string]string
	if typeFilter != "" {
		match = map[string]string{platformTypeKey: typeFilter}
	}

	hits, err := r.searcher.Search(ctx, vector, limit, match)
	if err != nil {
		slog.Error("Vector search failed, falling back to keyword-only retrieval", "error", err)
		return nil
	}

	platforms := make([]datatypes.Platform, 0, len(hits))
	for _, hit := range hits {
		p, ok := r.catalog.Get(hit.ID)
		if !ok {
			slog.Warn("Vector hit not present in catalog, skipping", "id", hit.ID)
			continue
		}
		p.RelevanceScore = hit.Score
		platforms = append(platforms, p)
	}
	return platforms
}

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
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jfrank94/afroadv-chatbot/services/llm"
)

const (
	// reformulationTurns is how many recent turns the rewrite prompt sees.
	reformulationTurns = 2

	// reformulationTruncate caps each transcript snippet in the prompt.
	reformulationTruncate = 200

	reformulationMaxTokens = 100
)

const reformulatorSystemPrompt = `You rewrite follow-up questions as standalone questions.
Given recent conversation history and a follow-up, produce a single self-contained
question of at most 10 words that preserves the user's meaning. Output only the
rewritten question, nothing else.`

// GenerateFunc produces a completion for a system prompt and user prompt.
// It exists so the reformulator can be tested without a live model.
type GenerateFunc func(ctx context.Context, system, user string, params llm.GenerationParams) (string, error)

// Reformulator rewrites context-dependent follow-ups into standalone
// queries using an LLM.
//
// # Description
//
// Reformulation is best-effort. The rewrite runs at temperature 0 with a
// small token budget; on any failure (transport error, empty output) the
// original query is returned unchanged and the pipeline proceeds. Retrieval
// on the raw follow-up is degraded but functional, which beats failing the
// whole request over a cosmetic rewrite.
type Reformulator struct {
	detector *Detector
	generate GenerateFunc
}

// NewReformulator creates a Reformulator backed by generate.
func NewReformulator(generate GenerateFunc) *Reformulator {
	return &Reformulator{detector: NewDetector(), generate: generate}
}

// Reformulate returns a standalone version of query, rewriting it only when
// the detector flags it as context-dependent and history exists. The second
// return reports whether a rewrite happened.
func (r *Reformulator) Reformulate(ctx context.Context, query string, mem *Memory) (string, bool) {
	if r.generate == nil || !r.detector.NeedsReformulation(query, mem.HasHistory()) {
		return query, false
	}

	prompt := r.buildPrompt(query, mem)
	rewritten, err := r.generate(ctx, reformulatorSystemPrompt, prompt, llm.GenerationParams{
		Temperature: 0.0,
		MaxTokens:   reformulationMaxTokens,
	})
	if err != nil {
		slog.Warn("Query reformulation failed, using original query", "error", err)
		return query, false
	}

	rewritten = strings.TrimSpace(strings.Trim(strings.TrimSpace(rewritten), `"`))
	if rewritten == "" {
		return query, false
	}

	slog.Debug("Reformulated query", "original", query, "rewritten", rewritten)
	return rewritten, true
}

func (r *Reformulator) buildPrompt(query string, mem *Memory) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range mem.RecentHistory(reformulationTurns) {
		fmt.Fprintf(&b, "User: %s\n", truncate(turn.User, reformulationTruncate))
		fmt.Fprintf(&b, "Assistant: %s\n", truncate(turn.Assistant, reformulationTruncate))
	}
	fmt.Fprintf(&b, "\nFollow-up: %s\n\nStandalone question:", query)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

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
	"errors"
	"strings"
	"testing"

	"github.com/jfrank94/afroadv-chatbot/services/llm"
)

func seededMemory() *Memory {
	mem := NewMemory(5)
	mem.AddTurn("find Latina tech communities", "Techqueria and Latinas in Tech are strong fits.", []string{"Techqueria", "Latinas in Tech"})
	return mem
}

func TestReformulateRewritesFollowUp(t *testing.T) {
	var gotPrompt string
	var gotParams llm.GenerationParams
	gen := func(_ context.Context, _, user string, params llm.GenerationParams) (string, error) {
		gotPrompt = user
		gotParams = params
		return "What events does Techqueria have?", nil
	}

	r := NewReformulator(gen)
	query, rewritten := r.Reformulate(context.Background(), "What about their events?", seededMemory())

	if !rewritten {
		t.Fatal("expected a rewrite")
	}
	if query != "What events does Techqueria have?" {
		t.Errorf("query = %q", query)
	}
	if gotParams.Temperature != 0.0 || gotParams.MaxTokens != 100 {
		t.Errorf("params = %+v, want temperature 0 and 100 max tokens", gotParams)
	}
	if !strings.Contains(gotPrompt, "find Latina tech communities") {
		t.Errorf("prompt missing conversation history:\n%s", gotPrompt)
	}
	if !strings.Contains(gotPrompt, "Follow-up: What about their events?") {
		t.Errorf("prompt missing follow-up:\n%s", gotPrompt)
	}
}

func TestReformulateSkipsStandaloneQuery(t *testing.T) {
	gen := func(_ context.Context, _, _ string, _ llm.GenerationParams) (string, error) {
		t.Fatal("generate must not be called for standalone queries")
		return "", nil
	}

	r := NewReformulator(gen)
	query, rewritten := r.Reformulate(context.Background(), "find outdoor communities for black women hikers", seededMemory())
	if rewritten || query != "find outdoor communities for black women hikers" {
		t.Errorf("standalone query changed: %q (rewritten=%v)", query, rewritten)
	}
}

func TestReformulateSkipsWithoutHistory(t *testing.T) {
	gen := func(_ context.Context, _, _ string, _ llm.GenerationParams) (string, error) {
		t.Fatal("generate must not be called without history")
		return "", nil
	}

	r := NewReformulator(gen)
	query, rewritten := r.Reformulate(context.Background(), "And Techqueria?", NewMemory(5))
	if rewritten || query != "And Techqueria?" {
		t.Errorf("query changed without history: %q", query)
	}
}

func TestReformulateFallsBackOnError(t *testing.T) {
	gen := func(_ context.Context, _, _ string, _ llm.GenerationParams) (string, error) {
		return "", errors.New("provider down")
	}

	r := NewReformulator(gen)
	query, rewritten := r.Reformulate(context.Background(), "And Techqueria?", seededMemory())
	if rewritten || query != "And Techqueria?" {
		t.Errorf("error path must return original query, got %q", query)
	}
}

func TestReformulateFallsBackOnEmptyOutput(t *testing.T) {
	gen := func(_ context.Context, _, _ string, _ llm.GenerationParams) (string, error) {
		return "  \"\"  ", nil
	}

	r := NewReformulator(gen)
	query, rewritten := r.Reformulate(context.Background(), "And Techqueria?", seededMemory())
	if rewritten || query != "And Techqueria?" {
		t.Errorf("empty output must return original query, got %q", query)
	}
}

func TestReformulatePromptTruncatesLongTurns(t *testing.T) {
	mem := NewMemory(5)
	long := strings.Repeat("x", 500)
	mem.AddTurn(long, long, nil)

	var gotPrompt string
	gen := func(_ context.Context, _, user string, _ llm.GenerationParams) (string, error) {
		gotPrompt = user
		return "rewritten", nil
	}

	r := NewReformulator(gen)
	r.Reformulate(context.Background(), "And them?", mem)

	if strings.Contains(gotPrompt, strings.Repeat("x", 201)) {
		t.Error("transcript snippet not truncated to 200 chars")
	}
}

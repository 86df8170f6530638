// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
)

// fakeClient is a scripted Client: each call pops the next response.
type fakeClient struct {
	name    string
	calls   int
	results []*Result
	errs    []error
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Chat(_ context.Context, _ string, _ []datatypes.Message, _ GenerationParams) (*Result, error) {
	i := f.calls
	f.calls++
	if i >= len(f.errs) {
		i = len(f.errs) - 1
	}
	return f.results[i], f.errs[i]
}

func TestFallbackChainFirstProviderWins(t *testing.T) {
	first := &fakeClient{name: "first", results: []*Result{{Text: "hello"}}, errs: []error{nil}}
	second := &fakeClient{name: "second", results: []*Result{{Text: "unused"}}, errs: []error{nil}}

	chain := NewFallbackChain(first, second)
	res, err := chain.Chat(context.Background(), "", nil, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("got %q, want %q", res.Text, "hello")
	}
	if second.calls != 0 {
		t.Errorf("second provider was called %d times, want 0", second.calls)
	}
}

func TestFallbackChainAdvancesOnHardFailure(t *testing.T) {
	first := &fakeClient{name: "first", results: []*Result{nil}, errs: []error{errors.New("boom")}}
	second := &fakeClient{name: "second", results: []*Result{{Text: "rescued"}}, errs: []error{nil}}

	chain := NewFallbackChain(first, second)
	res, err := chain.Chat(context.Background(), "sys", nil, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if res.Text != "rescued" {
		t.Errorf("got %q, want %q", res.Text, "rescued")
	}
	if first.calls != 1 {
		t.Errorf("hard failure should not be retried, got %d calls", first.calls)
	}
}

func TestFallbackChainRetriesRateLimit(t *testing.T) {
	rateLimited := &ProviderError{Provider: "first", StatusCode: 429, Message: "slow down"}
	first := &fakeClient{
		name:    "first",
		results: []*Result{nil, {Text: "eventually"}},
		errs:    []error{rateLimited, nil},
	}

	chain := NewFallbackChain(first)
	res, err := chain.Chat(context.Background(), "", nil, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if res.Text != "eventually" {
		t.Errorf("got %q, want %q", res.Text, "eventually")
	}
	if first.calls != 2 {
		t.Errorf("got %d calls, want 2", first.calls)
	}
}

func TestFallbackChainAllProvidersFail(t *testing.T) {
	first := &fakeClient{name: "first", results: []*Result{nil}, errs: []error{errors.New("down")}}
	second := &fakeClient{name: "second", results: []*Result{nil}, errs: []error{errors.New("also down")}}

	chain := NewFallbackChain(first, second)
	if _, err := chain.Chat(context.Background(), "", nil, GenerationParams{}); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestFallbackChainStats(t *testing.T) {
	first := &fakeClient{
		name:    "first",
		results: []*Result{{Text: "ok", Usage: Usage{InputTokens: 10, OutputTokens: 5}}},
		errs:    []error{nil},
	}
	chain := NewFallbackChain(first)

	if _, err := chain.Chat(context.Background(), "", nil, GenerationParams{}); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	stats := chain.Stats()
	if len(stats) != 1 {
		t.Fatalf("got %d stat entries, want 1", len(stats))
	}
	s := stats[0]
	if s.Calls != 1 || s.Failures != 0 || s.InputTokens != 10 || s.OutputTokens != 5 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &ProviderError{StatusCode: 429}, true},
		{"529 overload", &ProviderError{StatusCode: 529}, true},
		{"500", &ProviderError{StatusCode: 500}, false},
		{"plain error", errors.New("nope"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.want)
			}
		})
	}
}

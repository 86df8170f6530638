// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm abstracts text generation behind a provider-agnostic Client
// interface, with concrete clients for the Anthropic Messages API and for
// OpenAI-compatible endpoints (Cerebras, DeepSeek), plus a FallbackChain
// that tries providers in priority order.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
)

// GenerationParams are the per-call sampling knobs.
type GenerationParams struct {
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Usage counts tokens consumed by a generation call. Providers that do not
// report usage leave it zero.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is one completed generation.
type Result struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Client defines the standard interface for any LLM backend.
//
// # Description
//
// Implementations wrap exactly one provider API. A nil error means a
// non-empty, usable completion; any failure, including an empty response
// body, must surface as an error so the fallback chain can move on.
type Client interface {
	// Chat produces a completion from a system prompt and a chronological
	// message transcript ending with the user's current prompt.
	Chat(ctx context.Context, system string, messages []datatypes.Message, params GenerationParams) (*Result, error)

	// Name identifies the provider in logs and stats.
	Name() string
}

// ProviderError carries the HTTP status of a provider rejection so the
// fallback chain can distinguish rate limits from hard failures.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider %s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a rate-limit rejection (HTTP 429) or
// a provider overload (529). Only these are worth retrying on the same
// provider; everything else goes straight to the next provider in the chain.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.StatusCode == 429 || pe.StatusCode == 529
}

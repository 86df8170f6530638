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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/observability"
)

var tracer = otel.Tracer("afroadv/llm")

const (
	// rateLimitRetries is how many extra attempts a rate-limited provider
	// gets before the chain moves on.
	rateLimitRetries = 2

	rateLimitBaseDelay = 1 * time.Second
)

// =============================================================================
// Fallback Chain
// =============================================================================

// ProviderStats is a snapshot of one provider's usage counters.
type ProviderStats struct {
	Provider     string `json:"provider"`
	Calls        int64  `json:"calls"`
	Failures     int64  `json:"failures"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// FallbackChain tries each configured provider in order until one returns
// a usable completion.
//
// # Description
//
// The chain exists because no single hosted LLM is reliable enough to sit
// alone on the hot path. A provider that fails hard is skipped immediately;
// a provider that is rate limited gets a couple of retries with backoff
// first, since the very next provider may be a quality downgrade. Token
// usage is tallied per provider for the stats endpoint.
//
// # Thread Safety
//
// FallbackChain is safe for concurrent use.
//
// # Example
//
//	chain := NewFallbackChain(anthropic, cerebras, deepseek)
//	res, err := chain.Chat(ctx, system, messages, params)
//	if err != nil {
//	    // every provider failed; serve the templated fallback response
//	}
type FallbackChain struct {
	providers []Client
	mu        sync.Mutex
	stats     map[string]*ProviderStats
}

// NewFallbackChain creates a chain over providers in priority order.
// Nil entries (providers whose construction failed) are skipped.
func NewFallbackChain(providers ...Client) *FallbackChain {
	chain := &FallbackChain{stats: make(map[string]*ProviderStats)}
	for _, p := range providers {
		if p == nil {
			continue
		}
		chain.providers = append(chain.providers, p)
		chain.stats[p.Name()] = &ProviderStats{Provider: p.Name()}
	}
	return chain
}

// Name implements the Client interface.
func (c *FallbackChain) Name() string { return "fallback_chain" }

// Providers returns the names of configured providers in priority order.
func (c *FallbackChain) Providers() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Chat implements the Client interface by delegating to the first provider
// that succeeds. The error is non-nil only when every provider failed.
func (c *FallbackChain) Chat(ctx context.Context, system string, messages []datatypes.Message, params GenerationParams) (*Result, error) {
	ctx, span := tracer.Start(ctx, "FallbackChain.Chat")
	defer span.End()

	if len(c.providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	var lastErr error
	for _, provider := range c.providers {
		result, err := c.tryProvider(ctx, provider, system, messages, params)
		if err == nil {
			span.SetAttributes(attribute.String("llm.provider", provider.Name()))
			return result, nil
		}
		lastErr = err
		slog.Warn("LLM provider failed, trying next",
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()),
		)
	}

	return nil, fmt.Errorf("all LLM providers failed: %w", lastErr)
}

// tryProvider runs one provider, retrying with exponential backoff when the
// rejection is rate-limit shaped.
func (c *FallbackChain) tryProvider(ctx context.Context, provider Client, system string, messages []datatypes.Message, params GenerationParams) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= rateLimitRetries; attempt++ {
		if attempt > 0 {
			delay := rateLimitBaseDelay << (attempt - 1)
			slog.Info("Rate limited, backing off",
				slog.String("provider", provider.Name()),
				slog.Duration("delay", delay),
				slog.Int("attempt", attempt),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		c.recordCall(provider.Name())
		result, err := provider.Chat(ctx, system, messages, params)
		if err == nil {
			c.recordUsage(provider.Name(), result.Usage)
			return result, nil
		}

		c.recordFailure(provider.Name())
		lastErr = err
		if !IsRateLimited(err) {
			break
		}
	}
	return nil, lastErr
}

// Stats returns a snapshot of per-provider counters, in priority order.
func (c *FallbackChain) Stats() []ProviderStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		if s, ok := c.stats[p.Name()]; ok {
			out = append(out, *s)
		}
	}
	return out
}

func (c *FallbackChain) recordCall(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stats[name]; ok {
		s.Calls++
	}
}

func (c *FallbackChain) recordFailure(name string) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordProviderCall(name, false)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stats[name]; ok {
		s.Failures++
	}
}

func (c *FallbackChain) recordUsage(name string, u Usage) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordProviderCall(name, true)
		m.RecordTokens(u.InputTokens, u.OutputTokens, name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stats[name]; ok {
		s.InputTokens += int64(u.InputTokens)
		s.OutputTokens += int64(u.OutputTokens)
	}
}

// NewChainFromEnv assembles the default provider chain from whatever API
// keys are present in the environment: Anthropic first, then Cerebras,
// then DeepSeek. A missing key just drops that link from the chain.
func NewChainFromEnv() *FallbackChain {
	var providers []Client

	if anthropic, err := NewAnthropicClient(); err == nil {
		providers = append(providers, anthropic)
	} else {
		slog.Warn("Anthropic client unavailable", "error", err)
	}
	if cerebras, err := NewCerebrasClient(); err == nil {
		providers = append(providers, cerebras)
	} else {
		slog.Warn("Cerebras client unavailable", "error", err)
	}
	if deepseek, err := NewDeepSeekClient(); err == nil {
		providers = append(providers, deepseek)
	} else {
		slog.Warn("DeepSeek client unavailable", "error", err)
	}

	if len(providers) == 0 {
		slog.Warn("No LLM providers configured; responses will use templated fallback")
	}
	return NewFallbackChain(providers...)
}

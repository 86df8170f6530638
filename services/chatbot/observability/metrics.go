// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the chatbot.
//
// # Description
//
// Metrics cover the per-turn chat pipeline and the LLM provider chain:
//   - Turn counters by outcome (success, no_results, validation_error)
//   - Turn duration histogram by outcome
//   - Provider request counters by provider and status
//   - Token usage (input/output by provider)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting. The /v1/stats JSON endpoint serves
// the same counters in a human-readable form.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "afroadv"

// Subsystem for chat pipeline metrics
const chatSubsystem = "chat"

// ChatMetrics holds the Prometheus metrics for the chat pipeline and the
// LLM provider chain.
//
// # Fields
//
//   - TurnsTotal: Counter of chat turns by outcome
//   - TurnDurationSeconds: Histogram of full-turn latency by outcome
//   - ProviderRequestsTotal: Counter of LLM provider calls by provider and status
//   - TokensTotal: Counter of tokens processed (input/output by provider)
//
// # Thread Safety
//
// All operations are thread-safe.
type ChatMetrics struct {
	// TurnsTotal counts completed chat turns.
	// Labels: status (success, no_results, validation_error)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures full-turn wall-clock latency.
	// Labels: status (success, no_results, validation_error)
	TurnDurationSeconds *prometheus.HistogramVec

	// ProviderRequestsTotal counts LLM provider calls.
	// Labels: provider (anthropic, cerebras, deepseek), status (success, error)
	ProviderRequestsTotal *prometheus.CounterVec

	// TokensTotal counts tokens processed by direction and provider.
	// Labels: direction (input, output), provider
	TokensTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of ChatMetrics. Nil until
// InitMetrics() runs; call sites must nil-check so metrics stay optional.
var DefaultMetrics *ChatMetrics

// InitMetrics initializes the default metrics instance against the default
// Prometheus registry.
//
// # Description
//
// Creates and registers all chat metrics. Call once at application startup;
// repeated calls return the already-initialized instance rather than
// panicking on duplicate registration.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
func InitMetrics() *ChatMetrics {
	if DefaultMetrics != nil {
		return DefaultMetrics
	}
	DefaultMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	return DefaultMetrics
}

// newMetrics builds the metric set against the given factory. Tests pass a
// factory over a fresh registry to avoid duplicate-registration panics.
func newMetrics(factory promauto.Factory) *ChatMetrics {
	return &ChatMetrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "turns_total",
				Help:      "Total chat turns by outcome",
			},
			[]string{"status"},
		),

		TurnDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Full chat turn duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"status"},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "provider_requests_total",
				Help:      "Total LLM provider calls by provider and status",
			},
			[]string{"provider", "status"},
		),

		TokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "tokens_total",
				Help:      "Total tokens processed by direction and provider",
			},
			[]string{"direction", "provider"},
		),
	}
}

// =============================================================================
// Turn Outcomes
// =============================================================================

// TurnStatus labels a completed chat turn for metrics.
type TurnStatus string

const (
	// TurnStatusSuccess indicates a turn that produced a generated answer.
	TurnStatusSuccess TurnStatus = "success"

	// TurnStatusNoResults indicates a turn that matched no platforms.
	TurnStatusNoResults TurnStatus = "no_results"

	// TurnStatusValidationError indicates rejected input.
	TurnStatusValidationError TurnStatus = "validation_error"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordTurn records a completed chat turn and its duration.
//
// # Inputs
//
//   - status: The turn outcome.
//   - seconds: Full-turn wall-clock duration.
func (m *ChatMetrics) RecordTurn(status TurnStatus, seconds float64) {
	m.TurnsTotal.WithLabelValues(string(status)).Inc()
	m.TurnDurationSeconds.WithLabelValues(string(status)).Observe(seconds)
}

// RecordProviderCall records one LLM provider attempt.
//
// # Inputs
//
//   - provider: The provider name.
//   - success: Whether the call returned a usable completion.
func (m *ChatMetrics) RecordProviderCall(provider string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
}

// RecordTokens records token usage for one successful provider call.
//
// # Inputs
//
//   - inputTokens: Number of input tokens.
//   - outputTokens: Number of output tokens.
//   - provider: The provider that served the call.
func (m *ChatMetrics) RecordTokens(inputTokens, outputTokens int, provider string) {
	m.TokensTotal.WithLabelValues("input", provider).Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output", provider).Add(float64(outputTokens))
}

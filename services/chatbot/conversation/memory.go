// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package conversation provides cross-turn conversational state for the
// chatbot: a sliding-window memory of turns, intent tracking with entity
// extraction, and reformulation of context-dependent follow-up queries
// ("And Techqueria?") into standalone questions.
package conversation

import (
	"log/slog"
	"time"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
)

// DefaultMaxTurns is the sliding-window size when none is configured.
const DefaultMaxTurns = 5

// llmHistoryTurns is how many of the most recent turns are surfaced to the
// LLM as conversation context.
const llmHistoryTurns = 3

// Turn is one completed user/assistant exchange.
type Turn struct {
	// User is the user's original utterance (not the reformulated query).
	User string `json:"user"`

	// Assistant is the response shown to the user.
	Assistant string `json:"assistant"`

	// Timestamp is when the turn completed.
	Timestamp time.Time `json:"timestamp"`

	// Platforms holds the names of platforms returned this turn, in rank
	// order. Empty for no-result turns.
	Platforms []string `json:"platforms"`
}

// State tracks conversation context that outlives individual turns.
//
// # Description
//
// State survives sliding-window eviction: a session that has run for fifty
// turns still knows its current intent and accumulated entities even though
// only the last few transcripts remain.
type State struct {
	// CurrentIntent is the active intent, sticky across turns until a new
	// intent keyword is observed.
	CurrentIntent Intent

	// Entities maps a category name ("demographics", "platforms") to the
	// strings extracted for it. Categories are overwritten when mentioned
	// again and persist when not.
	Entities map[string][]string

	// LastPlatforms holds the platform names from the most recent turn
	// that returned results, in rank order.
	LastPlatforms []string
}

// NewState returns an empty conversation state.
func NewState() State {
	return State{CurrentIntent: IntentNone, Entities: make(map[string][]string)}
}

// Memory is a bounded sliding window of conversation turns plus the mutable
// session state.
//
// # Description
//
// Memory holds at most maxTurns transcripts; adding a turn beyond capacity
// evicts the oldest (FIFO). Eviction never touches State.
//
// # Thread Safety
//
// Memory is NOT safe for concurrent use. Each chat session owns exactly one
// Memory, and the session registry serializes access to it. Sharing one
// Memory across sessions is a bug.
type Memory struct {
	maxTurns int
	history  []Turn

	// State is exported so the intent tracker can update it in place
	// between reformulation and retrieval.
	State State
}

// NewMemory creates a Memory retaining at most maxTurns turns.
// Non-positive values fall back to DefaultMaxTurns.
func NewMemory(maxTurns int) *Memory {
	if maxTurns <= 0 {
		slog.Warn("Invalid maxTurns for conversation memory, using default",
			"provided", maxTurns, "default", DefaultMaxTurns)
		maxTurns = DefaultMaxTurns
	}
	return &Memory{maxTurns: maxTurns, State: NewState()}
}

// AddTurn appends a completed exchange, evicting the oldest turn when the
// window is full. When the turn returned platforms, State.LastPlatforms is
// replaced with them.
func (m *Memory) AddTurn(userMsg, assistantMsg string, platformsReturned []string) {
	m.history = append(m.history, Turn{
		User:      userMsg,
		Assistant: assistantMsg,
		Timestamp: time.Now(),
		Platforms: platformsReturned,
	})

	if len(m.history) > m.maxTurns {
		m.history = m.history[len(m.history)-m.maxTurns:]
	}

	if len(platformsReturned) > 0 {
		m.State.LastPlatforms = platformsReturned
	}

	slog.Debug("Added turn to conversation memory", "totalTurns", len(m.history))
}

// History returns the retained turns, oldest first. The slice is shared;
// callers must not mutate it.
func (m *Memory) History() []Turn {
	return m.history
}

// HasHistory reports whether any turn is retained.
func (m *Memory) HasHistory() bool {
	return len(m.history) > 0
}

// RecentHistory returns the last n turns, oldest first.
func (m *Memory) RecentHistory(n int) []Turn {
	if n <= 0 || len(m.history) == 0 {
		return nil
	}
	if n > len(m.history) {
		n = len(m.history)
	}
	return m.history[len(m.history)-n:]
}

// FormatForLLM renders the last few turns as role/content messages suitable
// for an LLM conversation, oldest first.
func (m *Memory) FormatForLLM() []datatypes.Message {
	recent := m.RecentHistory(llmHistoryTurns)
	messages := make([]datatypes.Message, 0, len(recent)*2)
	for _, turn := range recent {
		messages = append(messages,
			datatypes.Message{Role: datatypes.RoleUser, Content: turn.User},
			datatypes.Message{Role: datatypes.RoleAssistant, Content: turn.Assistant},
		)
	}
	return messages
}

// Clear resets both the transcript window and the session state.
func (m *Memory) Clear() {
	m.history = nil
	m.State = NewState()
	slog.Info("Conversation memory cleared")
}

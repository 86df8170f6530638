// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxQueryLength bounds user input to prevent abuse and runaway token usage.
const MaxQueryLength = 1000

// Error codes surfaced in ChatResult.Error for input validation failures.
// These are the only turn-level errors a caller ever sees; everything else
// degrades to a fallback response.
const (
	ErrCodeEmptyQuery   = "empty_query"
	ErrCodeQueryTooLong = "query_too_long"
)

// Message is a single role/content entry in an LLM conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is one user turn arriving over the HTTP API.
type ChatRequest struct {
	// Id uniquely identifies this request. Populated by EnsureDefaults
	// if the client omits it.
	Id string `json:"id,omitempty"`

	// Message is the user's utterance.
	Message string `json:"message"`

	// SessionId binds the turn to a conversation. Empty means "start a
	// new session"; EnsureSessionId allocates one.
	SessionId string `json:"session_id,omitempty"`

	// TypeFilter optionally restricts platform retrieval to one catalog
	// type ("Tech" or "Outdoor/Travel").
	TypeFilter string `json:"type_filter,omitempty"`

	// IncludeSources controls whether platform/event records are echoed
	// back in the result. Defaults to true.
	IncludeSources *bool `json:"include_sources,omitempty"`

	// Timestamp is when the request was received (unix seconds).
	Timestamp int64 `json:"timestamp,omitempty"`
}

// EnsureDefaults populates Id and Timestamp if the client left them empty.
func (r *ChatRequest) EnsureDefaults() {
	if r.Id == "" {
		r.Id = "req_" + uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().Unix()
	}
}

// EnsureSessionId returns the session id, allocating one when absent.
func (r *ChatRequest) EnsureSessionId() string {
	if r.SessionId == "" {
		r.SessionId = "sess_" + uuid.NewString()
	}
	return r.SessionId
}

// WantSources reports whether retrieved records should be included in the
// response. Nil means true.
func (r *ChatRequest) WantSources() bool {
	return r.IncludeSources == nil || *r.IncludeSources
}

// Validate checks the request against the two input-validation rules.
// Violations are terminal: they must short-circuit the turn before any
// retrieval or memory mutation happens.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return &InputError{Code: ErrCodeEmptyQuery,
			Message: "Please ask me a question about PoC platforms in tech or outdoor/travel!"}
	}
	if len(r.Message) > MaxQueryLength {
		return &InputError{Code: ErrCodeQueryTooLong,
			Message: fmt.Sprintf("Your question is too long (%d characters). Please keep it under %d characters.",
				len(r.Message), MaxQueryLength)}
	}
	if r.TypeFilter != "" && r.TypeFilter != PlatformTypeTech && r.TypeFilter != PlatformTypeOutdoor {
		return &InputError{Code: "invalid_type_filter",
			Message: fmt.Sprintf("Unknown platform type %q. Use %q or %q.",
				r.TypeFilter, PlatformTypeTech, PlatformTypeOutdoor)}
	}
	return nil
}

// InputError is a terminal validation failure surfaced verbatim to the user.
type InputError struct {
	Code    string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInputError checks if an error is an *InputError.
func IsInputError(err error) bool {
	_, ok := err.(*InputError)
	return ok
}

// ChatResult is the well-formed response object every turn produces, even on
// degraded paths. Error is only set for input validation failures.
type ChatResult struct {
	Response    string     `json:"response"`
	Sources     []Platform `json:"sources"`
	Events      []Event    `json:"events"`
	Retrieved   int        `json:"retrieved"`
	EventsFound int        `json:"events_found"`
	Query       string     `json:"query"`
	SessionId   string     `json:"session_id,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services holds the per-turn chat pipeline that fuses platform
// retrieval, event search, and response generation.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/conversation"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/observability"
	"github.com/jfrank94/afroadv-chatbot/services/llm"
)

var tracer = otel.Tracer("afroadv/chat")

// =============================================================================
// Configuration
// =============================================================================

// Config tunes the chat pipeline.
type Config struct {
	// NResults is how many platforms and events each primary search asks for.
	NResults int

	// MemoryTurns is the per-session sliding window size.
	MemoryTurns int

	// BackfillThreshold triggers targeted event backfill when the primary
	// event search returns fewer events than this.
	BackfillThreshold int

	// BackfillPlatforms is how many top-ranked platforms backfill probes.
	BackfillPlatforms int

	// BackfillPerPlatform is the event limit per probed platform.
	BackfillPerPlatform int

	// Temperature and MaxTokens apply to answer generation. Reformulation
	// uses its own fixed parameters.
	Temperature float32
	MaxTokens   int

	// TurnTimeout bounds one full turn. Provider retries inside the
	// fallback chain can stack, so the turn deadline is enforced here
	// rather than per call. Zero disables the deadline.
	TurnTimeout time.Duration
}

// DefaultConfig returns the production pipeline settings.
func DefaultConfig() Config {
	return Config{
		NResults:            5,
		MemoryTurns:         3,
		BackfillThreshold:   3,
		BackfillPlatforms:   2,
		BackfillPerPlatform: 3,
		Temperature:         0.7,
		MaxTokens:           512,
		TurnTimeout:         60 * time.Second,
	}
}

// noPlatformsMessage is the static response for queries that match nothing.
const noPlatformsMessage = "I couldn't find any platforms matching your question. " +
	"Try asking about tech communities, outdoor groups, or a specific organization by name."

const systemPromptHeader = `You are a helpful guide to community platforms and events for People of Color in tech and outdoor spaces. Answer using only the platform and event context below. Be concrete: name platforms, link websites, and mention dates for events. If the context does not answer the question, say so briefly.`

// =============================================================================
// Session registry
// =============================================================================

// session pairs a conversation memory with a lock serializing its turns.
type session struct {
	mu  sync.Mutex
	mem *conversation.Memory
}

// SessionStore tracks per-session conversation memory.
//
// # Thread Safety
//
// SessionStore is safe for concurrent use. Turns within one session are
// serialized on the session's own lock, so two concurrent requests for the
// same session cannot interleave memory updates.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	maxTurns int
}

// NewSessionStore creates a registry whose sessions retain maxTurns turns.
func NewSessionStore(maxTurns int) *SessionStore {
	return &SessionStore{sessions: make(map[string]*session), maxTurns: maxTurns}
}

func (s *SessionStore) get(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{mem: conversation.NewMemory(s.maxTurns)}
		s.sessions[id] = sess
	}
	return sess
}

// History returns the retained turns for a session, or false if the
// session is unknown.
func (s *SessionStore) History(id string) ([]conversation.Turn, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	history := sess.mem.History()
	out := make([]conversation.Turn, len(history))
	copy(out, history)
	return out, true
}

// Delete removes a session and its memory. Returns false if unknown.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// =============================================================================
// Chat service
// =============================================================================

// Retriever is the platform retrieval capability the pipeline consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string, nResults int, typeFilter string) []datatypes.Platform
}

// EventSearcher is the event capability the pipeline consumes.
type EventSearcher interface {
	SearchEvents(ctx context.Context, query, platformID, eventType string, nResults int) ([]datatypes.Event, error)
	PlatformEvents(ctx context.Context, platformID string, limit int) ([]datatypes.Event, error)
}

// ChatService runs one conversational turn end to end.
//
// # Description
//
// The pipeline per turn: validate input, reformulate context-dependent
// follow-ups, update intent state, run platform retrieval and event search
// concurrently, backfill events for the top platforms when the primary
// event pass under-returns, generate the answer, and record the turn. The
// service is built to never hard-fail a turn: the only user-visible errors
// are the two input-validation messages, and every other failure degrades
// to a shorter or templated answer.
//
// # Example
//
//	svc := NewChatService(retriever, eventSearch, chain, DefaultConfig())
//	result := svc.Chat(ctx, datatypes.ChatRequest{Message: "find hiking groups", SessionId: "sess_1"})
type ChatService struct {
	retriever    Retriever
	eventSearch  EventSearcher
	generator    llm.Client
	reformulator *conversation.Reformulator
	tracker      *conversation.Tracker
	sessions     *SessionStore
	cfg          Config

	mu         sync.Mutex
	turnsTotal int64
}

// NewChatService wires the chat pipeline. generator may be a FallbackChain
// or any single client; a nil generator disables both reformulation and
// LLM answers, leaving templated responses only.
func NewChatService(retriever Retriever, eventSearch EventSearcher, generator llm.Client, cfg Config) *ChatService {
	svc := &ChatService{
		retriever:   retriever,
		eventSearch: eventSearch,
		generator:   generator,
		tracker:     conversation.NewTracker(),
		sessions:    NewSessionStore(cfg.MemoryTurns),
		cfg:         cfg,
	}

	var gen conversation.GenerateFunc
	if generator != nil {
		gen = func(ctx context.Context, system, user string, params llm.GenerationParams) (string, error) {
			res, err := generator.Chat(ctx, system, []datatypes.Message{{Role: datatypes.RoleUser, Content: user}}, params)
			if err != nil {
				return "", err
			}
			return res.Text, nil
		}
	}
	svc.reformulator = conversation.NewReformulator(gen)
	return svc
}

// Sessions exposes the session registry for the HTTP surface.
func (s *ChatService) Sessions() *SessionStore { return s.sessions }

// TurnsTotal returns the number of completed turns since startup.
func (s *ChatService) TurnsTotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnsTotal
}

// Chat executes one turn. The returned result is always well-formed; the
// Error field is set only for the input-validation rejections.
func (s *ChatService) Chat(ctx context.Context, req datatypes.ChatRequest) datatypes.ChatResult {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "ChatService.Chat")
	defer span.End()

	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	req.EnsureDefaults()
	req.EnsureSessionId()
	span.SetAttributes(attribute.String("chat.session_id", req.SessionId))

	// Validation failures short-circuit before any memory is touched.
	if err := req.Validate(); err != nil {
		ie := err.(*datatypes.InputError)
		slog.Info("Rejected chat input", "code", ie.Code, "session_id", req.SessionId)
		observeTurn(observability.TurnStatusValidationError, started)
		return datatypes.ChatResult{
			Response:  ie.Message,
			SessionId: req.SessionId,
			Query:     req.Message,
			Error:     ie.Code,
		}
	}

	sess := s.sessions.get(req.SessionId)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Resolve follow-ups against history, then track intent and entities
	// on the query retrieval will actually see.
	query, rewritten := s.reformulator.Reformulate(ctx, req.Message, sess.mem)
	intent := s.tracker.UpdateState(&sess.mem.State, query)
	span.SetAttributes(
		attribute.Bool("chat.reformulated", rewritten),
		attribute.String("chat.intent", string(intent)),
	)

	platforms, evs := s.searchBoth(ctx, query, req.Message, req.TypeFilter)

	if len(platforms) > 0 && len(evs) < s.cfg.BackfillThreshold {
		evs = s.backfillEvents(ctx, platforms, evs)
	}

	result := datatypes.ChatResult{
		Sources:     platforms,
		Events:      evs,
		Retrieved:   len(platforms),
		EventsFound: len(evs),
		Query:       query,
		SessionId:   req.SessionId,
	}

	names := platformNames(platforms)
	turnStatus := observability.TurnStatusSuccess
	if len(platforms) == 0 {
		// Still recorded as a turn so a follow-up can be reformulated
		// against it.
		result.Response = noPlatformsMessage
		turnStatus = observability.TurnStatusNoResults
	} else {
		result.Response = s.generateAnswer(ctx, query, platforms, evs, sess.mem)
	}

	sess.mem.AddTurn(req.Message, result.Response, names)
	observeTurn(turnStatus, started)
	s.mu.Lock()
	s.turnsTotal++
	s.mu.Unlock()

	slog.Info("Chat turn complete",
		"session_id", req.SessionId,
		"intent", intent,
		"platforms", len(platforms),
		"events", len(evs),
		"reformulated", rewritten,
	)
	return result
}

// searchBoth runs platform retrieval and event search concurrently. Both
// are launched before either is awaited, and an event-search failure never
// cancels or fails the platform side. Events are searched with the user's
// original wording, which tends to carry the date/location cues.
func (s *ChatService) searchBoth(ctx context.Context, query, originalQuery, typeFilter string) ([]datatypes.Platform, []datatypes.Event) {
	var (
		platforms []datatypes.Platform
		evs       []datatypes.Event
	)

	var g errgroup.Group
	g.Go(func() error {
		platforms = s.retriever.Retrieve(ctx, query, s.cfg.NResults, typeFilter)
		return nil
	})
	g.Go(func() error {
		found, err := s.eventSearch.SearchEvents(ctx, originalQuery, "", "", s.cfg.NResults)
		if err != nil {
			slog.Error("Event search failed, continuing without events", "error", err)
			return nil
		}
		evs = found
		return nil
	})
	_ = g.Wait()

	return platforms, evs
}

// backfillEvents probes the top-ranked platforms directly when the primary
// event search under-returns. Per-platform failures are skipped; whatever
// succeeded accumulates. Duplicates are dropped on (title, date).
func (s *ChatService) backfillEvents(ctx context.Context, platforms []datatypes.Platform, evs []datatypes.Event) []datatypes.Event {
	ctx, span := tracer.Start(ctx, "ChatService.backfillEvents")
	defer span.End()

	seen := make(map[datatypes.EventKey]struct{}, len(evs))
	for _, ev := range evs {
		seen[ev.Key()] = struct{}{}
	}

	probes := s.cfg.BackfillPlatforms
	if probes > len(platforms) {
		probes = len(platforms)
	}
	for _, p := range platforms[:probes] {
		found, err := s.eventSearch.PlatformEvents(ctx, p.ID, s.cfg.BackfillPerPlatform)
		if err != nil {
			slog.Warn("Event backfill failed for platform, skipping", "platform_id", p.ID, "error", err)
			continue
		}
		for _, ev := range found {
			if _, dup := seen[ev.Key()]; dup {
				continue
			}
			seen[ev.Key()] = struct{}{}
			evs = append(evs, ev)
		}
	}

	span.SetAttributes(attribute.Int("chat.events_after_backfill", len(evs)))
	return evs
}

// generateAnswer asks the LLM for a grounded response, falling back to the
// deterministic template when every provider fails.
func (s *ChatService) generateAnswer(ctx context.Context, query string, platforms []datatypes.Platform, evs []datatypes.Event, mem *conversation.Memory) string {
	if s.generator == nil {
		return templatedAnswer(platforms, evs)
	}

	system := buildSystemPrompt(platforms, evs)
	messages := append(mem.FormatForLLM(), datatypes.Message{Role: datatypes.RoleUser, Content: query})

	res, err := s.generator.Chat(ctx, system, messages, llm.GenerationParams{
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		slog.Error("Answer generation failed, serving templated response", "error", err)
		return templatedAnswer(platforms, evs)
	}
	return strings.TrimSpace(res.Text)
}

// buildSystemPrompt renders the retrieved context the generator must stay
// grounded in.
func buildSystemPrompt(platforms []datatypes.Platform, evs []datatypes.Event) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n\nPLATFORMS:\n")
	for _, p := range platforms {
		fmt.Fprintf(&b, "- %s (%s): %s", p.Name, p.Type, p.Description)
		if p.Website != "" {
			fmt.Fprintf(&b, " Website: %s", p.Website)
		}
		if len(p.KeyPrograms) > 0 {
			fmt.Fprintf(&b, " Programs: %s", strings.Join(p.KeyPrograms, ", "))
		}
		b.WriteString("\n")
	}

	if len(evs) > 0 {
		b.WriteString("\nUPCOMING EVENTS:\n")
		for _, ev := range evs {
			fmt.Fprintf(&b, "- %s", ev.Title)
			if ev.Date != "" {
				fmt.Fprintf(&b, " on %s", ev.Date)
			}
			if ev.Location != "" {
				fmt.Fprintf(&b, " in %s", ev.Location)
			}
			if ev.OrgName != "" {
				fmt.Fprintf(&b, " (by %s)", ev.OrgName)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// templatedAnswer is the deterministic fallback when no generator is
// available. Degraded but grounded: names the platforms and events found.
func templatedAnswer(platforms []datatypes.Platform, evs []datatypes.Event) string {
	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for _, p := range platforms {
		fmt.Fprintf(&b, "\n- %s (%s)", p.Name, p.Type)
		if p.Description != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		if p.Website != "" {
			fmt.Fprintf(&b, " (%s)", p.Website)
		}
	}
	if len(evs) > 0 {
		b.WriteString("\n\nUpcoming events:\n")
		for _, ev := range evs {
			fmt.Fprintf(&b, "\n- %s", ev.Title)
			if ev.Date != "" {
				fmt.Fprintf(&b, " on %s", ev.Date)
			}
		}
	}
	return b.String()
}

// observeTurn feeds the Prometheus turn counters when metrics are enabled.
func observeTurn(status observability.TurnStatus, started time.Time) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordTurn(status, time.Since(started).Seconds())
	}
}

func platformNames(platforms []datatypes.Platform) []string {
	if len(platforms) == 0 {
		return nil
	}
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = p.Name
	}
	return names
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the chat and session handlers

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/services"
	"github.com/jfrank94/afroadv-chatbot/services/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRetriever struct {
	platforms []datatypes.Platform
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, _ int, _ string) []datatypes.Platform {
	return s.platforms
}

type stubEvents struct{}

func (stubEvents) SearchEvents(_ context.Context, _, _, _ string, _ int) ([]datatypes.Event, error) {
	return []datatypes.Event{
		{Title: "Summit", Date: "2099-01-01"},
		{Title: "Mixer", Date: "2099-02-01"},
		{Title: "Hike", Date: "2099-03-01"},
	}, nil
}

func (stubEvents) PlatformEvents(_ context.Context, _ string, _ int) ([]datatypes.Event, error) {
	return nil, nil
}

type stubLLM struct{}

func (stubLLM) Name() string { return "stub" }

func (stubLLM) Chat(_ context.Context, _ string, _ []datatypes.Message, _ llm.GenerationParams) (*llm.Result, error) {
	return &llm.Result{Text: "Here are some communities."}, nil
}

func newTestRouter() (*gin.Engine, *services.ChatService) {
	svc := services.NewChatService(
		&stubRetriever{platforms: []datatypes.Platform{
			{ID: "techqueria", Name: "Techqueria", Type: datatypes.PlatformTypeTech},
		}},
		stubEvents{},
		stubLLM{},
		services.DefaultConfig(),
	)

	router := gin.New()
	router.POST("/v1/chat", HandleChat(svc))
	sessions := router.Group("/v1/sessions")
	sessions.GET("/:sessionId/history", GetSessionHistory(svc))
	sessions.DELETE("/:sessionId", DeleteSession(svc))
	return router, svc
}

func postChat(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Chat Handler Tests
// =============================================================================

func TestHandleChat_HappyPath(t *testing.T) {
	router, _ := newTestRouter()

	w := postChat(t, router, gin.H{"message": "find tech communities", "session_id": "sess_1"})
	assert.Equal(t, http.StatusOK, w.Code)

	var result datatypes.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Here are some communities.", result.Response)
	assert.Equal(t, "sess_1", result.SessionId)
	assert.Equal(t, 1, result.Retrieved)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "Techqueria", result.Sources[0].Name)
}

func TestHandleChat_MalformedBody(t *testing.T) {
	router, _ := newTestRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/chat", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChat_EmptyQueryRejected(t *testing.T) {
	router, _ := newTestRouter()

	w := postChat(t, router, gin.H{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result datatypes.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, datatypes.ErrCodeEmptyQuery, result.Error)
}

func TestHandleChat_SessionIDGeneratedWhenAbsent(t *testing.T) {
	router, _ := newTestRouter()

	w := postChat(t, router, gin.H{"message": "outdoor groups"})
	require.Equal(t, http.StatusOK, w.Code)

	var result datatypes.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.NotEmpty(t, result.SessionId)
	assert.Contains(t, result.SessionId, "sess_")
}

func TestHandleChat_SourcesStrippedOnRequest(t *testing.T) {
	router, _ := newTestRouter()

	w := postChat(t, router, gin.H{"message": "tech groups", "include_sources": false})
	require.Equal(t, http.StatusOK, w.Code)

	var result datatypes.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.Events)
	// The counts still reflect what retrieval found.
	assert.Equal(t, 1, result.Retrieved)
	assert.Equal(t, 3, result.EventsFound)
}

// =============================================================================
// Session Handler Tests
// =============================================================================

func TestGetSessionHistory(t *testing.T) {
	router, _ := newTestRouter()
	postChat(t, router, gin.H{"message": "tech groups", "session_id": "sess_h"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions/sess_h/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		SessionID string `json:"session_id"`
		Turns     []struct {
			User      string   `json:"user"`
			Assistant string   `json:"assistant"`
			Platforms []string `json:"platforms"`
		} `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Turns, 1)
	assert.Equal(t, "tech groups", response.Turns[0].User)
	assert.Equal(t, []string{"Techqueria"}, response.Turns[0].Platforms)
}

func TestGetSessionHistory_UnknownSession(t *testing.T) {
	router, _ := newTestRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/sessions/nope/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSession(t *testing.T) {
	router, _ := newTestRouter()
	postChat(t, router, gin.H{"message": "tech groups", "session_id": "sess_del"})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/sessions/sess_del", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/v1/sessions/sess_del", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

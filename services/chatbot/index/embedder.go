// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index wraps the vector database and the embedding service behind
// small interfaces the retrieval layer can be tested against.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Embedder converts text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HTTPEmbedder calls the sidecar embedding service.
//
// # Description
//
// The embedding model runs in its own container behind a tiny HTTP API.
// POST /embed with {"text": ...} returns {"embedding": [...]}. Keeping the
// model out of process means the Go service stays small and the model can
// be swapped without a rebuild.
type HTTPEmbedder struct {
	baseURL    string
	httpClient *http.Client
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewHTTPEmbedder creates an embedder against baseURL. An empty baseURL
// falls back to EMBEDDING_SERVICE_URL, then to the compose-network default.
func NewHTTPEmbedder(baseURL string) *HTTPEmbedder {
	if baseURL == "" {
		baseURL = os.Getenv("EMBEDDING_SERVICE_URL")
	}
	if baseURL == "" {
		baseURL = "http://embeddings:8000"
		slog.Info("EMBEDDING_SERVICE_URL not set, defaulting to", "url", baseURL)
	}
	return &HTTPEmbedder{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Embed implements the Embedder interface.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embed", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding service unreachable: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp embedResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing embed response: %w", err)
	}
	if apiResp.Error != "" {
		return nil, fmt.Errorf("embedding service error: %s", apiResp.Error)
	}
	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}

	return apiResp.Embedding, nil
}

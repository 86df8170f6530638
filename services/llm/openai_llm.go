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
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/datatypes"
)

const (
	cerebrasBaseURL = "https://api.cerebras.ai/v1"
	deepseekBaseURL = "https://api.deepseek.com"

	defaultCerebrasModel = "llama3.1-70b"
	defaultDeepSeekModel = "deepseek-chat"
)

// CompatClient targets any OpenAI-compatible chat completion endpoint.
// Both fallback providers (Cerebras, DeepSeek) speak this dialect, so one
// implementation covers them.
type CompatClient struct {
	client *openai.Client
	name   string
	model  string
}

// NewCerebrasClient builds a client for the Cerebras inference API using
// CEREBRAS_API_KEY and CEREBRAS_MODEL from the environment.
func NewCerebrasClient() (*CompatClient, error) {
	return newCompatClient("cerebras", cerebrasBaseURL, "CEREBRAS_API_KEY", "CEREBRAS_MODEL", defaultCerebrasModel)
}

// NewDeepSeekClient builds a client for the DeepSeek API using
// DEEPSEEK_API_KEY and DEEPSEEK_MODEL from the environment.
func NewDeepSeekClient() (*CompatClient, error) {
	return newCompatClient("deepseek", deepseekBaseURL, "DEEPSEEK_API_KEY", "DEEPSEEK_MODEL", defaultDeepSeekModel)
}

func newCompatClient(name, baseURL, keyEnv, modelEnv, defaultModel string) (*CompatClient, error) {
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		secretPath := "/run/secrets/" + strings.ToLower(keyEnv)
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read API Key from Podman Secrets", "provider", name)
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", keyEnv)
	}

	model := os.Getenv(modelEnv)
	if model == "" {
		model = defaultModel
		slog.Warn("Model not set, using default", "provider", name, "model", model)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	slog.Info("Initializing OpenAI-compatible client", "provider", name, "model", model)
	return &CompatClient{
		client: openai.NewClientWithConfig(cfg),
		name:   name,
		model:  model,
	}, nil
}

// Name implements the Client interface.
func (c *CompatClient) Name() string { return c.name }

// Chat implements the Client interface.
func (c *CompatClient) Chat(ctx context.Context, system string, messages []datatypes.Message, params GenerationParams) (*Result, error) {
	slog.Debug("Generating text via OpenAI-compatible API", "provider", c.name, "model", c.model)

	apiMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    apiMessages,
		Temperature: params.Temperature,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = params.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{
				Provider:   c.name,
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		}
		slog.Error("OpenAI-compatible API call failed", "provider", c.name, "error", err)
		return nil, fmt.Errorf("%s API call failed: %w", c.name, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		slog.Warn("Provider returned no choices or empty content", "provider", c.name)
		return nil, fmt.Errorf("%s returned no usable completion", c.name)
	}

	slog.Debug("Received response", "provider", c.name, "finish_reason", resp.Choices[0].FinishReason)
	return &Result{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command chatbot starts the AfroAdventurers discovery chatbot HTTP server.
//
// This is the main entry point for the containerized chatbot service. It
// reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - CHATBOT_PORT: HTTP server port (default: 12310)
//   - PLATFORM_CATALOG_PATH: platform JSON file (default: ./data/platforms.json)
//   - QDRANT_HOST / QDRANT_PORT: vector DB gRPC endpoint (default: localhost:6334)
//   - EMBEDDING_SERVICE_URL: embedding sidecar URL
//   - ANTHROPIC_API_KEY / CEREBRAS_API_KEY / DEEPSEEK_API_KEY: LLM providers
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: afroadv-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o chatbot ./cmd/chatbot
//
//	# Run
//	./chatbot
//
//	# Or via container
//	podman-compose up chatbot
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := chatbot.Config{
		Port:         getEnvInt("CHATBOT_PORT", 12310),
		CatalogPath:  getEnvString("PLATFORM_CATALOG_PATH", "./data/platforms.json"),
		QdrantHost:   getEnvString("QDRANT_HOST", "localhost"),
		QdrantPort:   getEnvInt("QDRANT_PORT", 6334),
		EmbeddingURL: os.Getenv("EMBEDDING_SERVICE_URL"),
		OTelEndpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "afroadv-otel-collector:4317"),
	}

	slog.Info("Starting chatbot",
		"port", cfg.Port,
		"catalog", cfg.CatalogPath,
		"qdrant_host", cfg.QdrantHost,
	)

	svc, err := chatbot.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create chatbot service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Chatbot error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

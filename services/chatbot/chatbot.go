// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chatbot assembles the discovery chatbot service: platform
// catalog, Qdrant-backed retrieval, event search, the LLM fallback chain,
// conversation state, and the HTTP surface that exposes them.
package chatbot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jfrank94/afroadv-chatbot/services/chatbot/events"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/index"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/observability"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/retrieval"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/routes"
	"github.com/jfrank94/afroadv-chatbot/services/chatbot/services"
	"github.com/jfrank94/afroadv-chatbot/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the chatbot service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds chatbot service configuration.
//
// # Description
//
// Values can be populated from environment variables, config files, or
// programmatically for testing. Zero values use defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12310
	Port int

	// CatalogPath is the platform catalog JSON file.
	// Default: "./data/platforms.json"
	CatalogPath string

	// QdrantHost and QdrantPort locate the vector database (gRPC).
	// Defaults: "localhost", 6334.
	QdrantHost string
	QdrantPort int

	// EmbeddingURL is the sidecar embedding service.
	// If empty, EMBEDDING_SERVICE_URL decides.
	EmbeddingURL string

	// VectorSize is the embedding dimension. Default: 384.
	VectorSize uint64

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "afroadv-otel-collector:4317"
	OTelEndpoint string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// DisableMetrics turns off Prometheus metrics registration. The zero
	// value keeps metrics on.
	DisableMetrics bool

	// Chat tunes the per-turn pipeline. Zero value uses
	// services.DefaultConfig().
	Chat services.Config
}

// Collection names in Qdrant.
const (
	PlatformCollection = "platforms"
	EventCollection    = "events"
)

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	router        *gin.Engine
	catalog       *retrieval.Catalog
	chain         *llm.FallbackChain
	chatService   *services.ChatService
	eventSearch   *events.Search
	tracerCleanup func(context.Context)
}

// New creates a chatbot Service with the given configuration.
//
// # Description
//
// New initializes all components in dependency order:
//  1. Applies defaults for missing configuration.
//  2. Initializes OpenTelemetry tracing.
//  3. Loads the platform catalog from disk.
//  4. Connects to Qdrant and ensures both collections exist.
//  5. Assembles the LLM fallback chain from available API keys.
//  6. Wires retrieval, event search, and the chat pipeline.
//  7. Registers HTTP routes.
//
// # Outputs
//
//   - Service: Ready-to-run chatbot service.
//   - error: Non-nil if the catalog or Qdrant is unavailable.
//
// # Assumptions
//
//   - Qdrant and the embedding sidecar are reachable if configured.
//   - LLM API keys are optional; with none set, answers fall back to
//     deterministic templates.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if !s.config.DisableMetrics {
		observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	s.catalog, err = retrieval.LoadCatalog(s.config.CatalogPath)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to load platform catalog: %w", err)
	}
	slog.Info("Loaded platform catalog", "path", s.config.CatalogPath, "platforms", s.catalog.Len())

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host: s.config.QdrantHost,
		Port: s.config.QdrantPort,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	platformIndex := index.NewIndex(qdrantClient, PlatformCollection, s.config.VectorSize)
	eventIndex := index.NewIndex(qdrantClient, EventCollection, s.config.VectorSize)
	ctx := context.Background()
	if err := platformIndex.EnsureCollection(ctx); err != nil {
		s.cleanup()
		return nil, err
	}
	if err := eventIndex.EnsureCollection(ctx); err != nil {
		s.cleanup()
		return nil, err
	}

	embedder := index.NewHTTPEmbedder(s.config.EmbeddingURL)
	s.chain = llm.NewChainFromEnv()
	slog.Info("LLM fallback chain assembled", "providers", s.chain.Providers())

	retriever := retrieval.NewHybridRetriever(embedder, platformIndex, s.catalog, retrieval.DefaultConfig())
	s.eventSearch = events.NewSearch(embedder, eventIndex)
	s.chatService = services.NewChatService(retriever, s.eventSearch, s.chain, s.config.Chat)

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting chatbot server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "./data/platforms.json"
	}
	if cfg.QdrantHost == "" {
		cfg.QdrantHost = "localhost"
	}
	if cfg.QdrantPort == 0 {
		cfg.QdrantPort = 6334
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = 384
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "afroadv-otel-collector:4317"
	}
	if cfg.Chat == (services.Config{}) {
		cfg.Chat = services.DefaultConfig()
	}
	return cfg
}

// initTracer sets up the OTLP trace exporter.
//
// # Limitations
//
//   - Uses insecure gRPC, appropriate for internal networks only.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chatbot-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("chatbot-service"))

	routes.SetupRoutes(s.router, s.chatService, s.catalog, s.eventSearch, s.chain)
}

func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)

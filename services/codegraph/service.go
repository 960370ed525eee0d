// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codegraph wires the code knowledge graph service together: the
// Weaviate-backed graph store, the structural extractors, the retrieval
// engine, the query cache, and the HTTP surface.
package codegraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/codegraph/services/codegraph/cache"
	"github.com/AleutianAI/codegraph/services/codegraph/embeddings"
	"github.com/AleutianAI/codegraph/services/codegraph/extract"
	"github.com/AleutianAI/codegraph/services/codegraph/handlers"
	"github.com/AleutianAI/codegraph/services/codegraph/llm"
	"github.com/AleutianAI/codegraph/services/codegraph/retrieval"
	"github.com/AleutianAI/codegraph/services/codegraph/routes"
	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
	"github.com/AleutianAI/codegraph/services/codegraph/weaviate"
)

// Service defines the contract for the codegraph service.
//
// Run() blocks and should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// Config holds codegraph service configuration options.
//
// All fields are optional except WeaviateURL; defaults are applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug".
	GinMode string

	// WeaviateURL is the Weaviate vector database URL. Required.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// EmbeddingDimension is the vector size of both named indexes.
	// Default: 768
	EmbeddingDimension int

	// EmbeddingBackend selects the embedder: "local" or "openai".
	// Default: "local"
	EmbeddingBackend string

	// EmbeddingServiceURL is the local embedding service base URL.
	// Required when EmbeddingBackend is "local".
	EmbeddingServiceURL string

	// LLMBackend selects the summarization LLM provider.
	// Valid values: "local", "openai", "ollama". Default: "local"
	LLMBackend string

	// CachePath is the on-disk query cache directory. Empty means an
	// in-memory cache.
	CachePath string

	// CacheTTL is the lifetime of cached query results.
	// Default: cache.DefaultTTL
	CacheTTL time.Duration

	// CacheDisabled turns the query cache off entirely.
	CacheDisabled bool

	// Telemetry configures tracing and metrics. Zero value uses
	// telemetry.DefaultConfig() with the service name overridden.
	Telemetry telemetry.Config
}

type service struct {
	config            Config
	router            *gin.Engine
	store             *weaviate.Store
	engine            *retrieval.Engine
	queryCache        *cache.QueryCache
	hub               *handlers.StatusHub
	metrics           *telemetry.Metrics
	telemetryShutdown func(context.Context) error
}

// New creates a codegraph Service with the given configuration.
//
// Initialization order matters: telemetry first so every later component
// picks up the global tracer and meter, then the store (fails fast when
// Weaviate is unreachable), then the retrieval stack and HTTP surface.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
		hub:    handlers.NewStatusHub(),
	}

	ctx := context.Background()

	shutdown, err := telemetry.Init(ctx, s.config.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	s.metrics, err = telemetry.NewMetrics(otel.Meter("codegraph"))
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	s.store, err = weaviate.New(ctx, weaviate.Config{
		URL:       s.config.WeaviateURL,
		Dimension: s.config.EmbeddingDimension,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("init weaviate store: %w", err)
	}

	embedder, err := s.initEmbedder()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	llmClient, err := s.initLLMClient()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("init LLM client: %w", err)
	}

	s.engine, err = retrieval.NewEngine(embedder, s.store, s.store)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("init retrieval engine: %w", err)
	}

	if !s.config.CacheDisabled {
		s.queryCache, err = cache.Open(cache.Config{
			Path:     s.config.CachePath,
			InMemory: s.config.CachePath == "",
			TTL:      s.config.CacheTTL,
		})
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("open query cache: %w", err)
		}
	}

	pipeline := &handlers.Pipeline{
		Store:    s.store,
		Registry: extract.DefaultRegistry(),
		LLM:      llmClient,
		Embedder: embedder,
		Cache:    s.cacheOrNil(),
		Hub:      s.hub,
		Metrics:  s.metrics,
	}

	s.initRouter(pipeline)
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting codegraph server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.EmbeddingDimension == 0 {
		cfg.EmbeddingDimension = 768
	}
	if cfg.EmbeddingBackend == "" {
		cfg.EmbeddingBackend = "local"
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "local"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.Telemetry == (telemetry.Config{}) {
		cfg.Telemetry = telemetry.DefaultConfig()
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "codegraph"
	}
	return cfg
}

func (s *service) initEmbedder() (embeddings.Embedder, error) {
	switch s.config.EmbeddingBackend {
	case "local":
		if s.config.EmbeddingServiceURL == "" {
			return nil, fmt.Errorf("embedding service URL not configured")
		}
		slog.Info("Using local embedding service", "url", s.config.EmbeddingServiceURL)
		return embeddings.NewLocalClient(s.config.EmbeddingServiceURL), nil
	case "openai":
		slog.Info("Using OpenAI embeddings")
		return embeddings.NewOpenAIEmbedder("", "", s.config.EmbeddingDimension)
	default:
		return nil, fmt.Errorf("unknown embedding backend: %s", s.config.EmbeddingBackend)
	}
}

func (s *service) initLLMClient() (llm.LLMClient, error) {
	switch s.config.LLMBackend {
	case "local":
		slog.Info("Using Local Llama.cpp LLM backend")
		return llm.NewLocalLlamaCppClient()
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient("", "")
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient()
	default:
		slog.Warn("Unknown LLM backend, defaulting to local", "backend", s.config.LLMBackend)
		return llm.NewLocalLlamaCppClient()
	}
}

func (s *service) initRouter(pipeline *handlers.Pipeline) {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("codegraph-service"))

	routes.SetupRoutes(s.router, s.store, s.engine, s.cacheOrNil(), pipeline, s.hub, s.metrics)
}

// cacheOrNil returns the query cache as the handler interface, preserving
// nil-ness so disabled caching stays a true nil interface.
func (s *service) cacheOrNil() handlers.QueryCache {
	if s.queryCache == nil {
		return nil
	}
	return s.queryCache
}

func (s *service) cleanup() {
	if s.queryCache != nil {
		if err := s.queryCache.Close(); err != nil {
			slog.Warn("Query cache close error", "error", err)
		}
	}
	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Warn("Telemetry shutdown error", "error", err)
		}
	}
}

// Compile-time interface compliance.
var _ Service = (*service)(nil)

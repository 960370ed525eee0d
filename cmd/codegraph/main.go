// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codegraph starts the code knowledge graph HTTP server.
//
// It reads configuration from environment variables and blocks until the
// server stops.
//
// # Environment Variables
//
//   - CODEGRAPH_PORT: HTTP server port (default: 12220)
//   - WEAVIATE_SERVICE_URL: Weaviate vector DB URL (required)
//   - EMBEDDING_SERVICE_URL: local embedding service URL
//   - EMBEDDING_BACKEND: embedder - local, openai (default: local)
//   - EMBEDDING_DIMENSION: vector size of both indexes (default: 768)
//   - LLM_BACKEND_TYPE: LLM provider - local, openai, ollama (default: local)
//   - CODEGRAPH_CACHE_PATH: on-disk query cache dir (default: in-memory)
//   - CODEGRAPH_LOG_LEVEL: debug, info, warn, error (default: info)
//   - CODEGRAPH_LOG_DIR: directory for JSON file logs (default: disabled)
//
// # Usage
//
//	# Build
//	go build -o codegraph ./cmd/codegraph
//
//	# Run
//	./codegraph
package main

import (
	"log"
	"os"
	"strconv"

	"github.com/AleutianAI/codegraph/pkg/logging"
	"github.com/AleutianAI/codegraph/services/codegraph"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("CODEGRAPH_LOG_LEVEL")),
		LogDir:  os.Getenv("CODEGRAPH_LOG_DIR"),
		Service: "codegraph",
		JSON:    true,
	})
	defer logger.Close()
	logger.SetDefault()

	cfg := codegraph.Config{
		Port:                getEnvInt("CODEGRAPH_PORT", 12220),
		WeaviateURL:         os.Getenv("WEAVIATE_SERVICE_URL"),
		EmbeddingServiceURL: os.Getenv("EMBEDDING_SERVICE_URL"),
		EmbeddingBackend:    getEnvString("EMBEDDING_BACKEND", "local"),
		EmbeddingDimension:  getEnvInt("EMBEDDING_DIMENSION", 768),
		LLMBackend:          getEnvString("LLM_BACKEND_TYPE", "local"),
		CachePath:           os.Getenv("CODEGRAPH_CACHE_PATH"),
	}

	logger.Slog().Info("Starting codegraph",
		"port", cfg.Port,
		"weaviate_url", cfg.WeaviateURL,
		"embedding_backend", cfg.EmbeddingBackend,
		"llm_backend", cfg.LLMBackend,
	)

	svc, err := codegraph.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create codegraph service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Codegraph error: %v", err)
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

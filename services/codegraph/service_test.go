// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package codegraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/codegraph/services/codegraph/cache"
)

func TestApplyConfigDefaults_ZeroConfig(t *testing.T) {
	cfg := applyConfigDefaults(Config{})

	assert.Equal(t, 12220, cfg.Port)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, "local", cfg.EmbeddingBackend)
	assert.Equal(t, "local", cfg.LLMBackend)
	assert.Equal(t, cache.DefaultTTL, cfg.CacheTTL)
	assert.Equal(t, "codegraph", cfg.Telemetry.ServiceName)
	assert.NotEmpty(t, cfg.Telemetry.MetricExporter)
}

func TestApplyConfigDefaults_ExplicitValuesKept(t *testing.T) {
	cfg := applyConfigDefaults(Config{
		Port:               8080,
		EmbeddingDimension: 1536,
		EmbeddingBackend:   "openai",
		LLMBackend:         "ollama",
		CacheTTL:           time.Minute,
	})

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1536, cfg.EmbeddingDimension)
	assert.Equal(t, "openai", cfg.EmbeddingBackend)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
}

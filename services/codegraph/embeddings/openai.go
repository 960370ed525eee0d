// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no embedding model is configured.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIEmbedder generates embeddings through the OpenAI API, requesting
// vectors truncated to the graph's index dimension.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

// NewOpenAIEmbedder creates an embedder for the given model and dimension.
func NewOpenAIEmbedder(apiKey, model string, dimension int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if model == "" {
		model = DefaultOpenAIModel
		slog.Warn("Embedding model not set, using default", "model", model)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	return &OpenAIEmbedder{
		client:    openai.NewClient(apiKey),
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	vectors, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchEmbed implements Embedder.
func (e *OpenAIEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts is empty", ErrInvalidInput)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      e.model,
		Dimensions: e.dimension,
	})
	if err != nil {
		slog.Error("OpenAI embeddings call failed", "error", err)
		return nil, fmt.Errorf("OpenAI embeddings call failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("OpenAI returned a %d-dim embedding, expected %d",
				len(d.Embedding), e.dimension)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

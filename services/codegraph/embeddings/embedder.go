// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embeddings generates the vectors stored in the knowledge graph's
// ANN indexes. Two backends are provided: a local embeddings service and
// the OpenAI embeddings API. Both produce vectors of the configured
// dimension so they are interchangeable behind the Embedder interface.
package embeddings

import (
	"context"
	"errors"
)

// ErrInvalidInput is returned for nil contexts, empty texts, and other
// caller mistakes.
var ErrInvalidInput = errors.New("invalid input")

// Embedder converts text into dense vectors for similarity search.
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed converts one text into a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed converts multiple texts in one round trip, returning one
	// vector per input in order.
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

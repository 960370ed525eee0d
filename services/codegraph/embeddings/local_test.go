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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClient_BatchEmbed(t *testing.T) {
	// Arrange: a fake embeddings service echoing one vector per text.
	var gotPath string
	var gotReq batchEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		vectors := make([][]float32, len(gotReq.Texts))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 1, 2}
		}
		_ = json.NewEncoder(w).Encode(batchEmbedResponse{
			Model:   "bge-small",
			Vectors: vectors,
			Dim:     3,
		})
	}))
	defer server.Close()

	client := NewLocalClient(server.URL)

	// Act
	vectors, err := client.BatchEmbed(context.Background(), []string{"def foo(): ...", "class Bar: ..."})
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "/batch_embed", gotPath)
	assert.Equal(t, []string{"def foo(): ...", "class Bar: ..."}, gotReq.Texts)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 1, 2}, vectors[0])
}

func TestLocalClient_Embed_EmptyText(t *testing.T) {
	client := NewLocalClient("http://localhost:0")

	_, err := client.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLocalClient_BatchEmbed_VectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(batchEmbedResponse{Vectors: [][]float32{{1}}})
	}))
	defer server.Close()

	client := NewLocalClient(server.URL)

	_, err := client.BatchEmbed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "returned 1 vectors for 2 texts")
}

func TestLocalClient_BatchEmbed_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewLocalClient(server.URL)

	_, err := client.BatchEmbed(context.Background(), []string{"text"})
	assert.ErrorContains(t, err, "status 503")
}

func TestLocalClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(localHealthResponse{Status: "ok", Model: "bge-small"})
	}))
	defer server.Close()

	assert.NoError(t, NewLocalClient(server.URL).Health(context.Background()))
}

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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultLocalTimeout is the default timeout for embedding requests.
const DefaultLocalTimeout = 30 * time.Second

// LocalClient calls a locally hosted embeddings service, the kind that runs
// transformer models like BGE or Qwen behind a small HTTP API.
//
// # Thread Safety
//
// LocalClient is safe for concurrent use.
type LocalClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewLocalClient creates a client for the embeddings service at baseURL,
// e.g. "http://localhost:8000".
func NewLocalClient(baseURL string) *LocalClient {
	return &LocalClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultLocalTimeout,
		},
	}
}

// WithTimeout sets a custom timeout for embedding requests.
func (c *LocalClient) WithTimeout(timeout time.Duration) *LocalClient {
	c.httpClient.Timeout = timeout
	return c
}

// batchEmbedRequest is the request body for the /batch_embed endpoint.
type batchEmbedRequest struct {
	Texts []string `json:"texts"`
}

// batchEmbedResponse is the response from the /batch_embed endpoint.
type batchEmbedResponse struct {
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Model     string      `json:"model"`
	Vectors   [][]float32 `json:"vectors"`
	Dim       int         `json:"dim"`
}

// localHealthResponse is the response from the /health endpoint.
type localHealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// Embed implements Embedder.
func (c *LocalClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}

	vectors, err := c.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding service returned no vectors")
	}
	return vectors[0], nil
}

// BatchEmbed implements Embedder.
func (c *LocalClient) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if ctx == nil {
		return nil, ErrInvalidInput
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts is empty", ErrInvalidInput)
	}

	bodyBytes, err := json.Marshal(batchEmbedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/batch_embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp batchEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(embResp.Vectors) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts",
			len(embResp.Vectors), len(texts))
	}
	return embResp.Vectors, nil
}

// Health checks that the service is up and its model is loaded.
func (c *LocalClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service health returned status %d", resp.StatusCode)
	}

	var health localHealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "ok" && health.Status != "healthy" {
		return fmt.Errorf("embedding service reports status %q", health.Status)
	}
	return nil
}

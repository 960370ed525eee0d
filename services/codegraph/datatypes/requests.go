// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// RepositoryAdd is the body of POST /v1/repositories.
type RepositoryAdd struct {
	// Name uniquely identifies the repository in the graph.
	Name string `json:"name" binding:"required,min=1,max=200"`

	// Path is the local checkout to load files from.
	Path string `json:"path" binding:"required"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query      string `json:"query" binding:"required,min=1,max=2000"`
	TopK       int    `json:"top_k"`
	Repository string `json:"repository,omitempty"`

	// SemanticOnly skips fusion and enrichment for lower latency.
	SemanticOnly bool `json:"semantic_only,omitempty"`
}

// QueryResponse is the response of POST /v1/query.
type QueryResponse struct {
	Query   string          `json:"query"`
	Results []RetrievedNode `json:"results"`
	Cached  bool            `json:"cached"`
}

// Ingestion stages, broadcast over the status WebSocket.
const (
	StatusPending     = "pending"
	StatusLoading     = "loading"
	StatusExtracting  = "extracting"
	StatusIngesting   = "ingesting"
	StatusSummarizing = "summarizing"
	StatusReady       = "ready"
	StatusFailed      = "failed"
)

// RepositoryStatus describes where a repository is in its ingestion
// lifecycle. Progress ranges over [0, 100].
type RepositoryStatus struct {
	Repository string `json:"repository"`
	Stage      string `json:"stage"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

// RepositoryStats is the per-kind node census of one repository.
type RepositoryStats struct {
	Repository string `json:"repository"`
	Files      int    `json:"files"`
	Classes    int    `json:"classes"`
	Functions  int    `json:"functions"`
	Total      int    `json:"total"`
}

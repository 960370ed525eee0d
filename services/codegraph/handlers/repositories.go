// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/weaviate"
)

// RepositoryStore is the slice of the vector store the repository
// administration handlers need.
type RepositoryStore interface {
	FindRepository(ctx context.Context, name string) (*graph.NodeRef, error)
	ListRepositories(ctx context.Context) ([]weaviate.RepositoryInfo, error)
	RepositoryStats(ctx context.Context, repository string) (*datatypes.RepositoryStats, error)
	DeleteRepository(ctx context.Context, repository string) error
}

// inFlight reports whether a repository's last known stage means an
// ingestion run is still working on it.
func inFlight(stage string) bool {
	switch stage {
	case datatypes.StatusReady, datatypes.StatusFailed, "":
		return false
	default:
		return true
	}
}

// AddRepository accepts a repository for ingestion and starts the pipeline
// in the background. The response is 202; progress is observable via the
// status endpoint and the status WebSocket.
func AddRepository(pipeline *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RepositoryAdd
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		info, err := os.Stat(req.Path)
		if err != nil || !info.IsDir() {
			c.JSON(http.StatusBadRequest,
				gin.H{"error": "path does not exist or is not a directory"})
			return
		}

		if status, ok := pipeline.Hub.Get(req.Name); ok && inFlight(status.Stage) {
			c.JSON(http.StatusConflict,
				gin.H{"error": "ingestion already in progress for this repository"})
			return
		}

		pipeline.Hub.Set(datatypes.RepositoryStatus{
			Repository: req.Name,
			Stage:      datatypes.StatusPending,
		})
		slog.Info("Accepted repository for ingestion", "name", req.Name, "path", req.Path)

		// The request context dies with the response; ingestion outlives it.
		go pipeline.Run(context.Background(), req.Name, req.Path)

		c.JSON(http.StatusAccepted, gin.H{
			"status":     "accepted",
			"repository": req.Name,
		})
	}
}

// ListRepositories returns every repository root in the graph.
func ListRepositories(store RepositoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		repos, err := store.ListRepositories(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list repositories", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list repositories"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"repositories": repos})
	}
}

// GetRepositoryStatus returns the ingestion status of one repository.
//
// Repositories ingested before this process started have no hub entry; if
// the root node exists in the graph they are reported as ready.
func GetRepositoryStatus(hub *StatusHub, store RepositoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		if status, ok := hub.Get(name); ok {
			c.JSON(http.StatusOK, status)
			return
		}

		ref, err := store.FindRepository(c.Request.Context(), name)
		if err != nil {
			slog.Error("Failed to look up repository", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up repository"})
			return
		}
		if ref == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
			return
		}

		c.JSON(http.StatusOK, datatypes.RepositoryStatus{
			Repository: name,
			Stage:      datatypes.StatusReady,
			Progress:   100,
		})
	}
}

// GetRepositoryStats returns the per-kind node census of one repository.
func GetRepositoryStats(store RepositoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		ref, err := store.FindRepository(c.Request.Context(), name)
		if err != nil {
			slog.Error("Failed to look up repository", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up repository"})
			return
		}
		if ref == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
			return
		}

		stats, err := store.RepositoryStats(c.Request.Context(), name)
		if err != nil {
			slog.Error("Failed to compute repository stats", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute repository stats"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// DeleteRepository removes a repository and its entire subgraph, then drops
// any cached query results that may reference it.
func DeleteRepository(store RepositoryStore, cache QueryCache, hub *StatusHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")

		if status, ok := hub.Get(name); ok && inFlight(status.Stage) {
			c.JSON(http.StatusConflict,
				gin.H{"error": "ingestion in progress, try again later"})
			return
		}

		ref, err := store.FindRepository(c.Request.Context(), name)
		if err != nil {
			slog.Error("Failed to look up repository", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up repository"})
			return
		}
		if ref == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "repository not found"})
			return
		}

		if err := store.DeleteRepository(c.Request.Context(), name); err != nil {
			slog.Error("Failed to delete repository", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete repository"})
			return
		}

		if cache != nil {
			if err := cache.InvalidateRepository(name); err != nil {
				slog.Warn("Failed to invalidate query cache", "name", name, "error", err)
			}
		}
		hub.Delete(name)

		slog.Info("Deleted repository", "name", name)
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "repository": name})
	}
}

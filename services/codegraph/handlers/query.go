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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
	"github.com/AleutianAI/codegraph/services/codegraph/retrieval"
	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
)

// Retriever is the slice of the retrieval engine the query handler needs.
type Retriever interface {
	RetrieveTopK(ctx context.Context, query string, topK int, repository string) ([]datatypes.RetrievedNode, error)
	RetrieveSemantic(ctx context.Context, query string, topK int, repository string) ([]datatypes.RetrievedNode, error)
}

// QueryCache is the slice of the query cache the handlers need. May be nil
// when caching is disabled.
type QueryCache interface {
	Get(query string, topK int, repository string) ([]datatypes.RetrievedNode, bool)
	Set(query string, topK int, repository string, results []datatypes.RetrievedNode) error
	InvalidateRepository(repository string) error
}

// HandleQuery runs a retrieval query against the code graph.
//
// Fused queries are served from the cache when possible; semantic-only
// queries bypass the cache because their result sets differ from the fused
// ones under the same key.
func HandleQuery(engine Retriever, cache QueryCache, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.QueryRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "codegraph.query")
		defer span.End()

		mode := "fused"
		if req.SemanticOnly {
			mode = "semantic"
		}
		span.SetAttributes(
			attribute.String("query.mode", mode),
			attribute.Int("query.top_k", req.TopK),
			attribute.String("query.repository", req.Repository),
		)

		if cache != nil && !req.SemanticOnly {
			if results, ok := cache.Get(req.Query, req.TopK, req.Repository); ok {
				recordCacheHit(ctx, metrics)
				c.JSON(http.StatusOK, datatypes.QueryResponse{
					Query:   req.Query,
					Results: results,
					Cached:  true,
				})
				return
			}
			recordCacheMiss(ctx, metrics)
		}

		start := time.Now()
		var results []datatypes.RetrievedNode
		var err error
		if req.SemanticOnly {
			results, err = engine.RetrieveSemantic(ctx, req.Query, req.TopK, req.Repository)
		} else {
			results, err = engine.RetrieveTopK(ctx, req.Query, req.TopK, req.Repository)
		}
		recordRetrieval(ctx, metrics, mode, time.Since(start), err)

		if err != nil {
			if errors.Is(err, retrieval.ErrEmptyQuery) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			slog.Error("Retrieval failed", "query", req.Query, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "retrieval failed"})
			return
		}

		if cache != nil && !req.SemanticOnly {
			if err := cache.Set(req.Query, req.TopK, req.Repository, results); err != nil {
				slog.Warn("Failed to cache query results", "error", err)
			}
		}

		c.JSON(http.StatusOK, datatypes.QueryResponse{
			Query:   req.Query,
			Results: results,
			Cached:  false,
		})
	}
}

func recordCacheHit(ctx context.Context, m *telemetry.Metrics) {
	if m != nil {
		m.CacheHitsTotal.Add(ctx, 1)
	}
}

func recordCacheMiss(ctx context.Context, m *telemetry.Metrics) {
	if m != nil {
		m.CacheMissesTotal.Add(ctx, 1)
	}
}

func recordRetrieval(ctx context.Context, m *telemetry.Metrics, mode string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	m.RetrievalQueriesTotal.Add(ctx, 1, attrs)
	m.RetrievalDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the codegraph service.
//
// Description:
//
//	Provides standard counters, histograms, and gauges for HTTP requests,
//	repository ingestion, retrieval queries, query caching, and Weaviate
//	interactions. All metrics use the "codegraph_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks currently active HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Ingestion Metrics ---

	// IngestRunsTotal counts ingestion runs by status.
	IngestRunsTotal metric.Int64Counter

	// IngestDuration records full repository ingestion duration in seconds.
	IngestDuration metric.Float64Histogram

	// IngestFilesTotal counts source files processed during ingestion.
	IngestFilesTotal metric.Int64Counter

	// IngestNodesTotal counts graph nodes created by kind.
	IngestNodesTotal metric.Int64Counter

	// SummariesTotal counts summary enrichment outcomes by status.
	SummariesTotal metric.Int64Counter

	// --- Retrieval Metrics ---

	// RetrievalQueriesTotal counts retrieval queries by mode and status.
	RetrievalQueriesTotal metric.Int64Counter

	// RetrievalDuration records retrieval query duration in seconds.
	RetrievalDuration metric.Float64Histogram

	// CacheHitsTotal counts query cache hits.
	CacheHitsTotal metric.Int64Counter

	// CacheMissesTotal counts query cache misses.
	CacheMissesTotal metric.Int64Counter

	// --- Weaviate Metrics ---

	// WeaviateRequestsTotal counts total Weaviate operations by type and status.
	WeaviateRequestsTotal metric.Int64Counter

	// WeaviateRequestDuration records Weaviate operation duration in seconds.
	WeaviateRequestDuration metric.Float64Histogram

	// --- Error Metrics ---

	// ErrorsTotal counts total errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers all pre-defined metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all instruments initialized.
//	error - Non-nil if metric registration fails.
//
// Example:
//
//	meter := otel.Meter("codegraph")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.RetrievalQueriesTotal.Add(ctx, 1, ...)
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- HTTP Metrics ---
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"codegraph_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"codegraph_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"codegraph_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	// --- Ingestion Metrics ---
	m.IngestRunsTotal, err = meter.Int64Counter(
		"codegraph_ingest_runs_total",
		metric.WithDescription("Total repository ingestion runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest_runs_total: %w", err)
	}

	m.IngestDuration, err = meter.Float64Histogram(
		"codegraph_ingest_duration_seconds",
		metric.WithDescription("Repository ingestion duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300, 600),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest_duration: %w", err)
	}

	m.IngestFilesTotal, err = meter.Int64Counter(
		"codegraph_ingest_files_total",
		metric.WithDescription("Total source files processed during ingestion"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest_files_total: %w", err)
	}

	m.IngestNodesTotal, err = meter.Int64Counter(
		"codegraph_ingest_nodes_total",
		metric.WithDescription("Total graph nodes created by kind"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ingest_nodes_total: %w", err)
	}

	m.SummariesTotal, err = meter.Int64Counter(
		"codegraph_summaries_total",
		metric.WithDescription("Total summary enrichment outcomes"),
		metric.WithUnit("{summary}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create summaries_total: %w", err)
	}

	// --- Retrieval Metrics ---
	m.RetrievalQueriesTotal, err = meter.Int64Counter(
		"codegraph_retrieval_queries_total",
		metric.WithDescription("Total retrieval queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retrieval_queries_total: %w", err)
	}

	m.RetrievalDuration, err = meter.Float64Histogram(
		"codegraph_retrieval_duration_seconds",
		metric.WithDescription("Retrieval query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create retrieval_duration: %w", err)
	}

	m.CacheHitsTotal, err = meter.Int64Counter(
		"codegraph_cache_hits_total",
		metric.WithDescription("Total query cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_hits_total: %w", err)
	}

	m.CacheMissesTotal, err = meter.Int64Counter(
		"codegraph_cache_misses_total",
		metric.WithDescription("Total query cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_misses_total: %w", err)
	}

	// --- Weaviate Metrics ---
	m.WeaviateRequestsTotal, err = meter.Int64Counter(
		"codegraph_weaviate_requests_total",
		metric.WithDescription("Total Weaviate operations"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create weaviate_requests_total: %w", err)
	}

	m.WeaviateRequestDuration, err = meter.Float64Histogram(
		"codegraph_weaviate_request_duration_seconds",
		metric.WithDescription("Weaviate operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("create weaviate_request_duration: %w", err)
	}

	// --- Error Metrics ---
	m.ErrorsTotal, err = meter.Int64Counter(
		"codegraph_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

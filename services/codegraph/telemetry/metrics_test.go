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
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	if metrics.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if metrics.HTTPRequestDuration == nil {
		t.Error("HTTPRequestDuration is nil")
	}
	if metrics.HTTPActiveRequests == nil {
		t.Error("HTTPActiveRequests is nil")
	}
	if metrics.IngestRunsTotal == nil {
		t.Error("IngestRunsTotal is nil")
	}
	if metrics.IngestDuration == nil {
		t.Error("IngestDuration is nil")
	}
	if metrics.IngestFilesTotal == nil {
		t.Error("IngestFilesTotal is nil")
	}
	if metrics.IngestNodesTotal == nil {
		t.Error("IngestNodesTotal is nil")
	}
	if metrics.SummariesTotal == nil {
		t.Error("SummariesTotal is nil")
	}
	if metrics.RetrievalQueriesTotal == nil {
		t.Error("RetrievalQueriesTotal is nil")
	}
	if metrics.RetrievalDuration == nil {
		t.Error("RetrievalDuration is nil")
	}
	if metrics.CacheHitsTotal == nil {
		t.Error("CacheHitsTotal is nil")
	}
	if metrics.CacheMissesTotal == nil {
		t.Error("CacheMissesTotal is nil")
	}
	if metrics.WeaviateRequestsTotal == nil {
		t.Error("WeaviateRequestsTotal is nil")
	}
	if metrics.WeaviateRequestDuration == nil {
		t.Error("WeaviateRequestDuration is nil")
	}
	if metrics.ErrorsTotal == nil {
		t.Error("ErrorsTotal is nil")
	}
}

func TestInitUnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "bogus"

	if _, err := Init(context.Background(), cfg); err == nil {
		t.Fatal("Init() expected error for unknown metric exporter")
	}
}

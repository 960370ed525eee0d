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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
	"github.com/AleutianAI/codegraph/services/codegraph/embeddings"
	"github.com/AleutianAI/codegraph/services/codegraph/extract"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/llm"
	"github.com/AleutianAI/codegraph/services/codegraph/loader"
	"github.com/AleutianAI/codegraph/services/codegraph/summarize"
	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
)

// PipelineStore is everything the ingestion pipeline needs from the vector
// store: node persistence for the ingestor plus the enrichment sweep.
type PipelineStore interface {
	graph.Store
	summarize.Store
}

// Pipeline runs the full repository ingestion flow: load files, extract
// structure, persist the graph, then enrich it with summaries and vectors.
//
// Run is expected to be called on its own goroutine; progress is reported
// through Hub. Cache and Metrics may be nil.
type Pipeline struct {
	Store    PipelineStore
	Registry *extract.Registry
	LLM      llm.LLMClient
	Embedder embeddings.Embedder
	Cache    QueryCache
	Hub      *StatusHub
	Metrics  *telemetry.Metrics
}

// Progress checkpoints per stage. Summarization interpolates between its
// start and 99 as nodes complete.
const (
	progressLoading     = 5
	progressExtracting  = 15
	progressIngesting   = 40
	progressSummarizing = 70
)

// Run executes the pipeline for one repository checkout.
//
// Failures before the graph is written mark the repository failed and stop.
// Per-file extraction failures and per-node enrichment failures are logged
// and skipped; the repository still becomes ready.
func (p *Pipeline) Run(ctx context.Context, name, path string) {
	runID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "codegraph.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("repository", name),
		attribute.String("run_id", runID),
	)
	slog.Info("Starting ingestion run", "repository", name, "run_id", runID, "path", path)

	start := time.Now()
	if err := p.run(ctx, name, path); err != nil {
		slog.Error("Ingestion failed", "repository", name, "run_id", runID, "error", err)
		p.setStage(name, datatypes.StatusFailed, 100, "", err)
		p.recordRun(ctx, "error", time.Since(start))
		return
	}
	p.setStage(name, datatypes.StatusReady, 100, "", nil)
	p.recordRun(ctx, "ok", time.Since(start))
}

func (p *Pipeline) run(ctx context.Context, name, path string) error {
	// --- Load ---
	p.setStage(name, datatypes.StatusLoading, progressLoading, "", nil)

	docs, err := loader.New(p.Registry.Extensions()).Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load repository files: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported source files under %s", path)
	}
	slog.Info("Loaded repository files", "repository", name, "files", len(docs))

	// --- Extract ---
	p.setStage(name, datatypes.StatusExtracting, progressExtracting,
		fmt.Sprintf("%d files", len(docs)), nil)

	trees := make([]*datatypes.FileTree, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		extractor, ok := p.Registry.GetByExtension(filepath.Ext(doc.Path))
		if !ok {
			continue
		}
		tree, err := extractor.Extract(ctx, doc.Content, doc.Path)
		if err != nil {
			slog.Warn("Skipping unparseable file",
				"repository", name, "file", doc.Path, "error", err)
			continue
		}
		trees = append(trees, tree)
	}
	if len(trees) == 0 {
		return fmt.Errorf("no source files could be parsed under %s", path)
	}
	p.addCount(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.IngestFilesTotal },
		int64(len(trees)), attribute.String("repository", name))

	// --- Ingest ---
	p.setStage(name, datatypes.StatusIngesting, progressIngesting,
		fmt.Sprintf("%d parsed files", len(trees)), nil)

	ingestor, err := graph.NewIngestor(p.Store, name)
	if err != nil {
		return err
	}
	if _, err := ingestor.CreateRepository(ctx); err != nil {
		return fmt.Errorf("create repository node: %w", err)
	}

	var created, connected, orphaned int
	for _, tree := range trees {
		report, err := ingestor.Ingest(ctx, tree)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", tree.File, err)
		}
		created += report.Created
		connected += report.Connected
		orphaned += report.Orphaned
	}
	slog.Info("Persisted repository graph",
		"repository", name,
		"created", created,
		"connected", connected,
		"orphaned", orphaned)
	p.addCount(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.IngestNodesTotal },
		int64(created), attribute.String("repository", name))

	// --- Summarize ---
	p.setStage(name, datatypes.StatusSummarizing, progressSummarizing, "", nil)

	runner, err := summarize.NewRunner(p.Store, p.LLM, p.Embedder)
	if err != nil {
		return err
	}
	runner.Progress = func(processed, total int) {
		if total == 0 {
			return
		}
		progress := progressSummarizing + (99-progressSummarizing)*processed/total
		p.setStage(name, datatypes.StatusSummarizing, progress,
			fmt.Sprintf("%d/%d nodes", processed, total), nil)
	}
	report, err := runner.Run(ctx, name)
	if err != nil {
		return fmt.Errorf("enrichment sweep: %w", err)
	}
	p.recordSummaries(ctx, name, report)

	// Cached results for this repository (and unscoped queries) are stale now.
	if p.Cache != nil {
		if err := p.Cache.InvalidateRepository(name); err != nil {
			slog.Warn("Failed to invalidate query cache", "repository", name, "error", err)
		}
	}

	// ValidateStructure returns nil when the counting queries fail; the
	// repository is still ready, only the diagnostic is unavailable.
	if validation := ingestor.ValidateStructure(ctx); validation != nil {
		slog.Info("Validated repository structure",
			"repository", name,
			"connected", validation.Connected,
			"orphaned", validation.Orphaned)
	} else {
		slog.Warn("Structure validation unavailable", "repository", name)
	}

	return nil
}

func (p *Pipeline) setStage(name, stage string, progress int, message string, err error) {
	status := datatypes.RepositoryStatus{
		Repository: name,
		Stage:      stage,
		Progress:   progress,
		Message:    message,
	}
	if err != nil {
		status.Error = err.Error()
	}
	p.Hub.Set(status)
}

func (p *Pipeline) recordRun(ctx context.Context, status string, elapsed time.Duration) {
	if p.Metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	p.Metrics.IngestRunsTotal.Add(ctx, 1, attrs)
	p.Metrics.IngestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (p *Pipeline) recordSummaries(ctx context.Context, name string, report *summarize.Report) {
	if p.Metrics == nil {
		return
	}
	repo := attribute.String("repository", name)
	p.Metrics.SummariesTotal.Add(ctx, int64(report.Processed),
		metric.WithAttributes(repo, attribute.String("status", "ok")))
	if report.Failed > 0 {
		p.Metrics.SummariesTotal.Add(ctx, int64(report.Failed),
			metric.WithAttributes(repo, attribute.String("status", "error")))
	}
}

func (p *Pipeline) addCount(ctx context.Context, pick func(*telemetry.Metrics) metric.Int64Counter,
	n int64, attrs ...attribute.KeyValue) {
	if p.Metrics == nil || n == 0 {
		return
	}
	pick(p.Metrics).Add(ctx, n, metric.WithAttributes(attrs...))
}

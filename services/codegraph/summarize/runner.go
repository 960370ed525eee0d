// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package summarize enriches ingested nodes with LLM summaries and the two
// embedding vectors. Ingestion writes nodes with a placeholder summary and
// no vectors; this pass sweeps those nodes and fills both in.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
	"github.com/AleutianAI/codegraph/services/codegraph/embeddings"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/llm"
)

// maxPromptCode caps how much source is handed to the LLM per node.
const maxPromptCode = 8000

// Store is the enrichment surface of the graph store.
type Store interface {
	// ListNodesMissingSummary returns up to limit nodes of the given kind
	// still carrying the placeholder summary. Empty repository means all
	// repositories.
	ListNodesMissingSummary(ctx context.Context, kind datatypes.NodeKind, repository string, limit int) ([]graph.EnrichmentTarget, error)

	// UpdateEnrichment attaches the summary and both vectors to a node.
	UpdateEnrichment(ctx context.Context, ref graph.NodeRef, summary string, summaryVec, codeVec []float32) error
}

// Report is the outcome of one enrichment sweep.
type Report struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ProgressFunc is called after every node with the running totals. Used by
// the API layer to broadcast ingestion progress.
type ProgressFunc func(processed, total int)

// Runner sweeps placeholder-summary nodes and enriches them.
//
// Failures are per node: a node that cannot be summarized or embedded keeps
// its placeholder and is picked up by the next sweep. One node failing never
// stops the sweep.
type Runner struct {
	store    Store
	llm      llm.LLMClient
	embedder embeddings.Embedder

	// Progress, when set, receives running totals during Run.
	Progress ProgressFunc
}

// NewRunner wires an enrichment runner.
func NewRunner(store Store, llmClient llm.LLMClient, embedder embeddings.Embedder) (*Runner, error) {
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if llmClient == nil {
		return nil, errors.New("llm client must not be nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder must not be nil")
	}
	return &Runner{store: store, llm: llmClient, embedder: embedder}, nil
}

// Run performs one sweep over every tracked kind. Empty repository sweeps
// all repositories. The returned report is valid even when err is non-nil;
// err reflects listing failures, not per-node ones.
func (r *Runner) Run(ctx context.Context, repository string) (*Report, error) {
	report := &Report{}

	var targets []kindTarget
	for _, kind := range datatypes.TrackedKinds {
		nodes, err := r.store.ListNodesMissingSummary(ctx, kind, repository, 0)
		if err != nil {
			return report, fmt.Errorf("list %s nodes to summarize: %w", kind, err)
		}
		for _, n := range nodes {
			targets = append(targets, kindTarget{kind: kind, target: n})
		}
	}

	total := len(targets)
	slog.Info("Starting enrichment sweep", "repository", repository, "nodes", total)

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.enrichOne(ctx, t.target); err != nil {
			slog.Error("Failed to enrich node",
				"kind", t.kind.String(),
				"name", t.target.Name,
				"error", err)
			report.Failed++
		} else {
			report.Processed++
		}
		if r.Progress != nil {
			r.Progress(report.Processed+report.Failed, total)
		}
	}

	slog.Info("Enrichment sweep finished",
		"repository", repository,
		"processed", report.Processed,
		"failed", report.Failed)
	return report, nil
}

type kindTarget struct {
	kind   datatypes.NodeKind
	target graph.EnrichmentTarget
}

// enrichOne summarizes one node and writes the summary plus both vectors.
func (r *Runner) enrichOne(ctx context.Context, target graph.EnrichmentTarget) error {
	summary, err := r.llm.Generate(ctx, summaryPrompt(target.Code), llm.GenerationParams{})
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return errors.New("LLM returned an empty summary")
	}

	// One round trip for both vectors: summary first, code second.
	vectors, err := r.embedder.BatchEmbed(ctx, []string{summary, target.Code})
	if err != nil {
		return fmt.Errorf("embed summary and code: %w", err)
	}
	if len(vectors) != 2 {
		return fmt.Errorf("expected 2 vectors, got %d", len(vectors))
	}

	if err := r.store.UpdateEnrichment(ctx, target.Ref, summary, vectors[0], vectors[1]); err != nil {
		return fmt.Errorf("persist enrichment: %w", err)
	}
	return nil
}

func summaryPrompt(code string) string {
	if len(code) > maxPromptCode {
		code = code[:maxPromptCode]
	}
	return "Given the following code, write a descriptive, clear, and non-redundant summary. " +
		"Focus on the main purpose, functionality, and any important details that would help " +
		"someone understand the code without reading it in detail.\n\nCode:\n```\n" + code + "\n```\n"
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval ranks knowledge-graph nodes against natural-language
// queries.
//
// The engine fuses four strategies: summary-embedding ANN (primary),
// keyword matching on names and summaries, code-embedding ANN, and
// graph-neighborhood enrichment of the top hits. Each strategy is
// individually expendable; a failing strategy contributes nothing rather
// than failing the query.
package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// ErrEmptyQuery is returned when the query is empty or whitespace.
var ErrEmptyQuery = errors.New("query must not be empty")

const (
	// DefaultTopK is used when the requested k is out of range.
	DefaultTopK = 10

	// MaxTopK caps the requested result count.
	MaxTopK = 50

	// Strategy weights. Summary ANN is authoritative; keyword and code
	// hits either seed a result at reduced weight or boost an existing
	// one, capped at 1.0.
	weightSummary      = 1.0
	weightKeywordSeed  = 0.6
	weightKeywordBoost = 0.3
	weightCodeSeed     = 0.4
	weightCodeBoost    = 0.2

	// Neighborhood enrichment. The top enrichTopN fused results each pull
	// in up to enrichLimit neighbors within relatedDepth CHILD hops.
	// Children outrank parents slightly.
	scoreRelatedChild  = 0.8
	scoreRelatedParent = 0.7
	enrichTopN         = 3
	enrichLimit        = 2
	relatedDepth       = 2

	// minKeywordLen drops short stopword-like tokens from keyword search.
	minKeywordLen = 3
)

// Embedder turns query text into a vector comparable with the stored
// embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the ANN and keyword query surface of the graph store.
type VectorSearcher interface {
	// SearchNearVector searches one named vector of one class. Scores are
	// similarity certainties in [0, 1].
	SearchNearVector(ctx context.Context, kind datatypes.NodeKind, vectorField string, vector []float32, limit int, repository string) ([]datatypes.RetrievedNode, error)

	// NodesByKeywords returns nodes whose name or summary contains any of
	// the keywords. Returned scores are unset.
	NodesByKeywords(ctx context.Context, keywords []string, repository string, limit int) ([]datatypes.RetrievedNode, error)
}

// GraphSearcher walks CHILD edges around a named node.
type GraphSearcher interface {
	RelatedChildren(ctx context.Context, kind datatypes.NodeKind, name string, maxDepth, limit int, repository string) ([]datatypes.RetrievedNode, error)
	RelatedParents(ctx context.Context, kind datatypes.NodeKind, name string, maxDepth, limit int, repository string) ([]datatypes.RetrievedNode, error)
}

// Engine is the multi-strategy retrieval engine. Stateless; safe for
// concurrent use when its dependencies are.
type Engine struct {
	embedder Embedder
	vectors  VectorSearcher
	graph    GraphSearcher
}

// NewEngine wires the engine. The graph searcher may be nil, which disables
// neighborhood enrichment.
func NewEngine(embedder Embedder, vectors VectorSearcher, graph GraphSearcher) (*Engine, error) {
	if embedder == nil {
		return nil, errors.New("embedder must not be nil")
	}
	if vectors == nil {
		return nil, errors.New("vector searcher must not be nil")
	}
	return &Engine{embedder: embedder, vectors: vectors, graph: graph}, nil
}

// RetrieveTopK runs the full multi-strategy pipeline and returns at most
// topK results, best first. Empty repository searches all repositories.
//
// The query is embedded once and the vector shared by both ANN strategies.
// If embedding fails, those strategies are skipped and keyword search
// carries the query alone.
func (e *Engine) RetrieveTopK(ctx context.Context, query string, topK int, repository string) ([]datatypes.RetrievedNode, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	topK = clampTopK(topK)

	var vector []float32
	if vec, err := e.embedder.Embed(ctx, query); err != nil {
		slog.Error("Failed to embed query, skipping semantic strategies",
			"query", truncate(query, 50), "error", err)
	} else {
		vector = vec
	}

	fused := map[datatypes.NodeKey]*datatypes.RetrievedNode{}
	var order []datatypes.NodeKey

	// Strategy 1: summary-embedding ANN.
	for _, hit := range e.searchIndexes(ctx, summaryIndexes, vector, topK, repository, datatypes.SearchTypeSummary) {
		hit := hit
		hit.Score *= weightSummary
		key := hit.Key()
		if _, seen := fused[key]; !seen {
			order = append(order, key)
		}
		fused[key] = &hit
	}

	// Strategy 2: keyword match on names and summaries.
	for _, hit := range e.searchKeywords(ctx, query, topK, repository) {
		hit := hit
		key := hit.Key()
		if existing, seen := fused[key]; seen {
			existing.Score = capScore(existing.Score + hit.Score*weightKeywordBoost)
			existing.SearchType = datatypes.SearchTypeHybrid
		} else {
			hit.Score *= weightKeywordSeed
			fused[key] = &hit
			order = append(order, key)
		}
	}

	// Strategy 3: code-embedding ANN, half depth.
	for _, hit := range e.searchIndexes(ctx, codeIndexes, vector, halfK(topK), repository, datatypes.SearchTypeCode) {
		hit := hit
		key := hit.Key()
		if existing, seen := fused[key]; seen {
			existing.Score = capScore(existing.Score + hit.Score*weightCodeBoost)
			existing.SearchType = datatypes.SearchTypeHybrid
		} else {
			hit.Score *= weightCodeSeed
			fused[key] = &hit
			order = append(order, key)
		}
	}

	results := make([]datatypes.RetrievedNode, 0, len(order))
	for _, key := range order {
		results = append(results, *fused[key])
	}
	sortByScore(results)
	if len(results) > topK {
		results = results[:topK]
	}

	// Strategy 4: pull in neighbors of the strongest hits, then dedup
	// keeping the first occurrence of each (type, name).
	results = e.enrich(ctx, results, repository)
	results = dedupKeepFirst(results)
	sortByScore(results)
	if len(results) > topK {
		results = results[:topK]
	}

	slog.Info("Retrieved results",
		"query", truncate(query, 50),
		"top_k", topK,
		"repository", repository,
		"results", len(results))
	return results, nil
}

// RetrieveSemantic is the single-strategy mode: summary-embedding ANN only,
// no fusion and no enrichment.
func (e *Engine) RetrieveSemantic(ctx context.Context, query string, topK int, repository string) ([]datatypes.RetrievedNode, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	topK = clampTopK(topK)

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Failed to embed query", "query", truncate(query, 50), "error", err)
		return nil, nil
	}

	results := e.searchIndexes(ctx, summaryIndexes, vector, topK, repository, datatypes.SearchTypeSummary)
	sortByScore(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// =============================================================================
// Strategies
// =============================================================================

// searchIndexes queries each ANN index in the set and merges the hits,
// sorted best first and truncated to limit. A failing index is skipped; a
// nil vector skips the whole set.
func (e *Engine) searchIndexes(ctx context.Context, indexes []annIndex, vector []float32, limit int, repository, searchType string) []datatypes.RetrievedNode {
	if len(vector) == 0 || limit <= 0 {
		return nil
	}

	var all []datatypes.RetrievedNode
	for _, idx := range indexes {
		hits, err := e.vectors.SearchNearVector(ctx, idx.Kind, idx.VectorField, vector, limit, repository)
		if err != nil {
			slog.Warn("ANN index query failed, skipping",
				"kind", idx.Kind.String(),
				"vector", idx.VectorField,
				"error", err)
			continue
		}
		for i := range hits {
			hits[i].SearchType = searchType
		}
		all = append(all, hits...)
	}

	sortByScore(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// searchKeywords tokenizes the query and scores candidates by the fraction
// of keywords found in their name or summary. Errors degrade to an empty
// contribution.
func (e *Engine) searchKeywords(ctx context.Context, query string, topK int, repository string) []datatypes.RetrievedNode {
	keywords := extractKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	candidates, err := e.vectors.NodesByKeywords(ctx, keywords, repository, topK*2)
	if err != nil {
		slog.Warn("Keyword search failed, skipping", "error", err)
		return nil
	}

	results := make([]datatypes.RetrievedNode, 0, len(candidates))
	for _, c := range candidates {
		name := strings.ToLower(c.Name)
		summary := strings.ToLower(c.Summary)
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(name, kw) || strings.Contains(summary, kw) {
				matches++
			}
		}
		c.Score = float64(matches) / float64(len(keywords))
		c.SearchType = datatypes.SearchTypeGraph
		results = append(results, c)
	}

	sortByScore(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// enrich appends up to enrichLimit graph neighbors after each of the top
// enrichTopN results, children before parents. Enrichment is best effort.
func (e *Engine) enrich(ctx context.Context, results []datatypes.RetrievedNode, repository string) []datatypes.RetrievedNode {
	if e.graph == nil {
		return results
	}

	enriched := make([]datatypes.RetrievedNode, 0, len(results)+enrichTopN*enrichLimit)
	for i, r := range results {
		enriched = append(enriched, r)
		if i >= enrichTopN {
			continue
		}
		for _, rel := range e.relatedTo(ctx, r, repository) {
			enriched = append(enriched, rel)
		}
	}
	return enriched
}

// relatedTo collects up to enrichLimit neighbors of one node. Children are
// preferred; parents only fill remaining slots.
func (e *Engine) relatedTo(ctx context.Context, node datatypes.RetrievedNode, repository string) []datatypes.RetrievedNode {
	related := make([]datatypes.RetrievedNode, 0, enrichLimit)

	children, err := e.graph.RelatedChildren(ctx, node.Type, node.Name, relatedDepth, enrichLimit, repository)
	if err != nil {
		slog.Warn("Related-children lookup failed, skipping",
			"kind", node.Type.String(), "name", node.Name, "error", err)
	}
	for _, c := range children {
		if len(related) == enrichLimit {
			return related
		}
		c.Score = scoreRelatedChild
		c.SearchType = datatypes.SearchTypeRelated
		c.Relation = datatypes.RelationChild
		related = append(related, c)
	}

	remaining := enrichLimit - len(related)
	if remaining == 0 {
		return related
	}
	parents, err := e.graph.RelatedParents(ctx, node.Type, node.Name, relatedDepth, remaining, repository)
	if err != nil {
		slog.Warn("Related-parents lookup failed, skipping",
			"kind", node.Type.String(), "name", node.Name, "error", err)
	}
	for _, p := range parents {
		if len(related) == enrichLimit {
			break
		}
		p.Score = scoreRelatedParent
		p.SearchType = datatypes.SearchTypeRelated
		p.Relation = datatypes.RelationParent
		related = append(related, p)
	}
	return related
}

// =============================================================================
// Helpers
// =============================================================================

// extractKeywords lowercases the query and keeps whitespace-separated
// tokens longer than two characters.
func extractKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= minKeywordLen {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

func clampTopK(topK int) int {
	if topK < 1 || topK > MaxTopK {
		return DefaultTopK
	}
	return topK
}

// halfK is the reduced depth of the code-embedding strategy, never below 1.
func halfK(topK int) int {
	half := topK / 2
	if half < 1 {
		half = 1
	}
	return half
}

func capScore(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	return score
}

// sortByScore orders best first, stable so equal scores keep strategy
// insertion order.
func sortByScore(results []datatypes.RetrievedNode) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func dedupKeepFirst(results []datatypes.RetrievedNode) []datatypes.RetrievedNode {
	seen := map[datatypes.NodeKey]struct{}{}
	out := results[:0]
	for _, r := range results {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

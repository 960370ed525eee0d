// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type indexKey struct {
	kind  datatypes.NodeKind
	field string
}

type fakeSearcher struct {
	annHits    map[indexKey][]datatypes.RetrievedNode
	annErrs    map[indexKey]error
	keywordHit []datatypes.RetrievedNode
	keywordErr error

	annCalls     int
	keywordCalls int
	lastKeywords []string
	lastLimits   []int
}

func (f *fakeSearcher) SearchNearVector(_ context.Context, kind datatypes.NodeKind, field string, _ []float32, limit int, _ string) ([]datatypes.RetrievedNode, error) {
	f.annCalls++
	f.lastLimits = append(f.lastLimits, limit)
	key := indexKey{kind, field}
	if err := f.annErrs[key]; err != nil {
		return nil, err
	}
	return f.annHits[key], nil
}

func (f *fakeSearcher) NodesByKeywords(_ context.Context, keywords []string, _ string, _ int) ([]datatypes.RetrievedNode, error) {
	f.keywordCalls++
	f.lastKeywords = keywords
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.keywordHit, nil
}

type fakeGraph struct {
	children map[string][]datatypes.RetrievedNode
	parents  map[string][]datatypes.RetrievedNode
	calls    int
}

func (f *fakeGraph) RelatedChildren(_ context.Context, _ datatypes.NodeKind, name string, _, limit int, _ string) ([]datatypes.RetrievedNode, error) {
	f.calls++
	hits := f.children[name]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeGraph) RelatedParents(_ context.Context, _ datatypes.NodeKind, name string, _, limit int, _ string) ([]datatypes.RetrievedNode, error) {
	f.calls++
	hits := f.parents[name]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func node(kind datatypes.NodeKind, name string, score float64) datatypes.RetrievedNode {
	return datatypes.RetrievedNode{Type: kind, Name: name, Summary: name + " summary", Score: score}
}

func summaryIdx(kind datatypes.NodeKind) indexKey {
	return indexKey{kind, datatypes.VectorSummaryEmbedding}
}

func codeIdx(kind datatypes.NodeKind) indexKey {
	return indexKey{kind, datatypes.VectorCodeEmbedding}
}

func newTestEngine(t *testing.T, emb *fakeEmbedder, s *fakeSearcher, g *fakeGraph) *Engine {
	t.Helper()
	var graph GraphSearcher
	if g != nil {
		graph = g
	}
	eng, err := NewEngine(emb, s, graph)
	require.NoError(t, err)
	return eng
}

func emptySearcher() *fakeSearcher {
	return &fakeSearcher{
		annHits: map[indexKey][]datatypes.RetrievedNode{},
		annErrs: map[indexKey]error{},
	}
}

var queryVec = make([]float32, 4)

// =============================================================================
// Tests
// =============================================================================

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, emptySearcher(), nil)
	assert.Error(t, err)

	_, err = NewEngine(&fakeEmbedder{}, nil, nil)
	assert.Error(t, err)

	_, err = NewEngine(&fakeEmbedder{}, emptySearcher(), nil)
	assert.NoError(t, err)
}

func TestRetrieveTopK_EmptyQuery(t *testing.T) {
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, emptySearcher(), nil)

	_, err := eng.RetrieveTopK(context.Background(), "   ", 10, "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRetrieveTopK_SummaryOnly(t *testing.T) {
	// Arrange: hits on two of the three summary indexes, nothing else.
	s := emptySearcher()
	s.annHits[summaryIdx(datatypes.KindFunction)] = []datatypes.RetrievedNode{
		node(datatypes.KindFunction, "parse_config", 0.9),
	}
	s.annHits[summaryIdx(datatypes.KindClass)] = []datatypes.RetrievedNode{
		node(datatypes.KindClass, "ConfigLoader", 0.8),
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	// Act
	results, err := eng.RetrieveTopK(context.Background(), "config parsing", 10, "")
	require.NoError(t, err)

	// Assert: best first, full summary weight, tagged summary.
	require.Len(t, results, 2)
	assert.Equal(t, "parse_config", results[0].Name)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.Equal(t, datatypes.SearchTypeSummary, results[0].SearchType)
	assert.Equal(t, "ConfigLoader", results[1].Name)
}

func TestRetrieveTopK_HybridBoost(t *testing.T) {
	// Arrange: the same function is a summary ANN hit and a perfect
	// keyword match.
	s := emptySearcher()
	s.annHits[summaryIdx(datatypes.KindFunction)] = []datatypes.RetrievedNode{
		node(datatypes.KindFunction, "load_settings", 0.5),
	}
	s.keywordHit = []datatypes.RetrievedNode{
		{Type: datatypes.KindFunction, Name: "load_settings", Summary: "loads settings"},
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	// Act: both keywords hit the name, so the keyword score is 1.0.
	results, err := eng.RetrieveTopK(context.Background(), "load settings", 10, "")
	require.NoError(t, err)

	// Assert: 0.5 + 1.0*0.3, marked hybrid, one deduplicated entry.
	require.Len(t, results, 1)
	assert.InDelta(t, 0.8, results[0].Score, 1e-9)
	assert.Equal(t, datatypes.SearchTypeHybrid, results[0].SearchType)
}

func TestRetrieveTopK_ScoreCappedAtOne(t *testing.T) {
	s := emptySearcher()
	s.annHits[summaryIdx(datatypes.KindFunction)] = []datatypes.RetrievedNode{
		node(datatypes.KindFunction, "hot_path", 0.95),
	}
	s.annHits[codeIdx(datatypes.KindFunction)] = []datatypes.RetrievedNode{
		node(datatypes.KindFunction, "hot_path", 0.99),
	}
	s.keywordHit = []datatypes.RetrievedNode{
		{Type: datatypes.KindFunction, Name: "hot_path", Summary: "hot path"},
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	results, err := eng.RetrieveTopK(context.Background(), "hot path", 10, "")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, datatypes.SearchTypeHybrid, results[0].SearchType)
}

func TestRetrieveTopK_KeywordSeedWeight(t *testing.T) {
	// A node found only by keywords enters at reduced weight.
	s := emptySearcher()
	s.keywordHit = []datatypes.RetrievedNode{
		{Type: datatypes.KindFile, Name: "auth.py", Summary: "authentication helpers"},
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	// One of two keywords matches: keyword score 0.5, seeded at 0.6 weight.
	results, err := eng.RetrieveTopK(context.Background(), "authentication middleware", 10, "")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.InDelta(t, 0.3, results[0].Score, 1e-9)
	assert.Equal(t, datatypes.SearchTypeGraph, results[0].SearchType)
}

func TestRetrieveTopK_EmbedFailureFallsBackToKeywords(t *testing.T) {
	// Arrange: embedding is down; keyword search still works.
	s := emptySearcher()
	s.keywordHit = []datatypes.RetrievedNode{
		{Type: datatypes.KindFunction, Name: "retry_backoff", Summary: "retry with backoff"},
	}
	emb := &fakeEmbedder{err: errors.New("embedding service unavailable")}
	eng := newTestEngine(t, emb, s, nil)

	// Act
	results, err := eng.RetrieveTopK(context.Background(), "retry backoff", 10, "")
	require.NoError(t, err)

	// Assert: no ANN queries ran, keyword results still returned.
	assert.Equal(t, 0, s.annCalls)
	require.Len(t, results, 1)
	assert.Equal(t, "retry_backoff", results[0].Name)
}

func TestRetrieveTopK_FailingIndexIsSkipped(t *testing.T) {
	s := emptySearcher()
	s.annErrs[summaryIdx(datatypes.KindFile)] = errors.New("index offline")
	s.annHits[summaryIdx(datatypes.KindFunction)] = []datatypes.RetrievedNode{
		node(datatypes.KindFunction, "survivor", 0.7),
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	results, err := eng.RetrieveTopK(context.Background(), "anything here", 10, "")
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "survivor", results[0].Name)
}

func TestRetrieveTopK_KeywordFailureIsContained(t *testing.T) {
	s := emptySearcher()
	s.keywordErr = errors.New("store timeout")
	s.annHits[summaryIdx(datatypes.KindClass)] = []datatypes.RetrievedNode{
		node(datatypes.KindClass, "Parser", 0.6),
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	results, err := eng.RetrieveTopK(context.Background(), "parser grammar", 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Parser", results[0].Name)
}

func TestRetrieveTopK_Enrichment(t *testing.T) {
	// Arrange: one strong hit whose class has a method and a parent file.
	s := emptySearcher()
	s.annHits[summaryIdx(datatypes.KindClass)] = []datatypes.RetrievedNode{
		node(datatypes.KindClass, "Pipeline", 0.9),
	}
	g := &fakeGraph{
		children: map[string][]datatypes.RetrievedNode{
			"Pipeline": {
				{Type: datatypes.KindFunction, Name: "run", Summary: "runs the pipeline"},
			},
		},
		parents: map[string][]datatypes.RetrievedNode{
			"Pipeline": {
				{Type: datatypes.KindFile, Name: "pipeline.py", Summary: "pipeline module"},
			},
		},
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, g)

	// Act
	results, err := eng.RetrieveTopK(context.Background(), "pipeline stages", 10, "")
	require.NoError(t, err)

	// Assert: seed plus child (0.8) plus parent (0.7), sorted.
	require.Len(t, results, 3)
	assert.Equal(t, "Pipeline", results[0].Name)
	assert.Equal(t, "run", results[1].Name)
	assert.Equal(t, 0.8, results[1].Score)
	assert.Equal(t, datatypes.SearchTypeRelated, results[1].SearchType)
	assert.Equal(t, datatypes.RelationChild, results[1].Relation)
	assert.Equal(t, "pipeline.py", results[2].Name)
	assert.Equal(t, 0.7, results[2].Score)
	assert.Equal(t, datatypes.RelationParent, results[2].Relation)
}

func TestRetrieveTopK_EnrichmentOnlyTopThree(t *testing.T) {
	s := emptySearcher()
	var hits []datatypes.RetrievedNode
	for i := 0; i < 5; i++ {
		hits = append(hits, node(datatypes.KindFunction, fmt.Sprintf("fn%d", i), 0.9-float64(i)*0.1))
	}
	s.annHits[summaryIdx(datatypes.KindFunction)] = hits

	g := &fakeGraph{children: map[string][]datatypes.RetrievedNode{}, parents: map[string][]datatypes.RetrievedNode{}}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, g)

	_, err := eng.RetrieveTopK(context.Background(), "five functions", 10, "")
	require.NoError(t, err)

	// Children and parents looked up for the top three seeds only.
	assert.Equal(t, 6, g.calls)
}

func TestRetrieveTopK_EnrichmentDedupKeepsFirst(t *testing.T) {
	// A related node that duplicates a fused result appears once. Neighbors
	// are interleaved right after their seed, so the related occurrence of
	// "decode" sits ahead of its fused occurrence and keep-first retains it.
	s := emptySearcher()
	s.annHits[summaryIdx(datatypes.KindFunction)] = []datatypes.RetrievedNode{
		node(datatypes.KindFunction, "encode", 0.9),
		node(datatypes.KindFunction, "decode", 0.85),
	}
	g := &fakeGraph{
		children: map[string][]datatypes.RetrievedNode{
			"encode": {
				{Type: datatypes.KindFunction, Name: "decode", Summary: "inverse"},
			},
		},
		parents: map[string][]datatypes.RetrievedNode{},
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, g)

	results, err := eng.RetrieveTopK(context.Background(), "codec functions", 10, "")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "decode", results[1].Name)
	assert.InDelta(t, 0.8, results[1].Score, 1e-9)
	assert.Equal(t, datatypes.SearchTypeRelated, results[1].SearchType)
	assert.Equal(t, datatypes.RelationChild, results[1].Relation)
}

func TestRetrieveTopK_BoundedByTopK(t *testing.T) {
	s := emptySearcher()
	var hits []datatypes.RetrievedNode
	for i := 0; i < 20; i++ {
		hits = append(hits, node(datatypes.KindFunction, fmt.Sprintf("fn%d", i), 0.99-float64(i)*0.01))
	}
	s.annHits[summaryIdx(datatypes.KindFunction)] = hits
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	results, err := eng.RetrieveTopK(context.Background(), "many functions", 5, "")
	require.NoError(t, err)

	assert.Len(t, results, 5)
	for _, r := range results {
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.GreaterOrEqual(t, r.Score, 0.0)
	}
}

func TestRetrieveTopK_InvalidTopKUsesDefault(t *testing.T) {
	s := emptySearcher()
	var hits []datatypes.RetrievedNode
	for i := 0; i < 15; i++ {
		hits = append(hits, node(datatypes.KindFunction, fmt.Sprintf("fn%d", i), 0.99-float64(i)*0.01))
	}
	s.annHits[summaryIdx(datatypes.KindFunction)] = hits
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	for _, bad := range []int{0, -3, MaxTopK + 1} {
		results, err := eng.RetrieveTopK(context.Background(), "many functions", bad, "")
		require.NoError(t, err)
		assert.Len(t, results, DefaultTopK)
	}
}

func TestRetrieveSemantic_SingleStrategy(t *testing.T) {
	s := emptySearcher()
	s.annHits[summaryIdx(datatypes.KindFunction)] = []datatypes.RetrievedNode{
		node(datatypes.KindFunction, "only_semantic", 0.75),
	}
	s.keywordHit = []datatypes.RetrievedNode{
		{Type: datatypes.KindFile, Name: "never.py", Summary: "should not appear"},
	}
	eng := newTestEngine(t, &fakeEmbedder{vector: queryVec}, s, nil)

	results, err := eng.RetrieveSemantic(context.Background(), "semantic query", 10, "")
	require.NoError(t, err)

	assert.Equal(t, 0, s.keywordCalls)
	require.Len(t, results, 1)
	assert.Equal(t, "only_semantic", results[0].Name)
	assert.Equal(t, datatypes.SearchTypeSummary, results[0].SearchType)
}

func TestRetrieveSemantic_EmbedFailureReturnsEmpty(t *testing.T) {
	eng := newTestEngine(t, &fakeEmbedder{err: errors.New("down")}, emptySearcher(), nil)

	results, err := eng.RetrieveSemantic(context.Background(), "anything", 10, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExtractKeywords(t *testing.T) {
	assert.Equal(t, []string{"parse", "configuration", "files"},
		extractKeywords("to Parse Configuration Files"))
	assert.Empty(t, extractKeywords("a an of"))
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package weaviate implements the knowledge graph store on Weaviate.
//
// Each node kind is a Weaviate class. The two embedding fields are named
// vectors on the tracked classes, which gives the six (class x field) ANN
// indexes the retrieval engine searches. CHILD edges are expressed twice:
// as a children cross-reference on the parent (the graph-native edge) and
// as a denormalized parent_id property on the child (what the reachability
// walks filter on).
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

var (
	// ErrDimensionMismatch is returned when a vector does not match the
	// dimension the indexes were created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreUnavailable is returned when Weaviate is not reachable.
	ErrStoreUnavailable = errors.New("weaviate is not available")
)

// pageLimit bounds every internal listing query. Reachability walks page
// through frontiers instead of asking for the whole graph at once.
const pageLimit = 10000

// Config configures the store.
type Config struct {
	// URL is the Weaviate server URL, e.g. "http://localhost:8080".
	URL string

	// Dimension is the embedding dimension of all six ANN indexes.
	// Default: datatypes.DefaultEmbeddingDimension.
	Dimension int

	// StartupTimeout bounds the initial readiness check.
	// Default: 30s.
	StartupTimeout time.Duration
}

// Store is the production graph store. It implements graph.Store for the
// ingestor plus the search and admin surfaces used by retrieval, the
// summarize runner, and the API handlers.
type Store struct {
	client    *weaviate.Client
	dimension int
}

// New connects to Weaviate, verifies readiness, and ensures the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("weaviate URL must not be empty")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate URL %q: %w", cfg.URL, err)
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = datatypes.DefaultEmbeddingDimension
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()
	ready, err := client.Misc().ReadyChecker().Do(readyCtx)
	if err != nil || !ready {
		return nil, fmt.Errorf("%w: readiness check failed: %v", ErrStoreUnavailable, err)
	}

	if err := datatypes.EnsureWeaviateSchema(ctx, client); err != nil {
		return nil, err
	}

	slog.Info("Connected to Weaviate", "url", cfg.URL, "dimension", cfg.Dimension)
	return &Store{client: client, dimension: cfg.Dimension}, nil
}

// NewWithClient wraps an existing client without touching the schema.
// Intended for tests and admin tooling.
func NewWithClient(client *weaviate.Client, dimension int) *Store {
	if dimension <= 0 {
		dimension = datatypes.DefaultEmbeddingDimension
	}
	return &Store{client: client, dimension: dimension}
}

// Dimension returns the configured embedding dimension.
func (s *Store) Dimension() int { return s.dimension }

// =============================================================================
// graph.Store
// =============================================================================

// FindRepository returns the repository root with the given name, or
// (nil, nil) when it does not exist.
func (s *Store) FindRepository(ctx context.Context, name string) (*graph.NodeRef, error) {
	where := filters.Where().
		WithPath([]string{"name"}).
		WithOperator(filters.Equal).
		WithValueText(name)

	resp, err := s.client.GraphQL().Get().
		WithClassName(datatypes.KindRepository.String()).
		WithFields(
			graphql.Field{Name: "name"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
		).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("query repository %q: %w", name, err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.RepositoryQueryResponse](resp)
	if err != nil {
		return nil, fmt.Errorf("parse repository query response: %w", err)
	}
	if len(parsed.Get.RepositoryNode) == 0 {
		return nil, nil
	}
	return &graph.NodeRef{
		ID:   parsed.Get.RepositoryNode[0].Additional.ID,
		Kind: datatypes.KindRepository,
	}, nil
}

// CreateRepository persists a new repository root node.
func (s *Store) CreateRepository(ctx context.Context, name string) (*graph.NodeRef, error) {
	result, err := s.client.Data().Creator().
		WithClassName(datatypes.KindRepository.String()).
		WithProperties(map[string]interface{}{
			"name":       name,
			"created_at": time.Now().UnixMilli(),
		}).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("create repository %q: %w", name, err)
	}
	if result == nil || result.Object == nil {
		return nil, fmt.Errorf("weaviate created repository %q but returned a nil result", name)
	}
	return &graph.NodeRef{
		ID:   result.Object.ID.String(),
		Kind: datatypes.KindRepository,
	}, nil
}

// CreateNode persists one code node under the named repository. Embedding
// vectors are usually empty at this point; non-empty vectors are validated
// against the index dimension.
func (s *Store) CreateNode(ctx context.Context, repository string, node *datatypes.CodeNode) (*graph.NodeRef, error) {
	if node == nil {
		return nil, fmt.Errorf("node must not be nil")
	}
	if !node.Kind.Tracked() {
		return nil, fmt.Errorf("cannot create node of kind %q", node.Kind)
	}

	vectors, err := s.buildVectors(node.CodeEmbedding, node.SummaryEmbedding)
	if err != nil {
		return nil, err
	}

	props := map[string]interface{}{
		"name":                        node.Name,
		"lineno":                      node.Lineno,
		"code":                        node.Code,
		"parameters":                  emptyIfNil(node.Parameters),
		"async":                       node.Async,
		"summary":                     node.Summary,
		"parent_source_identifier":    node.ParentSourceIdentifier,
		"children_source_identifiers": emptyIfNil(node.ChildrenSourceIdentifiers),
		"repository":                  repository,
		"parent_id":                   "",
		"parent_kind":                 "",
	}

	creator := s.client.Data().Creator().
		WithClassName(node.Kind.String()).
		WithProperties(props)
	if len(vectors) > 0 {
		creator = creator.WithVectors(vectors)
	}

	result, err := creator.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("create %s %q: %w", node.Kind, node.Name, err)
	}
	if result == nil || result.Object == nil {
		return nil, fmt.Errorf("weaviate created %s %q but returned a nil result", node.Kind, node.Name)
	}
	return &graph.NodeRef{ID: result.Object.ID.String(), Kind: node.Kind}, nil
}

// Connect creates the directed CHILD edge from parent to child: a children
// beacon on the parent and the parent_id/parent_kind back-pointers on the
// child. Both writes must succeed for the edge to count.
func (s *Store) Connect(ctx context.Context, parent, child graph.NodeRef) error {
	ref := s.client.Data().ReferencePayloadBuilder().
		WithClassName(child.Kind.String()).
		WithID(child.ID).
		Payload()

	err := s.client.Data().ReferenceCreator().
		WithClassName(parent.Kind.String()).
		WithID(parent.ID).
		WithReferenceProperty(datatypes.ChildrenProperty).
		WithReference(ref).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("create CHILD reference %s -> %s: %w", parent.ID, child.ID, err)
	}

	err = s.client.Data().Updater().
		WithClassName(child.Kind.String()).
		WithID(child.ID).
		WithMerge().
		WithProperties(map[string]interface{}{
			"parent_id":   parent.ID,
			"parent_kind": parent.Kind.String(),
		}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("set parent pointer on %s: %w", child.ID, err)
	}
	return nil
}

// =============================================================================
// Enrichment writes
// =============================================================================

// ListNodesMissingSummary returns up to limit nodes of the given kind whose
// summary is still the ingest placeholder. Empty repository means all
// repositories.
func (s *Store) ListNodesMissingSummary(ctx context.Context, kind datatypes.NodeKind, repository string, limit int) ([]graph.EnrichmentTarget, error) {
	if limit <= 0 {
		limit = pageLimit
	}

	pending := filters.Where().
		WithPath([]string{"summary"}).
		WithOperator(filters.Equal).
		WithValueText(datatypes.PlaceholderSummary)
	where := pending
	if repository != "" {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{pending, repositoryFilter(repository)})
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(kind.String()).
		WithFields(
			graphql.Field{Name: "name"},
			graphql.Field{Name: "code"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
		).
		WithWhere(where).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s nodes missing summary: %w", kind, err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.NodeQueryResponse](resp)
	if err != nil {
		return nil, err
	}

	results := parsed.Results(kind)
	targets := make([]graph.EnrichmentTarget, 0, len(results))
	for _, r := range results {
		targets = append(targets, graph.EnrichmentTarget{
			Ref:  graph.NodeRef{ID: r.Additional.ID, Kind: kind},
			Name: r.Name,
			Code: r.Code,
		})
	}
	return targets, nil
}

// UpdateEnrichment attaches the generated summary and both embedding vectors
// to an existing node. This is the only in-place update nodes ever receive.
func (s *Store) UpdateEnrichment(ctx context.Context, ref graph.NodeRef, summary string, summaryVec, codeVec []float32) error {
	vectors, err := s.buildVectors(codeVec, summaryVec)
	if err != nil {
		return err
	}

	updater := s.client.Data().Updater().
		WithClassName(ref.Kind.String()).
		WithID(ref.ID).
		WithMerge().
		WithProperties(map[string]interface{}{"summary": summary})
	if len(vectors) > 0 {
		updater = updater.WithVectors(vectors)
	}

	if err := updater.Do(ctx); err != nil {
		return fmt.Errorf("update enrichment on %s %s: %w", ref.Kind, ref.ID, err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// buildVectors assembles the named-vector payload, enforcing the index
// dimension on every non-empty vector.
func (s *Store) buildVectors(codeVec, summaryVec []float32) (models.Vectors, error) {
	vectors := models.Vectors{}
	if len(codeVec) > 0 {
		if len(codeVec) != s.dimension {
			return nil, fmt.Errorf("%w: code vector has %d dims, index expects %d",
				ErrDimensionMismatch, len(codeVec), s.dimension)
		}
		vectors[datatypes.VectorCodeEmbedding] = codeVec
	}
	if len(summaryVec) > 0 {
		if len(summaryVec) != s.dimension {
			return nil, fmt.Errorf("%w: summary vector has %d dims, index expects %d",
				ErrDimensionMismatch, len(summaryVec), s.dimension)
		}
		vectors[datatypes.VectorSummaryEmbedding] = summaryVec
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return vectors, nil
}

func repositoryFilter(repository string) *filters.WhereBuilder {
	return filters.Where().
		WithPath([]string{"repository"}).
		WithOperator(filters.Equal).
		WithValueText(repository)
}

// emptyIfNil keeps text[] properties as empty arrays rather than nulls so
// filters behave consistently.
func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

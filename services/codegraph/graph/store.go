// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph materializes extractor parse trees into the knowledge graph:
// one RepositoryNode per repository, connected to FileNode, ClassNode, and
// FunctionNode subtrees via directed CHILD edges.
//
// Ingestion is deliberately best-effort: a failed node or edge is logged,
// recorded in the per-ingest report, and never rolls back siblings. A
// partial graph beats no graph; ValidateStructure reports the damage.
package graph

import (
	"context"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// NodeRef is an opaque handle to a persisted graph node.
type NodeRef struct {
	ID   string
	Kind datatypes.NodeKind
}

// EnrichmentTarget is one persisted node still carrying the placeholder
// summary, waiting for the summarize pass.
type EnrichmentTarget struct {
	Ref  NodeRef
	Name string
	Code string
}

// Store is the persistence contract the ingestor needs. The production
// implementation is services/codegraph/weaviate; tests use in-memory fakes.
type Store interface {
	// FindRepository returns the repository root with the given name, or
	// (nil, nil) when no such repository exists.
	FindRepository(ctx context.Context, name string) (*NodeRef, error)

	// CreateRepository persists a new repository root node.
	CreateRepository(ctx context.Context, name string) (*NodeRef, error)

	// CreateNode persists one code node under the named repository and
	// returns its handle. The node is not connected to anything yet.
	CreateNode(ctx context.Context, repository string, node *datatypes.CodeNode) (*NodeRef, error)

	// Connect creates a directed CHILD edge from parent to child.
	Connect(ctx context.Context, parent, child NodeRef) error

	// CountReachable counts nodes reachable from the named repository via
	// one or more CHILD edges.
	CountReachable(ctx context.Context, repository string) (int, error)

	// CountOrphaned counts tracked-kind nodes reachable from no repository
	// at all.
	CountOrphaned(ctx context.Context) (int, error)
}

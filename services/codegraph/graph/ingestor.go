// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

var (
	// ErrNilStore is returned when an Ingestor is constructed without a store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrEmptyRepository is returned for an empty repository name.
	ErrEmptyRepository = errors.New("repository name must not be empty")

	// ErrRepositoryNotCreated is returned when Ingest runs before
	// CreateRepository.
	ErrRepositoryNotCreated = errors.New("repository node not created, call CreateRepository first")

	// ErrNilTree is returned for a nil parse tree.
	ErrNilTree = errors.New("parse tree must not be nil")
)

// Skip reasons recorded in IngestReport.Skipped.
const (
	SkipUnknownType   = "unknown node type"
	SkipPersistFailed = "node persistence failed"
)

// SkippedNode is one node the ingestor could not (fully) persist.
type SkippedNode struct {
	Name string `json:"name"`
	Type string `json:"type"`
	// Reason is one of the Skip* constants.
	Reason string `json:"reason"`
}

// IngestReport is the per-file outcome of one Ingest call. The best-effort
// acceptance of partial trees is made explicit here instead of living only
// in logs.
type IngestReport struct {
	File string `json:"file"`

	// Created counts nodes persisted, connected or not.
	Created int `json:"created"`

	// Connected counts CHILD edges successfully created.
	Connected int `json:"connected"`

	// Orphaned counts nodes persisted without a CHILD edge, either because
	// their parent was never persisted or because edge creation failed.
	Orphaned int `json:"orphaned"`

	// Skipped lists nodes that were not persisted. A node skipped for an
	// unknown type drops its whole subtree; a node skipped for a persistence
	// failure does not - its children are still attempted, orphaned.
	Skipped []SkippedNode `json:"skipped,omitempty"`
}

// ValidationResult is the post-hoc connectivity census of the graph.
type ValidationResult struct {
	// Connected counts nodes reachable from this ingestor's repository.
	Connected int `json:"connected"`

	// Orphaned counts tracked-kind nodes reachable from no repository.
	Orphaned int `json:"orphaned"`
}

// Ingestor persists parse trees under a single repository root.
//
// Ingestion of one tree is strictly sequential: each child's persistence
// needs its parent's handle, so the traversal is pre-order by necessity.
// Separate files may be ingested from separate Ingestors concurrently; the
// store provides its own isolation.
type Ingestor struct {
	store      Store
	repository string
	repo       *NodeRef
}

// NewIngestor creates an ingestor for the named repository.
func NewIngestor(store Store, repository string) (*Ingestor, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if repository == "" {
		return nil, ErrEmptyRepository
	}
	return &Ingestor{store: store, repository: repository}, nil
}

// Repository returns the repository name this ingestor writes under.
func (in *Ingestor) Repository() string { return in.repository }

// CreateRepository gets or creates the repository root node. Idempotent:
// re-ingesting the same repository name reuses the existing root instead of
// duplicating it.
func (in *Ingestor) CreateRepository(ctx context.Context) (*NodeRef, error) {
	if in.repo != nil {
		return in.repo, nil
	}

	ref, err := in.store.FindRepository(ctx, in.repository)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		slog.Info("Repository already exists", "repository", in.repository)
		in.repo = ref
		return ref, nil
	}

	ref, err = in.store.CreateRepository(ctx, in.repository)
	if err != nil {
		return nil, err
	}
	slog.Info("Created repository node", "repository", in.repository)
	in.repo = ref
	return ref, nil
}

// frame is one pending node of the iterative pre-order traversal. parent is
// nil when the node's structural parent was never persisted; the node is
// still created, deliberately orphaned, so that as much of the tree as
// possible survives a mid-tree failure.
type frame struct {
	node       *datatypes.ParsedNode
	parent     *NodeRef
	parentName string
}

// Ingest persists one file's parse tree and connects it under the
// repository root.
//
// Traversal is pre-order with an explicit stack rather than recursion, so
// pathologically deep trees cannot exhaust the goroutine stack. Per-node
// failure policy:
//
//   - unknown type: node and subtree skipped, siblings continue
//   - persistence failure: node skipped, children still attempted (orphaned)
//   - edge failure: logged, node counted orphaned, children continue
//
// No transaction spans the tree; partial trees persist on failure.
func (in *Ingestor) Ingest(ctx context.Context, tree *datatypes.FileTree) (*IngestReport, error) {
	if tree == nil {
		return nil, ErrNilTree
	}
	if in.repo == nil {
		return nil, ErrRepositoryNotCreated
	}

	report := &IngestReport{File: tree.File}

	root := &datatypes.ParsedNode{
		Type:       datatypes.TypeFile,
		Name:       tree.File,
		Lineno:     0,
		Code:       tree.Code,
		Parameters: nil,
		Children:   tree.Children,
	}

	stack := []frame{{node: root, parent: in.repo}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.node == nil {
			continue
		}

		kind, ok := datatypes.KindForType(fr.node.Type)
		if !ok {
			slog.Warn("Skipping unknown node type",
				"type", fr.node.Type,
				"name", fr.node.Name,
				"file", tree.File)
			report.Skipped = append(report.Skipped, SkippedNode{
				Name:   fr.node.Name,
				Type:   fr.node.Type,
				Reason: SkipUnknownType,
			})
			continue // subtree dropped with it
		}

		node := &datatypes.CodeNode{
			Kind:                      kind,
			Name:                      fr.node.Name,
			Lineno:                    fr.node.Lineno,
			Code:                      fr.node.Code,
			Parameters:                fr.node.Parameters,
			Async:                     datatypes.IsAsyncType(fr.node.Type),
			Summary:                   datatypes.PlaceholderSummary,
			ParentSourceIdentifier:    fr.parentName,
			ChildrenSourceIdentifiers: datatypes.ChildNames(fr.node.Children),
		}

		ref, err := in.store.CreateNode(ctx, in.repository, node)
		if err != nil {
			slog.Error("Failed to persist node",
				"kind", kind.String(),
				"name", fr.node.Name,
				"error", err)
			report.Skipped = append(report.Skipped, SkippedNode{
				Name:   fr.node.Name,
				Type:   fr.node.Type,
				Reason: SkipPersistFailed,
			})
			// Children are still attempted against the missing parent.
			pushChildren(&stack, fr.node, nil)
			continue
		}
		report.Created++

		switch {
		case fr.parent != nil:
			if err := in.store.Connect(ctx, *fr.parent, *ref); err != nil {
				slog.Error("Failed to connect node to parent",
					"parent", fr.parent.ID,
					"child", fr.node.Name,
					"error", err)
				report.Orphaned++
			} else {
				report.Connected++
			}
		default:
			slog.Warn("Node persisted without a parent", "name", fr.node.Name)
			report.Orphaned++
		}

		pushChildren(&stack, fr.node, ref)
	}

	slog.Info("Ingested file tree",
		"file", tree.File,
		"created", report.Created,
		"connected", report.Connected,
		"orphaned", report.Orphaned,
		"skipped", len(report.Skipped))
	return report, nil
}

// pushChildren schedules the children in reverse so the LIFO stack pops them
// in source order.
func pushChildren(stack *[]frame, parent *datatypes.ParsedNode, ref *NodeRef) {
	for i := len(parent.Children) - 1; i >= 0; i-- {
		*stack = append(*stack, frame{
			node:       parent.Children[i],
			parent:     ref,
			parentName: parent.Name,
		})
	}
}

// ValidateStructure counts nodes reachable from this repository and
// tracked-kind nodes reachable from no repository at all.
//
// Diagnostic only: it never mutates the graph and never returns an error.
// On internal failure (store unreachable, repository not created) it logs
// and returns nil.
func (in *Ingestor) ValidateStructure(ctx context.Context) *ValidationResult {
	if in.repo == nil {
		slog.Error("Cannot validate: repository node not created", "repository", in.repository)
		return nil
	}

	connected, err := in.store.CountReachable(ctx, in.repository)
	if err != nil {
		slog.Error("Validation failed counting reachable nodes",
			"repository", in.repository, "error", err)
		return nil
	}

	orphaned, err := in.store.CountOrphaned(ctx)
	if err != nil {
		slog.Error("Validation failed counting orphaned nodes",
			"repository", in.repository, "error", err)
		return nil
	}

	if orphaned > 0 {
		slog.Warn("Found orphaned nodes not connected to any repository",
			"orphaned", orphaned)
	}
	slog.Info("Repository structure validated",
		"repository", in.repository,
		"connected", connected,
		"orphaned", orphaned)

	return &ValidationResult{Connected: connected, Orphaned: orphaned}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the code knowledge graph schema: node kinds,
// the extractor parse-tree contract, Weaviate class definitions, and the
// shared request/response types used by the API layer.
package datatypes

// =============================================================================
// Node Kinds
// =============================================================================

// NodeKind identifies the structural type of a graph node. The kind doubles
// as the Weaviate class name so that store code never rebuilds the mapping.
type NodeKind string

const (
	// KindRepository is the root node of one ingested repository.
	KindRepository NodeKind = "RepositoryNode"

	// KindFile is a single source file.
	KindFile NodeKind = "FileNode"

	// KindClass is a class (or equivalent aggregate) inside a file.
	KindClass NodeKind = "ClassNode"

	// KindFunction covers both synchronous and asynchronous functions.
	// Async is a flag on CodeNode, not a separate kind.
	KindFunction NodeKind = "FunctionNode"
)

// TrackedKinds are the node kinds that participate in retrieval and
// connectivity validation. RepositoryNode is deliberately absent: it is the
// anchor, never a result.
var TrackedKinds = []NodeKind{KindFile, KindClass, KindFunction}

// String returns the kind as its Weaviate class name.
func (k NodeKind) String() string { return string(k) }

// Tracked reports whether the kind is one of the retrievable node kinds.
func (k NodeKind) Tracked() bool {
	return k == KindFile || k == KindClass || k == KindFunction
}

// kindForType maps extractor node type strings to graph kinds. Both function
// flavors collapse into KindFunction.
var kindForType = map[string]NodeKind{
	TypeFile:          KindFile,
	TypeClass:         KindClass,
	TypeFunction:      KindFunction,
	TypeAsyncFunction: KindFunction,
}

// Extractor node type strings, the wire contract with structural extractors.
const (
	TypeFile          = "file"
	TypeClass         = "class"
	TypeFunction      = "function"
	TypeAsyncFunction = "async_function"
)

// KindForType resolves an extractor type string to a NodeKind.
//
// The second return is false for unknown type strings; callers skip the node
// (and its subtree) with a diagnostic rather than failing the ingest.
func KindForType(typ string) (NodeKind, bool) {
	k, ok := kindForType[typ]
	return k, ok
}

// IsAsyncType reports whether the extractor type string denotes an
// asynchronous function.
func IsAsyncType(typ string) bool { return typ == TypeAsyncFunction }

// =============================================================================
// Graph Node Payload
// =============================================================================

// PlaceholderSummary marks a node whose summary has not been generated yet.
// The summarize runner scans for this value.
const PlaceholderSummary = "N/A"

// CodeNode is the shared payload persisted for File, Class, and Function
// nodes. Embedding vectors are empty at ingest time and populated later by
// the enrichment pipeline.
type CodeNode struct {
	Kind NodeKind

	// Name is unique within a file's subtree by construction, but NOT
	// globally unique. Retrieval dedups on (Kind, Name).
	Name string

	// Lineno is 1-based; 0 for file nodes.
	Lineno int

	// Code is the exact source text span.
	Code string

	// Parameters are ordered parameter names, possibly empty.
	Parameters []string

	// Async marks asynchronous functions. Only meaningful for KindFunction.
	Async bool

	Summary          string
	CodeEmbedding    []float32
	SummaryEmbedding []float32

	// ParentSourceIdentifier is the parent name as reported by the
	// extractor. Advisory only; the CHILD edges are authoritative.
	ParentSourceIdentifier string

	// ChildrenSourceIdentifiers are the extractor-reported child names,
	// denormalized for audit. Length matches the children attempted during
	// ingestion even when individual child persistence fails.
	ChildrenSourceIdentifiers []string
}

// =============================================================================
// Extractor Parse Tree
// =============================================================================

// ParsedNode is one node of the generic parse tree produced by a structural
// extractor. Type is one of the Type* constants above; unknown values are
// skipped during ingestion.
type ParsedNode struct {
	Type       string        `json:"type"`
	Name       string        `json:"name"`
	Lineno     int           `json:"lineno"`
	Code       string        `json:"code"`
	Parameters []string      `json:"parameters"`
	Children   []*ParsedNode `json:"children"`
}

// FileTree is the root of one file's parse tree as returned by an extractor.
type FileTree struct {
	File     string        `json:"file"`
	Code     string        `json:"code"`
	Children []*ParsedNode `json:"children"`
}

// ChildNames returns the names of the direct children, preserving order and
// skipping unnamed entries. Used to populate ChildrenSourceIdentifiers.
func ChildNames(children []*ParsedNode) []string {
	names := make([]string, 0, len(children))
	for _, c := range children {
		if c != nil && c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultEmbeddingDimension is the vector dimension configured on all six
// ANN indexes. It must match the embedding service output; the store rejects
// vectors of any other length.
const DefaultEmbeddingDimension = 768

// Named vector fields. Each tracked node class carries both, which yields
// the six (class x field) ANN indexes the retrieval engine searches.
const (
	VectorCodeEmbedding    = "code_embedding"
	VectorSummaryEmbedding = "summary_embedding"
)

// ChildrenProperty is the cross-reference property expressing CHILD edges.
const ChildrenProperty = "children"

// namedVectorConfig builds the per-field HNSW index configuration. Vectors
// are always provided by the caller, never by a Weaviate vectorizer module.
func namedVectorConfig() map[string]models.VectorConfig {
	return map[string]models.VectorConfig{
		VectorCodeEmbedding: {
			Vectorizer:      map[string]interface{}{"none": map[string]interface{}{}},
			VectorIndexType: "hnsw",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
		},
		VectorSummaryEmbedding: {
			Vectorizer:      map[string]interface{}{"none": map[string]interface{}{}},
			VectorIndexType: "hnsw",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
		},
	}
}

// codeNodeProperties returns the scalar properties shared by FileNode,
// ClassNode, and FunctionNode. The children cross-reference is added in a
// second schema pass because the node classes reference each other.
func codeNodeProperties() []*models.Property {
	indexFilterable := new(bool)
	*indexFilterable = true

	return []*models.Property{
		{
			Name:            "name",
			DataType:        []string{"text"},
			Description:     "Symbol or file name. Unique only within a file's subtree.",
			IndexFilterable: indexFilterable,
			Tokenization:    "word",
		},
		{
			Name:        "lineno",
			DataType:    []string{"int"},
			Description: "1-based line number; 0 for file nodes.",
		},
		{
			Name:         "code",
			DataType:     []string{"text"},
			Description:  "Exact source text span.",
			Tokenization: "word",
		},
		{
			Name:        "parameters",
			DataType:    []string{"text[]"},
			Description: "Ordered parameter names, possibly empty.",
		},
		{
			Name:        "async",
			DataType:    []string{"boolean"},
			Description: "True for asynchronous functions.",
		},
		{
			Name:         "summary",
			DataType:     []string{"text"},
			Description:  "Natural-language summary. 'N/A' until enrichment runs.",
			Tokenization: "word",
		},
		{
			Name:        "parent_source_identifier",
			DataType:    []string{"text"},
			Description: "Parent name as reported by the extractor. Advisory.",
		},
		{
			Name:        "children_source_identifiers",
			DataType:    []string{"text[]"},
			Description: "Extractor-reported child names, denormalized for audit.",
		},
		{
			Name:            "repository",
			DataType:        []string{"text"},
			Description:     "Owning repository name, written by the ingestor.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "parent_id",
			DataType:        []string{"text"},
			Description:     "UUID of the structural parent. Empty for orphaned nodes.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
		{
			Name:            "parent_kind",
			DataType:        []string{"text"},
			Description:     "Class name of the structural parent.",
			IndexFilterable: indexFilterable,
			Tokenization:    "field",
		},
	}
}

// GetRepositorySchema returns the class definition for repository root nodes.
func GetRepositorySchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       KindRepository.String(),
		Description: "Root node of one ingested code repository.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "name",
				DataType:        []string{"text"},
				Description:     "Unique repository name.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "created_at",
				DataType:    []string{"number"},
				Description: "Unix milliseconds when the repository was first ingested.",
			},
		},
	}
}

// GetFileNodeSchema returns the FileNode class definition.
func GetFileNodeSchema() *models.Class {
	return &models.Class{
		Class:        KindFile.String(),
		Description:  "A single source file of an ingested repository.",
		Properties:   codeNodeProperties(),
		VectorConfig: namedVectorConfig(),
	}
}

// GetClassNodeSchema returns the ClassNode class definition.
func GetClassNodeSchema() *models.Class {
	return &models.Class{
		Class:        KindClass.String(),
		Description:  "A class (or equivalent aggregate) extracted from a file.",
		Properties:   codeNodeProperties(),
		VectorConfig: namedVectorConfig(),
	}
}

// GetFunctionNodeSchema returns the FunctionNode class definition.
func GetFunctionNodeSchema() *models.Class {
	return &models.Class{
		Class:        KindFunction.String(),
		Description:  "A synchronous or asynchronous function extracted from a file.",
		Properties:   codeNodeProperties(),
		VectorConfig: namedVectorConfig(),
	}
}

// childTargets lists the classes a node's children reference may point at,
// per parent class. Functions may contain nested functions and classes
// (Python allows both), classes likewise; repositories only contain files.
var childTargets = map[NodeKind][]string{
	KindRepository: {KindFile.String()},
	KindFile:       {KindClass.String(), KindFunction.String()},
	KindClass:      {KindClass.String(), KindFunction.String()},
	KindFunction:   {KindClass.String(), KindFunction.String()},
}

// EnsureWeaviateSchema creates the four node classes and their CHILD
// cross-references if they do not exist yet.
//
// The classes are created without reference properties first, then the
// children property is added in a second pass. Creating them in one shot
// would fail: ClassNode and FunctionNode reference each other, so whichever
// is created first would point at a class that does not exist yet.
func EnsureWeaviateSchema(ctx context.Context, client *weaviate.Client) error {
	schemaGetters := []func() *models.Class{
		GetRepositorySchema,
		GetFileNodeSchema,
		GetClassNodeSchema,
		GetFunctionNodeSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
		if err == nil {
			slog.Info("Schema already exists", "class", class.Class)
			continue
		}

		slog.Info("Schema not found, creating it...", "class", class.Class)
		if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("create schema for class %s: %w", class.Class, err)
		}
	}

	// Second pass: cross-references.
	for kind, targets := range childTargets {
		prop := &models.Property{
			Name:        ChildrenProperty,
			DataType:    targets,
			Description: "Directed CHILD containment edges.",
		}
		err := client.Schema().PropertyCreator().
			WithClassName(kind.String()).
			WithProperty(prop).
			Do(ctx)
		if err != nil {
			// Property creation is not idempotent: an "already exists"
			// error on re-run is expected and harmless.
			slog.Debug("children property not added", "class", kind.String(), "error", err)
		}
	}

	return nil
}

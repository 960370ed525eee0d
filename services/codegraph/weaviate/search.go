// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// nodeFields is the property set every search query projects. Certainty is
// only populated on vector searches; other callers ignore it.
var nodeFields = []graphql.Field{
	{Name: "name"},
	{Name: "summary"},
	{Name: "code"},
	{Name: "lineno"},
	{Name: "parent_id"},
	{Name: "parent_kind"},
	{Name: "_additional", Fields: []graphql.Field{
		{Name: "id"},
		{Name: "certainty"},
	}},
}

// SearchNearVector runs an ANN search against one named vector of one class.
// Scores are Weaviate certainties in [0, 1]. An empty repository searches
// all repositories.
func (s *Store) SearchNearVector(ctx context.Context, kind datatypes.NodeKind, vectorField string, vector []float32, limit int, repository string) ([]datatypes.RetrievedNode, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dims, index expects %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}
	if limit <= 0 {
		return nil, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector).
		WithTargetVectors(vectorField)

	query := s.client.GraphQL().Get().
		WithClassName(kind.String()).
		WithFields(nodeFields...).
		WithNearVector(nearVector).
		WithLimit(limit)
	if repository != "" {
		query = query.WithWhere(repositoryFilter(repository))
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("near-vector search on %s.%s: %w", kind, vectorField, err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.NodeQueryResponse](resp)
	if err != nil {
		return nil, err
	}

	return toRetrievedNodes(kind, parsed.Results(kind), true), nil
}

// NodesByKeywords returns nodes of every tracked kind whose name or summary
// contains at least one of the keywords. Scoring against the full keyword
// set is the caller's job; returned scores are zero.
func (s *Store) NodesByKeywords(ctx context.Context, keywords []string, repository string, limit int) ([]datatypes.RetrievedNode, error) {
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}

	terms := make([]*filters.WhereBuilder, 0, len(keywords)*2)
	for _, kw := range keywords {
		pattern := "*" + kw + "*"
		terms = append(terms,
			filters.Where().WithPath([]string{"name"}).WithOperator(filters.Like).WithValueText(pattern),
			filters.Where().WithPath([]string{"summary"}).WithOperator(filters.Like).WithValueText(pattern),
		)
	}
	anyTerm := filters.Where().WithOperator(filters.Or).WithOperands(terms)

	where := anyTerm
	if repository != "" {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{repositoryFilter(repository), anyTerm})
	}

	var all []datatypes.RetrievedNode
	for _, kind := range datatypes.TrackedKinds {
		resp, err := s.client.GraphQL().Get().
			WithClassName(kind.String()).
			WithFields(nodeFields...).
			WithWhere(where).
			WithLimit(limit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("keyword search on %s: %w", kind, err)
		}
		parsed, err := datatypes.ParseGraphQLResponse[datatypes.NodeQueryResponse](resp)
		if err != nil {
			return nil, err
		}
		all = append(all, toRetrievedNodes(kind, parsed.Results(kind), false)...)
	}
	return all, nil
}

// RelatedChildren returns up to limit descendants of the named node within
// maxDepth CHILD hops, nearest hops first.
func (s *Store) RelatedChildren(ctx context.Context, kind datatypes.NodeKind, name string, maxDepth, limit int, repository string) ([]datatypes.RetrievedNode, error) {
	if limit <= 0 || maxDepth <= 0 {
		return nil, nil
	}

	frontier, err := s.nodeIDsByName(ctx, kind, name, repository)
	if err != nil {
		return nil, err
	}

	var related []datatypes.RetrievedNode
	for depth := 0; depth < maxDepth && len(frontier) > 0 && len(related) < limit; depth++ {
		var next []string
		for _, childKind := range datatypes.TrackedKinds {
			nodes, err := s.nodesByParentIDs(ctx, childKind, frontier, repository)
			if err != nil {
				return nil, err
			}
			for _, n := range nodes {
				next = append(next, n.id)
				if len(related) < limit {
					related = append(related, n.node)
				}
			}
		}
		frontier = next
	}
	return related, nil
}

// RelatedParents returns up to limit ancestors of the named node within
// maxDepth CHILD hops, nearest hops first. Repository roots are not
// retrievable and terminate the walk.
func (s *Store) RelatedParents(ctx context.Context, kind datatypes.NodeKind, name string, maxDepth, limit int, repository string) ([]datatypes.RetrievedNode, error) {
	if limit <= 0 || maxDepth <= 0 {
		return nil, nil
	}

	where := filters.Where().
		WithPath([]string{"name"}).
		WithOperator(filters.Equal).
		WithValueText(name)
	if repository != "" {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{where, repositoryFilter(repository)})
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(kind.String()).
		WithFields(nodeFields...).
		WithWhere(where).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %q: %w", kind, name, err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.NodeQueryResponse](resp)
	if err != nil {
		return nil, err
	}

	// frontier maps parent kind to the parent ids still to fetch.
	frontier := map[datatypes.NodeKind][]string{}
	for _, r := range parsed.Results(kind) {
		addParentPointer(frontier, r.ParentKind, r.ParentID)
	}

	var related []datatypes.RetrievedNode
	for depth := 0; depth < maxDepth && len(frontier) > 0 && len(related) < limit; depth++ {
		next := map[datatypes.NodeKind][]string{}
		for parentKind, ids := range frontier {
			nodes, err := s.nodesByIDs(ctx, parentKind, ids)
			if err != nil {
				return nil, err
			}
			for _, n := range nodes {
				if len(related) < limit {
					related = append(related, n.node)
				}
				addParentPointer(next, n.parentKind, n.parentID)
			}
		}
		frontier = next
	}
	return related, nil
}

// =============================================================================
// Internal queries
// =============================================================================

// identifiedNode pairs a retrievable node with the graph pointers the search
// walks need but the API never returns.
type identifiedNode struct {
	id         string
	parentID   string
	parentKind string
	node       datatypes.RetrievedNode
}

func (s *Store) nodeIDsByName(ctx context.Context, kind datatypes.NodeKind, name, repository string) ([]string, error) {
	where := filters.Where().
		WithPath([]string{"name"}).
		WithOperator(filters.Equal).
		WithValueText(name)
	if repository != "" {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{where, repositoryFilter(repository)})
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(kind.String()).
		WithFields(graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}).
		WithWhere(where).
		WithLimit(pageLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve %s %q: %w", kind, name, err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.NodeQueryResponse](resp)
	if err != nil {
		return nil, err
	}

	results := parsed.Results(kind)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Additional.ID)
	}
	return ids, nil
}

func (s *Store) nodesByParentIDs(ctx context.Context, kind datatypes.NodeKind, parentIDs []string, repository string) ([]identifiedNode, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}

	where := filters.Where().
		WithPath([]string{"parent_id"}).
		WithOperator(filters.ContainsAny).
		WithValueText(parentIDs...)
	if repository != "" {
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{where, repositoryFilter(repository)})
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(kind.String()).
		WithFields(nodeFields...).
		WithWhere(where).
		WithLimit(pageLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("query %s children: %w", kind, err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.NodeQueryResponse](resp)
	if err != nil {
		return nil, err
	}
	return toIdentifiedNodes(kind, parsed.Results(kind)), nil
}

func (s *Store) nodesByIDs(ctx context.Context, kind datatypes.NodeKind, ids []string) ([]identifiedNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	where := filters.Where().
		WithPath([]string{"id"}).
		WithOperator(filters.ContainsAny).
		WithValueText(ids...)

	resp, err := s.client.GraphQL().Get().
		WithClassName(kind.String()).
		WithFields(nodeFields...).
		WithWhere(where).
		WithLimit(len(ids)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("query %s by id: %w", kind, err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.NodeQueryResponse](resp)
	if err != nil {
		return nil, err
	}
	return toIdentifiedNodes(kind, parsed.Results(kind)), nil
}

// addParentPointer records a parent id under its kind, dropping pointers to
// untracked kinds (repository roots) and unset pointers (orphans).
func addParentPointer(frontier map[datatypes.NodeKind][]string, parentKind, parentID string) {
	if parentID == "" {
		return
	}
	kind := datatypes.NodeKind(parentKind)
	if !kind.Tracked() {
		return
	}
	frontier[kind] = append(frontier[kind], parentID)
}

func toRetrievedNodes(kind datatypes.NodeKind, results []datatypes.NodeResult, withCertainty bool) []datatypes.RetrievedNode {
	nodes := make([]datatypes.RetrievedNode, 0, len(results))
	for _, r := range results {
		node := datatypes.RetrievedNode{
			Type:    kind,
			Name:    r.Name,
			Summary: r.Summary,
			Code:    r.Code,
			Lineno:  r.Lineno,
		}
		if withCertainty && r.Additional.Certainty != nil {
			node.Score = *r.Additional.Certainty
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func toIdentifiedNodes(kind datatypes.NodeKind, results []datatypes.NodeResult) []identifiedNode {
	nodes := make([]identifiedNode, 0, len(results))
	for _, r := range results {
		nodes = append(nodes, identifiedNode{
			id:         r.Additional.ID,
			parentID:   r.ParentID,
			parentKind: r.ParentKind,
			node: datatypes.RetrievedNode{
				Type:    kind,
				Name:    r.Name,
				Summary: r.Summary,
				Code:    r.Code,
				Lineno:  r.Lineno,
			},
		})
	}
	return nodes
}

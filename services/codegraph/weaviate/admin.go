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
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

// RepositoryInfo is a listed repository root.
type RepositoryInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListRepositories returns every repository root in the store.
func (s *Store) ListRepositories(ctx context.Context) ([]RepositoryInfo, error) {
	resp, err := s.client.GraphQL().Get().
		WithClassName(datatypes.KindRepository.String()).
		WithFields(
			graphql.Field{Name: "name"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
		).
		WithLimit(pageLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.RepositoryQueryResponse](resp)
	if err != nil {
		return nil, err
	}

	repos := make([]RepositoryInfo, 0, len(parsed.Get.RepositoryNode))
	for _, r := range parsed.Get.RepositoryNode {
		repos = append(repos, RepositoryInfo{ID: r.Additional.ID, Name: r.Name})
	}
	return repos, nil
}

// RepositoryStats returns per-kind node counts for one repository.
func (s *Store) RepositoryStats(ctx context.Context, repository string) (*datatypes.RepositoryStats, error) {
	stats := &datatypes.RepositoryStats{Repository: repository}
	for _, kind := range datatypes.TrackedKinds {
		count, err := s.countByFilter(ctx, kind, repositoryFilter(repository))
		if err != nil {
			return nil, err
		}
		switch kind {
		case datatypes.KindFile:
			stats.Files = count
		case datatypes.KindClass:
			stats.Classes = count
		case datatypes.KindFunction:
			stats.Functions = count
		}
	}
	stats.Total = stats.Files + stats.Classes + stats.Functions
	return stats, nil
}

// DeleteRepository removes the repository root and every node tagged with
// its name. Deletes are per class; a failure part-way leaves the remaining
// classes untouched and is reported to the caller.
func (s *Store) DeleteRepository(ctx context.Context, repository string) error {
	for _, kind := range datatypes.TrackedKinds {
		result, err := s.client.Batch().ObjectsBatchDeleter().
			WithClassName(kind.String()).
			WithWhere(repositoryFilter(repository)).
			WithOutput("minimal").
			Do(ctx)
		if err != nil {
			return fmt.Errorf("delete %s nodes of %q: %w", kind, repository, err)
		}
		if result != nil && result.Results != nil {
			slog.Debug("Deleted repository nodes",
				"repository", repository,
				"kind", kind.String(),
				"matches", result.Results.Matches)
		}
	}

	rootFilter := filters.Where().
		WithPath([]string{"name"}).
		WithOperator(filters.Equal).
		WithValueText(repository)
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(datatypes.KindRepository.String()).
		WithWhere(rootFilter).
		WithOutput("minimal").
		Do(ctx)
	if err != nil {
		return fmt.Errorf("delete repository root %q: %w", repository, err)
	}
	return nil
}

// =============================================================================
// Structure validation
// =============================================================================

// CountReachable walks parent_id pointers breadth-first from the named
// repository root and counts every tracked node it reaches.
func (s *Store) CountReachable(ctx context.Context, repository string) (int, error) {
	root, err := s.FindRepository(ctx, repository)
	if err != nil {
		return 0, err
	}
	if root == nil {
		return 0, fmt.Errorf("repository %q not found", repository)
	}

	reached, err := s.reachableFrom(ctx, []string{root.ID}, repository)
	if err != nil {
		return 0, err
	}
	return len(reached), nil
}

// CountOrphaned counts tracked nodes across all repositories that no
// repository root can reach through parent_id pointers.
func (s *Store) CountOrphaned(ctx context.Context) (int, error) {
	repos, err := s.ListRepositories(ctx)
	if err != nil {
		return 0, err
	}

	roots := make([]string, 0, len(repos))
	for _, r := range repos {
		roots = append(roots, r.ID)
	}
	reached, err := s.reachableFrom(ctx, roots, "")
	if err != nil {
		return 0, err
	}

	total := 0
	for _, kind := range datatypes.TrackedKinds {
		count, err := s.countByFilter(ctx, kind, nil)
		if err != nil {
			return 0, err
		}
		total += count
	}

	orphaned := total - len(reached)
	if orphaned < 0 {
		// Concurrent ingestion between the walk and the counts.
		orphaned = 0
	}
	return orphaned, nil
}

// reachableFrom runs the BFS shared by CountReachable and CountOrphaned and
// returns the set of tracked node ids reached from the given roots.
func (s *Store) reachableFrom(ctx context.Context, roots []string, repository string) (map[string]struct{}, error) {
	reached := make(map[string]struct{})
	frontier := roots
	for len(frontier) > 0 {
		var next []string
		for _, kind := range datatypes.TrackedKinds {
			nodes, err := s.nodesByParentIDs(ctx, kind, frontier, repository)
			if err != nil {
				return nil, err
			}
			for _, n := range nodes {
				if _, seen := reached[n.id]; seen {
					continue
				}
				reached[n.id] = struct{}{}
				next = append(next, n.id)
			}
		}
		frontier = next
	}
	return reached, nil
}

// countByFilter runs Aggregate { meta { count } } on one class. A nil filter
// counts the whole class.
func (s *Store) countByFilter(ctx context.Context, kind datatypes.NodeKind, where *filters.WhereBuilder) (int, error) {
	query := s.client.GraphQL().Aggregate().
		WithClassName(kind.String()).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})
	if where != nil {
		query = query.WithWhere(where)
	}

	resp, err := query.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s nodes: %w", kind, err)
	}
	parsed, err := datatypes.ParseGraphQLResponse[datatypes.AggregateCountResponse](resp)
	if err != nil {
		return 0, err
	}
	return parsed.Count(kind), nil
}

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
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target
// type. The target type T must carry json tags matching the response shape.
//
// Weaviate returns dynamic data (map[string]models.JSONObject); this generic
// helper encapsulates the marshal/unmarshal round trip into a typed struct.
// Type mismatches yield zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 && resp.Errors[0] != nil {
		return nil, fmt.Errorf("graphql error: %s", resp.Errors[0].Message)
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// NodeResult is a single node object as returned by Get queries against any
// of the tracked node classes.
type NodeResult struct {
	Name       string   `json:"name"`
	Summary    string   `json:"summary"`
	Code       string   `json:"code"`
	Lineno     int      `json:"lineno"`
	Parameters []string `json:"parameters"`
	ParentID   string   `json:"parent_id"`
	ParentKind string   `json:"parent_kind"`
	Repository string   `json:"repository"`
	Additional struct {
		ID        string   `json:"id"`
		Certainty *float64 `json:"certainty"`
	} `json:"_additional"`
}

// NodeQueryResponse parses Get responses generically across node classes.
// The Get payload is keyed by class name, so a map keeps one response type
// working for FileNode, ClassNode, and FunctionNode queries alike.
type NodeQueryResponse struct {
	Get map[string][]NodeResult `json:"Get"`
}

// Results returns the hits for the given class, or nil.
func (r *NodeQueryResponse) Results(kind NodeKind) []NodeResult {
	if r == nil {
		return nil
	}
	return r.Get[kind.String()]
}

// RepositoryResult is a repository root node from a Get query.
type RepositoryResult struct {
	Name       string `json:"name"`
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
}

// RepositoryQueryResponse is the Get response shape for RepositoryNode.
type RepositoryQueryResponse struct {
	Get struct {
		RepositoryNode []RepositoryResult `json:"RepositoryNode"`
	} `json:"Get"`
}

// AggregateCountResponse parses Aggregate ... { meta { count } } responses,
// keyed by class name like Get responses.
type AggregateCountResponse struct {
	Aggregate map[string][]struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	} `json:"Aggregate"`
}

// Count returns the aggregate count for the given class, or 0.
func (r *AggregateCountResponse) Count(kind NodeKind) int {
	if r == nil {
		return 0
	}
	rows := r.Aggregate[kind.String()]
	if len(rows) == 0 {
		return 0
	}
	return rows[0].Meta.Count
}

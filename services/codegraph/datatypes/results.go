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

// SearchType tags how a retrieval result was found.
const (
	SearchTypeSummary = "summary" // summary-embedding ANN hit
	SearchTypeCode    = "code"    // code-embedding ANN hit
	SearchTypeGraph   = "graph"   // keyword match on name/summary
	SearchTypeHybrid  = "hybrid"  // found by more than one strategy
	SearchTypeRelated = "related" // neighbor enrichment
)

// Relation values for SearchTypeRelated results.
const (
	RelationChild  = "child"
	RelationParent = "parent"
)

// RetrievedNode is one entry of the ranked result list returned to callers.
// Score is the fused relevance score in [0, 1].
type RetrievedNode struct {
	Type       NodeKind `json:"type"`
	Name       string   `json:"name"`
	Summary    string   `json:"summary"`
	Code       string   `json:"code"`
	Lineno     int      `json:"lineno"`
	Score      float64  `json:"score"`
	SearchType string   `json:"search_type"`
	Relation   string   `json:"relation,omitempty"`
}

// Key returns the (type, name) deduplication key. Two distinct source nodes
// sharing both type and name collapse into one entry; see the schema notes
// on name uniqueness.
func (n *RetrievedNode) Key() NodeKey {
	return NodeKey{Kind: n.Type, Name: n.Name}
}

// NodeKey is the cross-strategy deduplication key.
type NodeKey struct {
	Kind NodeKind
	Name string
}

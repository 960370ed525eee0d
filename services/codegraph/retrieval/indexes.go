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

import "github.com/AleutianAI/codegraph/services/codegraph/datatypes"

// annIndex identifies one of the six ANN indexes: a tracked class paired
// with one of its named vectors.
type annIndex struct {
	Kind        datatypes.NodeKind
	VectorField string
}

var summaryIndexes = []annIndex{
	{datatypes.KindFile, datatypes.VectorSummaryEmbedding},
	{datatypes.KindClass, datatypes.VectorSummaryEmbedding},
	{datatypes.KindFunction, datatypes.VectorSummaryEmbedding},
}

var codeIndexes = []annIndex{
	{datatypes.KindFile, datatypes.VectorCodeEmbedding},
	{datatypes.KindClass, datatypes.VectorCodeEmbedding},
	{datatypes.KindFunction, datatypes.VectorCodeEmbedding},
}

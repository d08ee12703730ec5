package store

import (
	"math"
	"sort"
	"time"
)

// Protected property keys that Update* operations silently drop. Document
// updates additionally drop "text"; entity updates drop "label";
// relationship updates drop "type", "from", and "to".
var protectedKeys = map[string]bool{
	PropRecordedAt: true,
	PropValidFrom:  true,
	PropValidTo:    true,
	PropScopeID:    true,
	PropContextIDs: true,
	PropEmbedding:  true,
	"id":           true,
}

// FilterProtected returns a copy of props with protected keys removed.
// extra names additional keys to drop for the node kind being updated.
func FilterProtected(props map[string]any, extra ...string) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if protectedKeys[k] {
			continue
		}
		out[k] = v
	}
	for _, k := range extra {
		delete(out, k)
	}
	return out
}

// AddContextID set-adds a context tag. No reordering guarantee beyond
// append order; duplicates are dropped.
func AddContextID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// MatchesContexts reports whether a row's contextIds qualifies under the
// given filter. An empty filter matches everything. When a filter is
// provided, tagless rows are excluded and union semantics apply.
func MatchesContexts(contextIDs, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	if len(contextIDs) == 0 {
		return false
	}
	for _, want := range filter {
		for _, have := range contextIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// MatchesValidAt applies the temporal validity filter: a row qualifies when
// (_validFrom <= validAt or _validFrom is unset) and (_validTo >= validAt
// or _validTo is unset). Unparsable stored values are treated as unset.
func MatchesValidAt(validFrom, validTo, validAt string) bool {
	if validAt == "" {
		return true
	}
	at, err := time.Parse(time.RFC3339, validAt)
	if err != nil {
		return true
	}
	if validFrom != "" {
		if from, err := time.Parse(time.RFC3339, validFrom); err == nil && from.After(at) {
			return false
		}
	}
	if validTo != "" {
		if to, err := time.Parse(time.RFC3339, validTo); err == nil && to.Before(at) {
			return false
		}
	}
	return true
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// zero-magnitude vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CandidatePool sizes the over-fetch window for filtered vector searches
// so post-filter results are not starved: 5x the limit, floor 100, cap 500.
func CandidatePool(limit int) int {
	n := limit * 5
	if n < 100 {
		n = 100
	}
	if n > 500 {
		n = 500
	}
	return n
}

// SortEntitiesBySimilarity sorts descending by _similarity, stable.
func SortEntitiesBySimilarity(entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Similarity > entities[j].Similarity
	})
}

// SortDocumentsBySimilarity sorts descending by _similarity, stable.
func SortDocumentsBySimilarity(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Similarity > docs[j].Similarity
	})
}

// SortSubgraph orders expansion results by (_recordedAt, id) so identical
// queries produce identical slices regardless of traversal order.
func SortSubgraph(sub *Subgraph) {
	sort.SliceStable(sub.Entities, func(i, j int) bool {
		if sub.Entities[i].RecordedAt != sub.Entities[j].RecordedAt {
			return sub.Entities[i].RecordedAt < sub.Entities[j].RecordedAt
		}
		return sub.Entities[i].ID < sub.Entities[j].ID
	})
	sort.SliceStable(sub.Relationships, func(i, j int) bool {
		if sub.Relationships[i].RecordedAt != sub.Relationships[j].RecordedAt {
			return sub.Relationships[i].RecordedAt < sub.Relationships[j].RecordedAt
		}
		return sub.Relationships[i].ID < sub.Relationships[j].ID
	})
}

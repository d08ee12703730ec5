package neo4j

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Glossick/akasha-sub002/store"
)

// runSingleNode executes a query expected to return at most one node bound
// to the given key. Returns (zero, false, nil) on a miss.
func runSingleNode(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any, key string) (neo4j.Node, bool, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return neo4j.Node{}, false, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		// Single errors on zero records as well as on more than one;
		// a miss is not a failure here.
		if res.Err() != nil {
			return neo4j.Node{}, false, res.Err()
		}
		return neo4j.Node{}, false, nil
	}
	raw, ok := record.Get(key)
	if !ok {
		return neo4j.Node{}, false, fmt.Errorf("neo4j: result missing %q", key)
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return neo4j.Node{}, false, fmt.Errorf("neo4j: %q is not a node", key)
	}
	return node, true, nil
}

// CreateDocument creates a document node. The caller guarantees dedup via
// FindDocumentByText first.
func (s *Store) CreateDocument(ctx context.Context, doc store.Document) (*store.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			fmt.Sprintf("CREATE (d:%s) SET d = $props", store.DocumentLabel),
			map[string]any{"props": documentParams(doc)})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: creating document: %w", err)
	}
	return &doc, nil
}

// FindDocumentByText looks a document up by exact text within a scope.
// Returns (nil, nil) on a miss.
func (s *Store) FindDocumentByText(ctx context.Context, text, scopeID string) (*store.Document, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx, fmt.Sprintf(`
MATCH (d:%s {scopeId: $scope, text: $text})
RETURN d LIMIT 1`, store.DocumentLabel),
			map[string]any{"scope": scopeID, "text": text}, "d")
		if err != nil || !found {
			return nil, err
		}
		doc := nodeToDocument(node)
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	doc, _ := result.(*store.Document)
	return doc, nil
}

// FindDocumentByID retrieves a document by id. Returns (nil, nil) on a miss.
func (s *Store) FindDocumentByID(ctx context.Context, id string) (*store.Document, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx,
			fmt.Sprintf("MATCH (d:%s {id: $id}) RETURN d", store.DocumentLabel),
			map[string]any{"id": id}, "d")
		if err != nil || !found {
			return nil, err
		}
		doc := nodeToDocument(node)
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	doc, _ := result.(*store.Document)
	return doc, nil
}

// UpdateDocumentContextIDs set-adds a context tag in a single Cypher
// statement, so concurrent adds cannot clobber each other.
func (s *Store) UpdateDocumentContextIDs(ctx context.Context, id, contextID string) (*store.Document, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx, fmt.Sprintf(`
MATCH (d:%s {id: $id})
SET d.contextIds = CASE
    WHEN d.contextIds IS NULL THEN [$ctx]
    WHEN $ctx IN d.contextIds THEN d.contextIds
    ELSE d.contextIds + $ctx
END
RETURN d`, store.DocumentLabel),
			map[string]any{"id": id, "ctx": contextID}, "d")
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("document %s not found", id)
		}
		doc := nodeToDocument(node)
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Document), nil
}

// FindDocumentsByVector queries the native vector index, over-fetching so
// the context and temporal post-filters do not starve the result.
func (s *Store) FindDocumentsByVector(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Document, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
CALL db.index.vector.queryNodes('document_embedding_index', $k, $embedding)
YIELD node, score
WHERE score >= $threshold AND ($scope = '' OR node.scopeId = $scope)
RETURN node, score`, map[string]any{
			"k":         store.CandidatePool(q.Limit),
			"embedding": toFloat64s(query),
			"threshold": q.Threshold,
			"scope":     q.ScopeID,
		})
		if err != nil {
			return nil, err
		}

		var docs []store.Document
		for res.Next(ctx) {
			record := res.Record()
			raw, _ := record.Get("node")
			node, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			doc := nodeToDocument(node)
			if !store.MatchesContexts(doc.ContextIDs, q.Contexts) {
				continue
			}
			if !store.MatchesValidAt(doc.ValidFrom, doc.ValidTo, q.ValidAt) {
				continue
			}
			if score, ok := record.Get("score"); ok {
				doc.Similarity, _ = score.(float64)
			}
			docs = append(docs, doc)
		}
		return docs, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: document vector search: %w", err)
	}
	docs := result.([]store.Document)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

// UpdateDocument merges props into the node after dropping protected
// fields (including text).
func (s *Store) UpdateDocument(ctx context.Context, id string, props map[string]any) (*store.Document, error) {
	patch := store.FilterProtected(props, store.PropText)
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx, fmt.Sprintf(`
MATCH (d:%s {id: $id})
SET d += $patch
RETURN d`, store.DocumentLabel),
			map[string]any{"id": id, "patch": patch}, "d")
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("document %s not found", id)
		}
		doc := nodeToDocument(node)
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Document), nil
}

// DeleteDocument detach-deletes a document, removing its CONTAINS_ENTITY
// links with it.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
MATCH (d:%s {id: $id})
DETACH DELETE d
RETURN count(d) AS deleted`, store.DocumentLabel),
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		n, _ := deleted.(int64)
		return n > 0, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// ListDocuments returns documents in deterministic order. Property filters
// apply after fetch, matching the embedded backend.
func (s *Store) ListDocuments(ctx context.Context, q store.ListQuery) ([]store.Document, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
MATCH (d:%s)
WHERE $scope = '' OR d.scopeId = $scope
RETURN d ORDER BY d._recordedAt, d.id`, store.DocumentLabel),
			map[string]any{"scope": q.ScopeID})
		if err != nil {
			return nil, err
		}

		var docs []store.Document
		for res.Next(ctx) {
			raw, _ := res.Record().Get("d")
			node, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			doc := nodeToDocument(node)
			if q.Filter != nil && !matchesDocFilter(&doc, q.Filter) {
				continue
			}
			docs = append(docs, doc)
		}
		return docs, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return paginate(result.([]store.Document), q.Offset, q.Limit), nil
}

func matchesDocFilter(d *store.Document, filter map[string]any) bool {
	sys := map[string]any{"id": d.ID, store.PropScopeID: d.ScopeID, store.PropText: d.Text}
	return matchesFilter(d.Properties, sys, filter)
}

func matchesFilter(props map[string]any, sys map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := sys[k]
		if !ok {
			if got, ok = props[k]; !ok {
				return false
			}
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

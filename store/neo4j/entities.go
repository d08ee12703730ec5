package neo4j

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Glossick/akasha-sub002/store"
)

// CreateEntities batch-creates entity nodes in one transaction. Each node
// carries its typed label plus the shared base label so the vector index
// covers it. Labels are validated against the grammar before interpolation;
// Cypher cannot parameterise labels.
func (s *Store) CreateEntities(ctx context.Context, entities []store.Entity) ([]store.Entity, error) {
	for i := range entities {
		if !store.ValidLabel(entities[i].Label) {
			return nil, fmt.Errorf("entity %d: invalid label %q", i, entities[i].Label)
		}
		if entities[i].ID == "" {
			entities[i].ID = uuid.NewString()
		}
	}

	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, e := range entities {
			res, err := tx.Run(ctx,
				fmt.Sprintf("CREATE (n:%s:%s) SET n = $props", baseEntityLabel, e.Label),
				map[string]any{"props": entityParams(e)})
			if err != nil {
				return nil, fmt.Errorf("creating entity %s: %w", e.Name(), err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// FindEntityByName resolves an entity by its identity property within a
// scope. Name falls back to title. Returns (nil, nil) on a miss; with
// concurrent duplicates the oldest row wins.
func (s *Store) FindEntityByName(ctx context.Context, name, scopeID string) (*store.Entity, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx, fmt.Sprintf(`
MATCH (n:%s {scopeId: $scope})
WHERE n.name = $name OR (n.name IS NULL AND n.title = $name)
RETURN n ORDER BY n._recordedAt, n.id LIMIT 1`, baseEntityLabel),
			map[string]any{"scope": scopeID, "name": name}, "n")
		if err != nil || !found {
			return nil, err
		}
		e := nodeToEntity(node)
		return &e, nil
	})
	if err != nil {
		return nil, err
	}
	e, _ := result.(*store.Entity)
	return e, nil
}

// FindEntityByID retrieves an entity by id. Returns (nil, nil) on a miss.
func (s *Store) FindEntityByID(ctx context.Context, id string) (*store.Entity, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx,
			fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n", baseEntityLabel),
			map[string]any{"id": id}, "n")
		if err != nil || !found {
			return nil, err
		}
		e := nodeToEntity(node)
		return &e, nil
	})
	if err != nil {
		return nil, err
	}
	e, _ := result.(*store.Entity)
	return e, nil
}

// UpdateEntityContextIDs set-adds a context tag in a single statement.
func (s *Store) UpdateEntityContextIDs(ctx context.Context, id, contextID string) (*store.Entity, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx, fmt.Sprintf(`
MATCH (n:%s {id: $id})
SET n.contextIds = CASE
    WHEN n.contextIds IS NULL THEN [$ctx]
    WHEN $ctx IN n.contextIds THEN n.contextIds
    ELSE n.contextIds + $ctx
END
RETURN n`, baseEntityLabel),
			map[string]any{"id": id, "ctx": contextID}, "n")
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("entity %s not found", id)
		}
		e := nodeToEntity(node)
		return &e, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Entity), nil
}

// FindEntitiesByVector queries the native vector index over all entity
// labels, with context and temporal post-filters.
func (s *Store) FindEntitiesByVector(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Entity, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
CALL db.index.vector.queryNodes('entity_embedding_index', $k, $embedding)
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

		var entities []store.Entity
		for res.Next(ctx) {
			record := res.Record()
			raw, _ := record.Get("node")
			node, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			e := nodeToEntity(node)
			if !store.MatchesContexts(e.ContextIDs, q.Contexts) {
				continue
			}
			if !store.MatchesValidAt(e.ValidFrom, e.ValidTo, q.ValidAt) {
				continue
			}
			if score, ok := record.Get("score"); ok {
				e.Similarity, _ = score.(float64)
			}
			entities = append(entities, e)
		}
		return entities, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: entity vector search: %w", err)
	}
	entities := result.([]store.Entity)
	if q.Limit > 0 && len(entities) > q.Limit {
		entities = entities[:q.Limit]
	}
	return entities, nil
}

// UpdateEntity merges props into the node after dropping protected fields
// (including label).
func (s *Store) UpdateEntity(ctx context.Context, id string, props map[string]any) (*store.Entity, error) {
	patch := store.FilterProtected(props, "label")
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		node, found, err := runSingleNode(ctx, tx, fmt.Sprintf(`
MATCH (n:%s {id: $id})
SET n += $patch
RETURN n`, baseEntityLabel),
			map[string]any{"id": id, "patch": patch}, "n")
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("entity %s not found", id)
		}
		e := nodeToEntity(node)
		return &e, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Entity), nil
}

// DeleteEntity detach-deletes an entity, cascading its relationships.
func (s *Store) DeleteEntity(ctx context.Context, id string) (bool, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
MATCH (n:%s {id: $id})
DETACH DELETE n
RETURN count(n) AS deleted`, baseEntityLabel),
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

// ListEntities returns entities in deterministic order, optionally
// narrowed by label. Label values are validated before interpolation.
func (s *Store) ListEntities(ctx context.Context, q store.ListQuery) ([]store.Entity, error) {
	match := fmt.Sprintf("MATCH (n:%s)", baseEntityLabel)
	if q.Label != "" {
		if !store.ValidLabel(q.Label) {
			return nil, fmt.Errorf("invalid label %q", q.Label)
		}
		match = fmt.Sprintf("MATCH (n:%s:%s)", baseEntityLabel, q.Label)
	}

	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, match+`
WHERE $scope = '' OR n.scopeId = $scope
RETURN n ORDER BY n._recordedAt, n.id`,
			map[string]any{"scope": q.ScopeID})
		if err != nil {
			return nil, err
		}

		var entities []store.Entity
		for res.Next(ctx) {
			raw, _ := res.Record().Get("n")
			node, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			e := nodeToEntity(node)
			if q.Filter != nil {
				sys := map[string]any{"id": e.ID, store.PropScopeID: e.ScopeID, "label": e.Label}
				if !matchesFilter(e.Properties, sys, q.Filter) {
					continue
				}
			}
			entities = append(entities, e)
		}
		return entities, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return paginate(result.([]store.Entity), q.Offset, q.Limit), nil
}

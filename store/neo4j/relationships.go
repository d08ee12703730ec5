package neo4j

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Glossick/akasha-sub002/store"
)

// runSingleRelationship executes a query projecting the edge as r and its
// endpoint ids as fromId/toId. Returns (nil, nil) on a miss.
func runSingleRelationship(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (*store.Relationship, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		if res.Err() != nil {
			return nil, res.Err()
		}
		return nil, nil
	}
	raw, _ := record.Get("r")
	edge, ok := raw.(neo4j.Relationship)
	if !ok {
		return nil, fmt.Errorf("neo4j: result missing relationship")
	}
	fromRaw, _ := record.Get("fromId")
	toRaw, _ := record.Get("toId")
	fromID, _ := fromRaw.(string)
	toID, _ := toRaw.(string)
	rel := relToRelationship(edge, fromID, toID)
	return &rel, nil
}

// CreateRelationships batch-merges typed edges between entities. Types are
// validated against the grammar before interpolation; endpoints must
// resolve to entities in the edge's scope, so a missing MATCH is reported
// as an error rather than silently creating nothing.
func (s *Store) CreateRelationships(ctx context.Context, rels []store.Relationship) ([]store.Relationship, error) {
	for i, r := range rels {
		if !store.ValidRelType(r.Type) {
			return nil, fmt.Errorf("relationship %d: invalid type %q", i, r.Type)
		}
		if r.Type == store.ContainsEntity {
			return nil, fmt.Errorf("relationship %d: type %s is reserved", i, store.ContainsEntity)
		}
		if r.FromID == r.ToID {
			return nil, fmt.Errorf("relationship %d: self-loop on %s", i, r.FromID)
		}
	}

	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		out := make([]store.Relationship, 0, len(rels))
		for i, r := range rels {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			merged, err := runSingleRelationship(ctx, tx, fmt.Sprintf(`
MATCH (from:%[1]s {id: $fromId, scopeId: $scope})
MATCH (to:%[1]s {id: $toId, scopeId: $scope})
MERGE (from)-[r:%[2]s]->(to)
ON CREATE SET r = $props
RETURN r, from.id AS fromId, to.id AS toId`, baseEntityLabel, r.Type),
				map[string]any{
					"fromId": r.FromID,
					"toId":   r.ToID,
					"scope":  r.ScopeID,
					"props":  relationshipParams(r),
				})
			if err != nil {
				return nil, err
			}
			if merged == nil {
				return nil, fmt.Errorf("relationship %d: endpoints %s, %s not found in scope", i, r.FromID, r.ToID)
			}
			out = append(out, *merged)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]store.Relationship), nil
}

// FindRelationshipByID retrieves an edge by id. Returns (nil, nil) on a miss.
func (s *Store) FindRelationshipByID(ctx context.Context, id string) (*store.Relationship, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runSingleRelationship(ctx, tx, `
MATCH (from)-[r {id: $id}]->(to)
RETURN r, from.id AS fromId, to.id AS toId`,
			map[string]any{"id": id})
	})
	if err != nil {
		return nil, err
	}
	rel, _ := result.(*store.Relationship)
	return rel, nil
}

// UpdateRelationship merges props into the edge after dropping protected
// fields (including type, from, and to).
func (s *Store) UpdateRelationship(ctx context.Context, id string, props map[string]any) (*store.Relationship, error) {
	patch := store.FilterProtected(props, "type", "from", "to")
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rel, err := runSingleRelationship(ctx, tx, `
MATCH (from)-[r {id: $id}]->(to)
SET r += $patch
RETURN r, from.id AS fromId, to.id AS toId`,
			map[string]any{"id": id, "patch": patch})
		if err != nil {
			return nil, err
		}
		if rel == nil {
			return nil, fmt.Errorf("relationship %s not found", id)
		}
		return rel, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Relationship), nil
}

// DeleteRelationship removes a single edge.
func (s *Store) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH ()-[r {id: $id}]->()
DELETE r
RETURN count(r) AS deleted`, map[string]any{"id": id})
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

// ListRelationships returns edges in deterministic order, optionally
// narrowed by type.
func (s *Store) ListRelationships(ctx context.Context, q store.ListQuery) ([]store.Relationship, error) {
	match := "MATCH (from)-[r]->(to)"
	if q.Type != "" {
		if !store.ValidRelType(q.Type) {
			return nil, fmt.Errorf("invalid relationship type %q", q.Type)
		}
		match = fmt.Sprintf("MATCH (from)-[r:%s]->(to)", q.Type)
	}

	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, match+`
WHERE $scope = '' OR r.scopeId = $scope
RETURN r, from.id AS fromId, to.id AS toId
ORDER BY r._recordedAt, r.id`,
			map[string]any{"scope": q.ScopeID})
		if err != nil {
			return nil, err
		}

		var rels []store.Relationship
		for res.Next(ctx) {
			record := res.Record()
			raw, _ := record.Get("r")
			edge, ok := raw.(neo4j.Relationship)
			if !ok {
				continue
			}
			fromRaw, _ := record.Get("fromId")
			toRaw, _ := record.Get("toId")
			fromID, _ := fromRaw.(string)
			toID, _ := toRaw.(string)
			rel := relToRelationship(edge, fromID, toID)
			if q.Filter != nil {
				sys := map[string]any{"id": rel.ID, store.PropScopeID: rel.ScopeID,
					"type": rel.Type, "from": rel.FromID, "to": rel.ToID}
				if !matchesFilter(rel.Properties, sys, q.Filter) {
					continue
				}
			}
			rels = append(rels, rel)
		}
		return rels, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return paginate(result.([]store.Relationship), q.Offset, q.Limit), nil
}

// LinkEntityToDocument merges the internal CONTAINS_ENTITY edge from a
// document to an entity.
func (s *Store) LinkEntityToDocument(ctx context.Context, docID, entityID, scopeID string) (*store.Relationship, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rel, err := runSingleRelationship(ctx, tx, fmt.Sprintf(`
MATCH (d:%s {id: $docId, scopeId: $scope})
MATCH (e:%s {id: $entityId, scopeId: $scope})
MERGE (d)-[r:%s]->(e)
ON CREATE SET r.id = $relId, r.scopeId = $scope
RETURN r, d.id AS fromId, e.id AS toId`,
			store.DocumentLabel, baseEntityLabel, store.ContainsEntity),
			map[string]any{
				"docId":    docID,
				"entityId": entityID,
				"scope":    scopeID,
				"relId":    uuid.NewString(),
			})
		if err != nil {
			return nil, err
		}
		if rel == nil {
			return nil, fmt.Errorf("document %s or entity %s not found in scope", docID, entityID)
		}
		return rel, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*store.Relationship), nil
}

// DocumentEntities returns the entities linked to a document via
// CONTAINS_ENTITY, scope-bound.
func (s *Store) DocumentEntities(ctx context.Context, docID, scopeID string) ([]store.Entity, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
MATCH (d:%s {id: $docId, scopeId: $scope})-[:%s]->(e:%s)
RETURN e ORDER BY e._recordedAt, e.id`,
			store.DocumentLabel, store.ContainsEntity, baseEntityLabel),
			map[string]any{"docId": docID, "scope": scopeID})
		if err != nil {
			return nil, err
		}

		var entities []store.Entity
		for res.Next(ctx) {
			raw, _ := res.Record().Get("e")
			node, ok := raw.(neo4j.Node)
			if !ok {
				continue
			}
			entities = append(entities, nodeToEntity(node))
		}
		return entities, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]store.Entity), nil
}

package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Glossick/akasha-sub002/store"
)

// RetrieveSubgraph performs a bounded undirected expansion with a single
// variable-length path query. The depth is validated then interpolated;
// Cypher cannot parameterise it. Labels select seeds only when no explicit
// start ids are given. Results are ordered by (_recordedAt, id).
func (s *Store) RetrieveSubgraph(ctx context.Context, q store.SubgraphQuery) (*store.Subgraph, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	for _, l := range q.Labels {
		if !store.ValidLabel(l) {
			return nil, fmt.Errorf("invalid label %q", l)
		}
	}
	for _, t := range q.RelTypes {
		if !store.ValidRelType(t) {
			return nil, fmt.Errorf("invalid relationship type %q", t)
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var start string
	params := map[string]any{
		"scope":    q.ScopeID,
		"relTypes": toAnySlice(q.RelTypes),
		"limit":    limit,
	}
	// Labels select seeds only; once seeded, the walk may reach entities of
	// any label. When explicit ids are given they already are the seeds.
	if len(q.StartIDs) > 0 {
		start = fmt.Sprintf("MATCH (s:%s) WHERE s.id IN $startIds", baseEntityLabel)
		params["startIds"] = toAnySlice(q.StartIDs)
	} else {
		start = fmt.Sprintf(
			"MATCH (s:%s) WHERE (size($labels) = 0 OR any(l IN labels(s) WHERE l IN $labels))",
			baseEntityLabel)
		params["labels"] = toAnySlice(q.Labels)
	}

	// The type filter and the CONTAINS_ENTITY exclusion apply to every hop;
	// the scope bound applies to every node on the path.
	query := fmt.Sprintf(`
%s
AND ($scope = '' OR s.scopeId = $scope)
OPTIONAL MATCH p = (s)-[*1..%d]-(m:%s)
WHERE all(rel IN relationships(p) WHERE type(rel) <> '%s'
      AND (size($relTypes) = 0 OR type(rel) IN $relTypes))
  AND all(n IN nodes(p) WHERE $scope = '' OR n.scopeId = $scope)
WITH s, collect(p) AS paths
RETURN s, paths LIMIT $limit`,
		start, q.MaxDepth, baseEntityLabel, store.ContainsEntity)

	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		entities := make(map[string]store.Entity)
		rels := make(map[string]store.Relationship)
		elementToID := make(map[string]string)

		addNode := func(node neo4j.Node) {
			e := nodeToEntity(node)
			if e.ID == "" {
				return
			}
			elementToID[node.ElementId] = e.ID
			if _, ok := entities[e.ID]; !ok && len(entities) < limit {
				entities[e.ID] = e
			}
		}

		for res.Next(ctx) {
			record := res.Record()
			if raw, ok := record.Get("s"); ok {
				if node, ok := raw.(neo4j.Node); ok {
					addNode(node)
				}
			}
			raw, ok := record.Get("paths")
			if !ok {
				continue
			}
			paths, ok := raw.([]any)
			if !ok {
				continue
			}
			for _, p := range paths {
				path, ok := p.(neo4j.Path)
				if !ok {
					continue
				}
				for _, node := range path.Nodes {
					addNode(node)
				}
				for _, edge := range path.Relationships {
					fromID := elementToID[edge.StartElementId]
					toID := elementToID[edge.EndElementId]
					if _, ok := entities[fromID]; !ok {
						continue
					}
					if _, ok := entities[toID]; !ok {
						continue
					}
					r := relToRelationship(edge, fromID, toID)
					if r.ID != "" {
						rels[r.ID] = r
					}
				}
			}
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		sub := &store.Subgraph{}
		for _, e := range entities {
			sub.Entities = append(sub.Entities, e)
		}
		for _, r := range rels {
			sub.Relationships = append(sub.Relationships, r)
		}
		store.SortSubgraph(sub)
		return sub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: subgraph retrieval: %w", err)
	}
	return result.(*store.Subgraph), nil
}

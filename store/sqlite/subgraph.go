package sqlite

import (
	"context"

	"github.com/Glossick/akasha-sub002/store"
)

// RetrieveSubgraph performs a bounded undirected breadth-first expansion.
// The frontier starts from explicit ids, or from every in-scope entity
// matching the label filter when no ids are given; labels select seeds
// only and never constrain which neighbours the walk may reach. The node
// limit is enforced as nodes are discovered; relationships are included
// only when both endpoints made it into the result. Results are ordered
// by (recordedAt, id).
func (s *Store) RetrieveSubgraph(ctx context.Context, q store.SubgraphQuery) (*store.Subgraph, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	visited := make(map[string]store.Entity)
	var frontier []string

	seed := func(e *store.Entity) {
		if _, ok := visited[e.ID]; ok || len(visited) >= limit {
			return
		}
		visited[e.ID] = *e
		frontier = append(frontier, e.ID)
	}

	if len(q.StartIDs) > 0 {
		for _, id := range q.StartIDs {
			e, err := s.FindEntityByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if e == nil || (q.ScopeID != "" && e.ScopeID != q.ScopeID) {
				continue
			}
			seed(e)
		}
	} else {
		seeds, err := s.labelSeeds(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		for i := range seeds {
			seed(&seeds[i])
		}
	}

	relSeen := make(map[string]store.Relationship)
	for depth := 0; depth < q.MaxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			rels, err := s.incidentRelationships(ctx, id, q)
			if err != nil {
				return nil, err
			}
			for _, r := range rels {
				other := r.ToID
				if other == id {
					other = r.FromID
				}
				if _, ok := visited[other]; !ok {
					if len(visited) >= limit {
						continue
					}
					e, err := s.FindEntityByID(ctx, other)
					if err != nil {
						return nil, err
					}
					if e == nil {
						continue
					}
					visited[other] = *e
					next = append(next, other)
				}
				if _, ok := visited[other]; ok {
					relSeen[r.ID] = r
				}
			}
		}
		frontier = next
	}

	sub := &store.Subgraph{}
	for _, e := range visited {
		sub.Entities = append(sub.Entities, e)
	}
	for _, r := range relSeen {
		sub.Relationships = append(sub.Relationships, r)
	}
	store.SortSubgraph(sub)
	return sub, nil
}

// labelSeeds selects the starting entities when no explicit ids are given.
func (s *Store) labelSeeds(ctx context.Context, q store.SubgraphQuery, limit int) ([]store.Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE 1=1"
	var args []any
	if q.ScopeID != "" {
		query += " AND scope_id = ?"
		args = append(args, q.ScopeID)
	}
	if len(q.Labels) > 0 {
		query += " AND label IN (" + placeholders(len(q.Labels)) + ")"
		for _, l := range q.Labels {
			args = append(args, l)
		}
	}
	query += " ORDER BY recorded_at, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seeds []store.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, *e)
	}
	return seeds, rows.Err()
}

// incidentRelationships returns the edges touching a node, excluding the
// internal document links and honouring the type filter.
func (s *Store) incidentRelationships(ctx context.Context, id string, q store.SubgraphQuery) ([]store.Relationship, error) {
	query := "SELECT " + relColumns + " FROM relationships WHERE (from_id = ? OR to_id = ?) AND rel_type != ?"
	args := []any{id, id, store.ContainsEntity}
	if q.ScopeID != "" {
		query += " AND scope_id = ?"
		args = append(args, q.ScopeID)
	}
	if len(q.RelTypes) > 0 {
		query += " AND rel_type IN (" + placeholders(len(q.RelTypes)) + ")"
		for _, t := range q.RelTypes {
			args = append(args, t)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []store.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *r)
	}
	return rels, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}

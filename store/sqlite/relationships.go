package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Glossick/akasha-sub002/store"
)

const relColumns = "id, rel_type, from_id, to_id, scope_id, recorded_at, valid_from, valid_to, properties"

func scanRelationship(row interface{ Scan(...any) error }) (*store.Relationship, error) {
	var r store.Relationship
	var recordedAt, validFrom, validTo, props sql.NullString
	if err := row.Scan(&r.ID, &r.Type, &r.FromID, &r.ToID, &r.ScopeID,
		&recordedAt, &validFrom, &validTo, &props); err != nil {
		return nil, err
	}
	r.RecordedAt = recordedAt.String
	r.ValidFrom = validFrom.String
	r.ValidTo = validTo.String
	r.Properties = unmarshalProps(props)
	return &r, nil
}

// CreateRelationships batch-merges typed edges between entities. Each edge
// must satisfy the type grammar, must not self-loop, and both endpoints
// must resolve to entities in the edge's scope. Merge semantics: an edge
// already present on (scope, from, to, type) is returned as stored, its
// properties untouched.
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

	var out []store.Relationship
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, r := range rels {
			for _, endpoint := range []string{r.FromID, r.ToID} {
				var one int
				err := tx.QueryRowContext(ctx,
					"SELECT 1 FROM entities WHERE id = ? AND scope_id = ?",
					endpoint, r.ScopeID).Scan(&one)
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("relationship %d: endpoint %s not found in scope", i, endpoint)
				}
				if err != nil {
					return err
				}
			}

			merged, err := s.mergeRelationship(ctx, tx, r)
			if err != nil {
				return err
			}
			out = append(out, *merged)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mergeRelationship inserts the edge if absent and returns the stored row
// either way.
func (s *Store) mergeRelationship(ctx context.Context, tx *sql.Tx, r store.Relationship) (*store.Relationship, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	props, err := marshalJSON(r.Properties)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO relationships (id, rel_type, from_id, to_id, scope_id, recorded_at, valid_from, valid_to, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope_id, from_id, to_id, rel_type) DO NOTHING
	`, r.ID, r.Type, r.FromID, r.ToID, r.ScopeID,
		nullable(r.RecordedAt), nullable(r.ValidFrom), nullable(r.ValidTo), props); err != nil {
		return nil, fmt.Errorf("merging relationship %s: %w", r.Type, err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT `+relColumns+` FROM relationships
		WHERE scope_id = ? AND from_id = ? AND to_id = ? AND rel_type = ?
	`, r.ScopeID, r.FromID, r.ToID, r.Type)
	return scanRelationship(row)
}

// FindRelationshipByID retrieves an edge by id. Returns (nil, nil) on a miss.
func (s *Store) FindRelationshipByID(ctx context.Context, id string) (*store.Relationship, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+relColumns+" FROM relationships WHERE id = ?", id)
	r, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRelationship merges props into the edge's property bag after
// dropping protected fields (including type, from, and to).
func (s *Store) UpdateRelationship(ctx context.Context, id string, props map[string]any) (*store.Relationship, error) {
	patch := store.FilterProtected(props, "type", "from", "to")
	var rel *store.Relationship
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+relColumns+" FROM relationships WHERE id = ?", id)
		r, err := scanRelationship(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("relationship %s not found", id)
		}
		if err != nil {
			return err
		}

		if r.Properties == nil {
			r.Properties = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			r.Properties[k] = v
		}
		merged, err := marshalJSON(r.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE relationships SET properties = ? WHERE id = ?", merged, id); err != nil {
			return err
		}
		rel = r
		return nil
	})
	return rel, err
}

// DeleteRelationship removes a single edge.
func (s *Store) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM relationships WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListRelationships returns edges in deterministic (recorded_at, id) order,
// optionally narrowed by type.
func (s *Store) ListRelationships(ctx context.Context, q store.ListQuery) ([]store.Relationship, error) {
	query := "SELECT " + relColumns + " FROM relationships WHERE 1=1"
	var args []any
	if q.ScopeID != "" {
		query += " AND scope_id = ?"
		args = append(args, q.ScopeID)
	}
	if q.Type != "" {
		query += " AND rel_type = ?"
		args = append(args, q.Type)
	}
	query += " ORDER BY recorded_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []store.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		if q.Filter != nil {
			sys := map[string]any{"id": r.ID, store.PropScopeID: r.ScopeID,
				"type": r.Type, "from": r.FromID, "to": r.ToID}
			if !matchesFilter(r.Properties, sys, q.Filter) {
				continue
			}
		}
		all = append(all, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(all, q.Offset, q.Limit), nil
}

// LinkEntityToDocument merges the internal CONTAINS_ENTITY edge from a
// document to an entity. Idempotent on (scope, doc, entity).
func (s *Store) LinkEntityToDocument(ctx context.Context, docID, entityID, scopeID string) (*store.Relationship, error) {
	var rel *store.Relationship
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.mergeRelationship(ctx, tx, store.Relationship{
			Type:    store.ContainsEntity,
			FromID:  docID,
			ToID:    entityID,
			ScopeID: scopeID,
		})
		if err != nil {
			return err
		}
		rel = r
		return nil
	})
	return rel, err
}

// DocumentEntities returns the entities linked to a document via
// CONTAINS_ENTITY, scope-bound.
func (s *Store) DocumentEntities(ctx context.Context, docID, scopeID string) ([]store.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.label, e.scope_id, e.context_ids, e.recorded_at, e.valid_from, e.valid_to, e.properties, e.embedding
		FROM entities e
		JOIN relationships r ON r.to_id = e.id
		WHERE r.from_id = ? AND r.rel_type = ? AND r.scope_id = ?
		ORDER BY e.recorded_at, e.id
	`, docID, store.ContainsEntity, scopeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []store.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

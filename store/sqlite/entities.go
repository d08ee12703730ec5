package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Glossick/akasha-sub002/store"
)

const entityColumns = "id, label, scope_id, context_ids, recorded_at, valid_from, valid_to, properties, embedding"

func scanEntity(row interface{ Scan(...any) error }) (*store.Entity, error) {
	var e store.Entity
	var contexts, recordedAt, validFrom, validTo, props sql.NullString
	var embedding []byte
	if err := row.Scan(&e.ID, &e.Label, &e.ScopeID, &contexts,
		&recordedAt, &validFrom, &validTo, &props, &embedding); err != nil {
		return nil, err
	}
	e.ContextIDs = unmarshalContexts(contexts)
	e.RecordedAt = recordedAt.String
	e.ValidFrom = validFrom.String
	e.ValidTo = validTo.String
	e.Properties = unmarshalProps(props)
	e.Embedding = deserializeFloat32(embedding)
	return &e, nil
}

func scanEntityScored(rows *sql.Rows, scored bool) (*store.Entity, float64, error) {
	if !scored {
		e, err := scanEntity(rows)
		return e, 0, err
	}
	var e store.Entity
	var contexts, recordedAt, validFrom, validTo, props sql.NullString
	var embedding []byte
	var distance float64
	if err := rows.Scan(&e.ID, &e.Label, &e.ScopeID, &contexts,
		&recordedAt, &validFrom, &validTo, &props, &embedding, &distance); err != nil {
		return nil, 0, err
	}
	e.ContextIDs = unmarshalContexts(contexts)
	e.RecordedAt = recordedAt.String
	e.ValidFrom = validFrom.String
	e.ValidTo = validTo.String
	e.Properties = unmarshalProps(props)
	e.Embedding = deserializeFloat32(embedding)
	return &e, 1 - distance, nil
}

// CreateEntities batch-inserts entities in one transaction. Labels must
// satisfy the PascalCase grammar; a single invalid entity fails the batch.
func (s *Store) CreateEntities(ctx context.Context, entities []store.Entity) ([]store.Entity, error) {
	for i := range entities {
		if !store.ValidLabel(entities[i].Label) {
			return nil, fmt.Errorf("entity %d: invalid label %q", i, entities[i].Label)
		}
		if entities[i].ID == "" {
			entities[i].ID = uuid.NewString()
		}
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO entities (id, label, name, scope_id, context_ids, recorded_at, valid_from, valid_to, properties, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entities {
			contexts, err := marshalJSON(e.ContextIDs)
			if err != nil {
				return err
			}
			props, err := marshalJSON(e.Properties)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, e.ID, e.Label, e.Name(), e.ScopeID, contexts,
				nullable(e.RecordedAt), nullable(e.ValidFrom), nullable(e.ValidTo),
				props, serializeFloat32(e.Embedding)); err != nil {
				return fmt.Errorf("inserting entity %s: %w", e.Name(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// FindEntityByName resolves an entity by its identity property within a
// scope. Returns (nil, nil) on a miss; with concurrent duplicates the
// oldest row wins.
func (s *Store) FindEntityByName(ctx context.Context, name, scopeID string) (*store.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entityColumns+` FROM entities
		WHERE scope_id = ? AND name = ?
		ORDER BY recorded_at, id LIMIT 1
	`, scopeID, name)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// FindEntityByID retrieves an entity by id. Returns (nil, nil) on a miss.
func (s *Store) FindEntityByID(ctx context.Context, id string) (*store.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEntityContextIDs set-adds a context tag and returns the updated node.
func (s *Store) UpdateEntityContextIDs(ctx context.Context, id, contextID string) (*store.Entity, error) {
	var entity *store.Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
		e, err := scanEntity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entity %s not found", id)
		}
		if err != nil {
			return err
		}

		e.ContextIDs = store.AddContextID(e.ContextIDs, contextID)
		contexts, err := marshalJSON(e.ContextIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE entities SET context_ids = ? WHERE id = ?", contexts, id); err != nil {
			return err
		}
		entity = e
		return nil
	})
	return entity, err
}

// FindEntitiesByVector performs cosine-ranked entity retrieval with scope,
// context, and temporal filters. See FindDocumentsByVector for the scoring
// strategy.
func (s *Store) FindEntitiesByVector(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Entity, error) {
	rows, err := s.vectorCandidates(ctx, "entities", entityColumns, query, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.Entity
	for rows.Next() {
		e, sim, err := scanEntityScored(rows, s.vecScored)
		if err != nil {
			return nil, err
		}
		if !s.vecScored {
			sim = store.Cosine(query, e.Embedding)
		}
		if sim < q.Threshold {
			continue
		}
		if !store.MatchesContexts(e.ContextIDs, q.Contexts) {
			continue
		}
		if !store.MatchesValidAt(e.ValidFrom, e.ValidTo, q.ValidAt) {
			continue
		}
		e.Similarity = sim
		results = append(results, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortEntitiesBySimilarity(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// UpdateEntity merges props into the property bag after dropping protected
// fields (including label). The name column tracks the merged identity
// property.
func (s *Store) UpdateEntity(ctx context.Context, id string, props map[string]any) (*store.Entity, error) {
	patch := store.FilterProtected(props, "label")
	var entity *store.Entity
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
		e, err := scanEntity(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("entity %s not found", id)
		}
		if err != nil {
			return err
		}

		if e.Properties == nil {
			e.Properties = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			e.Properties[k] = v
		}
		merged, err := marshalJSON(e.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE entities SET properties = ?, name = ? WHERE id = ?", merged, e.Name(), id); err != nil {
			return err
		}
		entity = e
		return nil
	})
	return entity, err
}

// DeleteEntity removes an entity and cascades its incident relationships.
func (s *Store) DeleteEntity(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM relationships WHERE from_id = ? OR to_id = ?", id, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ListEntities returns entities in deterministic (recorded_at, id) order,
// optionally narrowed by label. Property filters apply in memory before
// pagination.
func (s *Store) ListEntities(ctx context.Context, q store.ListQuery) ([]store.Entity, error) {
	query := "SELECT " + entityColumns + " FROM entities WHERE 1=1"
	var args []any
	if q.ScopeID != "" {
		query += " AND scope_id = ?"
		args = append(args, q.ScopeID)
	}
	if q.Label != "" {
		query += " AND label = ?"
		args = append(args, q.Label)
	}
	query += " ORDER BY recorded_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []store.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		if q.Filter != nil {
			sys := map[string]any{"id": e.ID, store.PropScopeID: e.ScopeID, "label": e.Label}
			if !matchesFilter(e.Properties, sys, q.Filter) {
				continue
			}
		}
		all = append(all, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(all, q.Offset, q.Limit), nil
}

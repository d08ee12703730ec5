package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Glossick/akasha-sub002/store"
)

const docColumns = "id, text, scope_id, context_ids, recorded_at, valid_from, valid_to, properties, embedding"

func scanDocument(row interface{ Scan(...any) error }) (*store.Document, error) {
	var d store.Document
	var contexts, recordedAt, validFrom, validTo, props sql.NullString
	var embedding []byte
	if err := row.Scan(&d.ID, &d.Text, &d.ScopeID, &contexts,
		&recordedAt, &validFrom, &validTo, &props, &embedding); err != nil {
		return nil, err
	}
	d.ContextIDs = unmarshalContexts(contexts)
	d.RecordedAt = recordedAt.String
	d.ValidFrom = validFrom.String
	d.ValidTo = validTo.String
	d.Properties = unmarshalProps(props)
	d.Embedding = deserializeFloat32(embedding)
	return &d, nil
}

// CreateDocument inserts a new document node. The caller guarantees dedup
// via FindDocumentByText; a concurrent duplicate surfaces as a constraint
// error on (scope_id, text_hash).
func (s *Store) CreateDocument(ctx context.Context, doc store.Document) (*store.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	contexts, err := marshalJSON(doc.ContextIDs)
	if err != nil {
		return nil, fmt.Errorf("marshalling contextIds: %w", err)
	}
	props, err := marshalJSON(doc.Properties)
	if err != nil {
		return nil, fmt.Errorf("marshalling properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, text, text_hash, scope_id, context_ids, recorded_at, valid_from, valid_to, properties, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.Text, textHash(doc.Text), doc.ScopeID, contexts,
		nullable(doc.RecordedAt), nullable(doc.ValidFrom), nullable(doc.ValidTo),
		props, serializeFloat32(doc.Embedding))
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return &doc, nil
}

// FindDocumentByText looks a document up by exact text within a scope.
// Returns (nil, nil) on a miss.
func (s *Store) FindDocumentByText(ctx context.Context, text, scopeID string) (*store.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+docColumns+` FROM documents
		WHERE scope_id = ? AND text_hash = ? AND text = ?
	`, scopeID, textHash(text), text)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// FindDocumentByID retrieves a document by id. Returns (nil, nil) on a miss.
func (s *Store) FindDocumentByID(ctx context.Context, id string) (*store.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+docColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocumentContextIDs set-adds a context tag and returns the updated
// node. The read-modify-write runs in one transaction.
func (s *Store) UpdateDocumentContextIDs(ctx context.Context, id, contextID string) (*store.Document, error) {
	var doc *store.Document
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+docColumns+" FROM documents WHERE id = ?", id)
		d, err := scanDocument(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("document %s not found", id)
		}
		if err != nil {
			return err
		}

		d.ContextIDs = store.AddContextID(d.ContextIDs, contextID)
		contexts, err := marshalJSON(d.ContextIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET context_ids = ? WHERE id = ?", contexts, id); err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}

// FindDocumentsByVector performs cosine-ranked retrieval with scope,
// context, and temporal filters. Scoring happens in SQL via sqlite-vec
// when available, otherwise over a candidate scan in memory; either way
// context and temporal filters run post-score over an over-fetched pool.
func (s *Store) FindDocumentsByVector(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Document, error) {
	rows, err := s.vectorCandidates(ctx, "documents", docColumns, query, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.Document
	for rows.Next() {
		doc, sim, err := scanDocumentScored(rows, s.vecScored)
		if err != nil {
			return nil, err
		}
		if !s.vecScored {
			sim = store.Cosine(query, doc.Embedding)
		}
		if sim < q.Threshold {
			continue
		}
		if !store.MatchesContexts(doc.ContextIDs, q.Contexts) {
			continue
		}
		if !store.MatchesValidAt(doc.ValidFrom, doc.ValidTo, q.ValidAt) {
			continue
		}
		doc.Similarity = sim
		results = append(results, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortDocumentsBySimilarity(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

func scanDocumentScored(rows *sql.Rows, scored bool) (*store.Document, float64, error) {
	if !scored {
		doc, err := scanDocument(rows)
		return doc, 0, err
	}
	var d store.Document
	var contexts, recordedAt, validFrom, validTo, props sql.NullString
	var embedding []byte
	var distance float64
	if err := rows.Scan(&d.ID, &d.Text, &d.ScopeID, &contexts,
		&recordedAt, &validFrom, &validTo, &props, &embedding, &distance); err != nil {
		return nil, 0, err
	}
	d.ContextIDs = unmarshalContexts(contexts)
	d.RecordedAt = recordedAt.String
	d.ValidFrom = validFrom.String
	d.ValidTo = validTo.String
	d.Properties = unmarshalProps(props)
	d.Embedding = deserializeFloat32(embedding)
	return &d, 1 - distance, nil
}

// UpdateDocument merges props into the document's property bag after
// dropping protected fields (including text). Returns the updated node.
func (s *Store) UpdateDocument(ctx context.Context, id string, props map[string]any) (*store.Document, error) {
	patch := store.FilterProtected(props, store.PropText)
	var doc *store.Document
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+docColumns+" FROM documents WHERE id = ?", id)
		d, err := scanDocument(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("document %s not found", id)
		}
		if err != nil {
			return err
		}

		if d.Properties == nil {
			d.Properties = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			d.Properties[k] = v
		}
		merged, err := marshalJSON(d.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE documents SET properties = ? WHERE id = ?", merged, id); err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}

// DeleteDocument removes a document and cascades its incident
// relationships (CONTAINS_ENTITY links).
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM relationships WHERE from_id = ? OR to_id = ?", id, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
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

// ListDocuments returns documents in deterministic (recorded_at, id) order.
// Property filters apply in memory before pagination.
func (s *Store) ListDocuments(ctx context.Context, q store.ListQuery) ([]store.Document, error) {
	query := "SELECT " + docColumns + " FROM documents"
	var args []any
	if q.ScopeID != "" {
		query += " WHERE scope_id = ?"
		args = append(args, q.ScopeID)
	}
	query += " ORDER BY recorded_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		if q.Filter != nil {
			sys := map[string]any{"id": doc.ID, store.PropScopeID: doc.ScopeID, store.PropText: doc.Text}
			if !matchesFilter(doc.Properties, sys, q.Filter) {
				continue
			}
		}
		all = append(all, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paginate(all, q.Offset, q.Limit), nil
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

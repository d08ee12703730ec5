package akasha

import (
	"context"
	"fmt"

	"github.com/Glossick/akasha-sub002/store"
)

// ListOptions narrows and paginates management listings.
type ListOptions struct {
	Filter map[string]any `json:"filter,omitempty"`
	Label  string         `json:"label,omitempty"`
	Type   string         `json:"type,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// DeleteResult reports a delete outcome. A missing id is not an error.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
}

func (e *Engine) listQuery(o ListOptions) store.ListQuery {
	return store.ListQuery{
		Filter:  o.Filter,
		Label:   o.Label,
		Type:    o.Type,
		ScopeID: e.cfg.Scope.ID,
		Limit:   o.Limit,
		Offset:  o.Offset,
	}
}

// FindEntity retrieves an entity by id.
func (e *Engine) FindEntity(ctx context.Context, id string) (*store.Entity, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	entity, err := e.store.FindEntityByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: entity %s", ErrNotFound, id)
	}
	return entity, nil
}

// ListEntities lists in-scope entities with optional filter and pagination.
func (e *Engine) ListEntities(ctx context.Context, opts ListOptions) ([]store.Entity, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	entities, err := e.store.ListEntities(ctx, e.listQuery(opts))
	if err != nil {
		return nil, err
	}
	return scrubEntities(entities, false), nil
}

// UpdateEntity merges props into an entity; protected fields are dropped
// from the patch by the store.
func (e *Engine) UpdateEntity(ctx context.Context, id string, props map[string]any) (*store.Entity, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.store.UpdateEntity(ctx, id, props)
}

// DeleteEntity removes an entity and its incident relationships.
func (e *Engine) DeleteEntity(ctx context.Context, id string) (*DeleteResult, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	deleted, err := e.store.DeleteEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return &DeleteResult{Deleted: false, Message: fmt.Sprintf("entity %s not found", id)}, nil
	}
	return &DeleteResult{Deleted: true}, nil
}

// FindDocument retrieves a document by id.
func (e *Engine) FindDocument(ctx context.Context, id string) (*store.Document, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	doc, err := e.store.FindDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return scrubDocument(doc, false), nil
}

// ListDocuments lists in-scope documents with optional filter and
// pagination.
func (e *Engine) ListDocuments(ctx context.Context, opts ListOptions) ([]store.Document, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	docs, err := e.store.ListDocuments(ctx, e.listQuery(opts))
	if err != nil {
		return nil, err
	}
	return scrubDocuments(docs, false), nil
}

// UpdateDocument merges props into a document; text and system fields are
// dropped from the patch by the store.
func (e *Engine) UpdateDocument(ctx context.Context, id string, props map[string]any) (*store.Document, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	doc, err := e.store.UpdateDocument(ctx, id, props)
	if err != nil {
		return nil, err
	}
	return scrubDocument(doc, false), nil
}

// DeleteDocument removes a document and its incident relationships.
func (e *Engine) DeleteDocument(ctx context.Context, id string) (*DeleteResult, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	deleted, err := e.store.DeleteDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return &DeleteResult{Deleted: false, Message: fmt.Sprintf("document %s not found", id)}, nil
	}
	return &DeleteResult{Deleted: true}, nil
}

// FindRelationship retrieves a relationship by id.
func (e *Engine) FindRelationship(ctx context.Context, id string) (*store.Relationship, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	rel, err := e.store.FindRelationshipByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, fmt.Errorf("%w: relationship %s", ErrNotFound, id)
	}
	return rel, nil
}

// ListRelationships lists in-scope relationships with optional filter and
// pagination.
func (e *Engine) ListRelationships(ctx context.Context, opts ListOptions) ([]store.Relationship, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.store.ListRelationships(ctx, e.listQuery(opts))
}

// UpdateRelationship merges props into an edge; type and endpoints are
// dropped from the patch by the store.
func (e *Engine) UpdateRelationship(ctx context.Context, id string, props map[string]any) (*store.Relationship, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.store.UpdateRelationship(ctx, id, props)
}

// DeleteRelationship removes a single edge.
func (e *Engine) DeleteRelationship(ctx context.Context, id string) (*DeleteResult, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	deleted, err := e.store.DeleteRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return &DeleteResult{Deleted: false, Message: fmt.Sprintf("relationship %s not found", id)}, nil
	}
	return &DeleteResult{Deleted: true}, nil
}

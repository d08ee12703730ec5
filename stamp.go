package akasha

import (
	"time"

	"github.com/google/uuid"

	"github.com/Glossick/akasha-sub002/store"
)

// ContextMeta is the system metadata stamped on everything written by one
// learn call.
type ContextMeta struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	RecordedAt string `json:"_recordedAt"`
	ValidFrom  string `json:"_validFrom,omitempty"`
	ValidTo    string `json:"_validTo,omitempty"`
}

// stampContext resolves the context metadata for a learn call: a fresh
// uuid when no contextId was supplied, the recording instant in RFC3339,
// and the caller's validity window passed through untouched.
func stampContext(opts LearnOptions, now func() time.Time) ContextMeta {
	id := opts.ContextID
	if id == "" {
		id = uuid.NewString()
	}
	return ContextMeta{
		ID:         id,
		Name:       opts.ContextName,
		RecordedAt: now().UTC().Format(time.RFC3339),
		ValidFrom:  opts.ValidFrom,
		ValidTo:    opts.ValidTo,
	}
}

// stampEntity applies the context metadata to a new entity.
func stampEntity(e *store.Entity, scopeID string, meta ContextMeta) {
	e.ScopeID = scopeID
	e.ContextIDs = store.AddContextID(e.ContextIDs, meta.ID)
	e.RecordedAt = meta.RecordedAt
	e.ValidFrom = meta.ValidFrom
	e.ValidTo = meta.ValidTo
}

// stampDocument applies the context metadata to a new document.
func stampDocument(d *store.Document, scopeID string, meta ContextMeta) {
	d.ScopeID = scopeID
	d.ContextIDs = store.AddContextID(d.ContextIDs, meta.ID)
	d.RecordedAt = meta.RecordedAt
	d.ValidFrom = meta.ValidFrom
	d.ValidTo = meta.ValidTo
}

// stampRelationship applies the context metadata to a new edge.
func stampRelationship(r *store.Relationship, scopeID string, meta ContextMeta) {
	r.ScopeID = scopeID
	r.RecordedAt = meta.RecordedAt
	r.ValidFrom = meta.ValidFrom
	r.ValidTo = meta.ValidTo
}

package store

import "context"

// Provider is the database-agnostic graph/vector store contract. Both the
// server backend (Neo4j, native vector indexes) and the embedded backend
// (SQLite, typed schema, full-scan cosine fallback) satisfy it.
//
// All operations are scope-bound where a scopeId is supplied; a provider
// must never return cross-scope results. Vector searches attach a transient
// _similarity to each result and never return items below the threshold.
type Provider interface {
	// Connect acquires the underlying connection or pool. Idempotent.
	Connect(ctx context.Context) error
	// Disconnect releases the connection. Idempotent.
	Disconnect(ctx context.Context) error
	// Ping is a lightweight liveness check.
	Ping(ctx context.Context) error
	// EnsureVectorIndex creates vector indexes where the backend supports
	// them. Backends without native support degrade to the in-memory
	// cosine fallback and still return nil.
	EnsureVectorIndex(ctx context.Context) error

	// Documents. Caller guarantees dedup before CreateDocument.
	CreateDocument(ctx context.Context, doc Document) (*Document, error)
	FindDocumentByText(ctx context.Context, text, scopeID string) (*Document, error)
	FindDocumentByID(ctx context.Context, id string) (*Document, error)
	UpdateDocumentContextIDs(ctx context.Context, id, contextID string) (*Document, error)
	FindDocumentsByVector(ctx context.Context, query []float32, q VectorQuery) ([]Document, error)
	UpdateDocument(ctx context.Context, id string, props map[string]any) (*Document, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	ListDocuments(ctx context.Context, q ListQuery) ([]Document, error)

	// Entities.
	CreateEntities(ctx context.Context, entities []Entity) ([]Entity, error)
	FindEntityByName(ctx context.Context, name, scopeID string) (*Entity, error)
	FindEntityByID(ctx context.Context, id string) (*Entity, error)
	UpdateEntityContextIDs(ctx context.Context, id, contextID string) (*Entity, error)
	FindEntitiesByVector(ctx context.Context, query []float32, q VectorQuery) ([]Entity, error)
	UpdateEntity(ctx context.Context, id string, props map[string]any) (*Entity, error)
	DeleteEntity(ctx context.Context, id string) (bool, error)
	ListEntities(ctx context.Context, q ListQuery) ([]Entity, error)

	// Relationships. CreateRelationships enforces the type grammar,
	// rejects endpoints not resolvable in-scope, and MERGEs on
	// (from, to, type).
	CreateRelationships(ctx context.Context, rels []Relationship) ([]Relationship, error)
	FindRelationshipByID(ctx context.Context, id string) (*Relationship, error)
	UpdateRelationship(ctx context.Context, id string, props map[string]any) (*Relationship, error)
	DeleteRelationship(ctx context.Context, id string) (bool, error)
	ListRelationships(ctx context.Context, q ListQuery) ([]Relationship, error)

	// LinkEntityToDocument MERGEs the internal CONTAINS_ENTITY edge.
	LinkEntityToDocument(ctx context.Context, docID, entityID, scopeID string) (*Relationship, error)
	// DocumentEntities returns the entities linked to a document via
	// CONTAINS_ENTITY, scope-bound.
	DocumentEntities(ctx context.Context, docID, scopeID string) ([]Entity, error)

	// RetrieveSubgraph performs a bounded undirected k-hop expansion from
	// either explicit start ids or all nodes matching the given labels.
	RetrieveSubgraph(ctx context.Context, q SubgraphQuery) (*Subgraph, error)
}

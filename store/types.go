package store

import (
	"fmt"
	"regexp"
)

// ContainsEntity is the reserved internal relationship type linking a
// Document to every Entity extracted from it.
const ContainsEntity = "CONTAINS_ENTITY"

// DocumentLabel is the fixed node label for source documents.
const DocumentLabel = "Document"

// Well-known property keys shared by all node kinds.
const (
	PropName       = "name"
	PropTitle      = "title"
	PropScopeID    = "scopeId"
	PropContextIDs = "contextIds"
	PropRecordedAt = "_recordedAt"
	PropValidFrom  = "_validFrom"
	PropValidTo    = "_validTo"
	PropEmbedding  = "embedding"
	PropSimilarity = "_similarity"
	PropText       = "text"
)

var (
	labelRe   = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
	relTypeRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
)

// ValidLabel reports whether s is a valid PascalCase entity label.
func ValidLabel(s string) bool { return labelRe.MatchString(s) }

// ValidRelType reports whether s is a valid UPPERCASE_WITH_UNDERSCORES
// relationship type.
func ValidRelType(s string) bool { return relTypeRe.MatchString(s) }

// Entity is a typed node in the knowledge graph. Well-known system fields
// are first-class; everything else lives in Properties.
type Entity struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
	ScopeID    string         `json:"scopeId,omitempty"`
	ContextIDs []string       `json:"contextIds,omitempty"`
	RecordedAt string         `json:"_recordedAt,omitempty"`
	ValidFrom  string         `json:"_validFrom,omitempty"`
	ValidTo    string         `json:"_validTo,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`

	// Similarity is transient: populated by vector search, never stored.
	Similarity float64 `json:"_similarity,omitempty"`
}

// Name returns the entity's identity property: name, falling back to title.
func (e *Entity) Name() string {
	if e.Properties == nil {
		return ""
	}
	if v, ok := e.Properties[PropName].(string); ok && v != "" {
		return v
	}
	if v, ok := e.Properties[PropTitle].(string); ok && v != "" {
		return v
	}
	return ""
}

// Document is a canonical source-text node. Identity within a scope is the
// exact text.
type Document struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Properties map[string]any `json:"properties,omitempty"`
	ScopeID    string         `json:"scopeId,omitempty"`
	ContextIDs []string       `json:"contextIds,omitempty"`
	RecordedAt string         `json:"_recordedAt,omitempty"`
	ValidFrom  string         `json:"_validFrom,omitempty"`
	ValidTo    string         `json:"_validTo,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`

	Similarity float64 `json:"_similarity,omitempty"`
}

// Relationship is a directed typed edge between two entities (or from a
// Document to an Entity for the internal CONTAINS_ENTITY type). Uniqueness
// is (from, to, type) within a scope; no self-loops.
type Relationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	FromID     string         `json:"from"`
	ToID       string         `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
	ScopeID    string         `json:"scopeId,omitempty"`
	RecordedAt string         `json:"_recordedAt,omitempty"`
	ValidFrom  string         `json:"_validFrom,omitempty"`
	ValidTo    string         `json:"_validTo,omitempty"`
}

// VectorQuery parameterises a vector similarity search.
type VectorQuery struct {
	Limit     int
	Threshold float64
	ScopeID   string
	Contexts  []string
	ValidAt   string
}

// ListQuery parameterises a paginated listing. Filter matches stored
// properties by equality; Label/Type narrow by node label or edge type.
type ListQuery struct {
	Filter  map[string]any
	Label   string
	Type    string
	ScopeID string
	Limit   int
	Offset  int
}

// SubgraphQuery parameterises a bounded k-hop undirected expansion.
type SubgraphQuery struct {
	Labels   []string
	RelTypes []string
	MaxDepth int
	Limit    int
	StartIDs []string
	ScopeID  string
}

// Subgraph is the deduplicated set of entities and relationships touched
// by an expansion. The store is the authoritative graph; this is only the
// bounded in-process materialisation.
type Subgraph struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Validate checks the subgraph query bounds.
func (q *SubgraphQuery) Validate() error {
	if q.MaxDepth < 1 || q.MaxDepth > 10 {
		return fmt.Errorf("maxDepth must be between 1 and 10, got %d", q.MaxDepth)
	}
	return nil
}

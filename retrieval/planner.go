// Package retrieval plans and executes the graph-grounded retrieval for a
// query: vector search over documents and entities, bridging documents to
// the entities they contain, bounded subgraph expansion, and deterministic
// context packing.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Glossick/akasha-sub002/store"
)

// Strategy selects which vector indexes the planner consults.
type Strategy string

const (
	StrategyDocuments Strategy = "documents"
	StrategyEntities  Strategy = "entities"
	StrategyBoth      Strategy = "both"
)

// Defaults for retrieval options.
const (
	DefaultMaxDepth  = 2
	DefaultLimit     = 50
	DefaultThreshold = 0.7
)

// Options parameterises one retrieval.
type Options struct {
	MaxDepth            int
	Limit               int
	Contexts            []string
	Strategy            Strategy
	ValidAt             string
	SimilarityThreshold float64
}

// withDefaults fills unset fields. A zero threshold means the default
// floor; callers lower it explicitly by passing a small positive value.
func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Strategy == "" {
		o.Strategy = StrategyBoth
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultThreshold
	}
	return o
}

// Stats reports per-stage timings and counts for one retrieval.
type Stats struct {
	SearchMs              int64    `json:"searchMs"`
	SubgraphMs            int64    `json:"subgraphMs"`
	Documents             int      `json:"documents"`
	VectorEntities        int      `json:"vectorEntities"`
	BridgedEntities       int      `json:"bridgedEntities"`
	SubgraphEntities      int      `json:"subgraphEntities"`
	SubgraphRelationships int      `json:"subgraphRelationships"`
	Strategy              Strategy `json:"strategy"`
}

// Result is the retrieved context before packing.
type Result struct {
	Documents     []store.Document
	Entities      []store.Entity
	Relationships []store.Relationship
	Stats         Stats
}

// Empty reports whether retrieval found nothing to answer from.
func (r *Result) Empty() bool {
	return len(r.Documents) == 0 && len(r.Entities) == 0
}

// Planner executes retrievals against one scope of a store.
type Planner struct {
	store   store.Provider
	scopeID string
}

// NewPlanner creates a Planner bound to a scope.
func NewPlanner(p store.Provider, scopeID string) *Planner {
	return &Planner{store: p, scopeID: scopeID}
}

// Retrieve runs the full plan for an embedded query. The similarity
// threshold is re-asserted locally after every vector search; entities
// reached through a document bridge are exempt from it.
func (p *Planner) Retrieve(ctx context.Context, queryVec []float32, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	result := &Result{Stats: Stats{Strategy: opts.Strategy}}

	vq := store.VectorQuery{
		Limit:     opts.Limit,
		Threshold: opts.SimilarityThreshold,
		ScopeID:   p.scopeID,
		Contexts:  opts.Contexts,
		ValidAt:   opts.ValidAt,
	}

	searchStart := time.Now()

	if opts.Strategy == StrategyDocuments || opts.Strategy == StrategyBoth {
		docs, err := p.store.FindDocumentsByVector(ctx, queryVec, vq)
		if err != nil {
			return nil, fmt.Errorf("document search: %w", err)
		}
		result.Documents = filterDocumentsByThreshold(docs, opts.SimilarityThreshold)
	}

	entityByID := make(map[string]store.Entity)
	var entityOrder []string
	addEntity := func(e store.Entity) {
		if _, ok := entityByID[e.ID]; ok {
			return
		}
		entityByID[e.ID] = e
		entityOrder = append(entityOrder, e.ID)
	}

	if opts.Strategy == StrategyEntities || opts.Strategy == StrategyBoth {
		entities, err := p.store.FindEntitiesByVector(ctx, queryVec, vq)
		if err != nil {
			return nil, fmt.Errorf("entity search: %w", err)
		}
		for _, e := range filterEntitiesByThreshold(entities, opts.SimilarityThreshold) {
			addEntity(e)
		}
		result.Stats.VectorEntities = len(entityByID)
	}

	// Document to entity bridge: everything a qualifying document contains
	// joins the entity set regardless of its own similarity.
	for _, doc := range result.Documents {
		linked, err := p.store.DocumentEntities(ctx, doc.ID, p.scopeID)
		if err != nil {
			return nil, fmt.Errorf("document entity bridge: %w", err)
		}
		for _, e := range linked {
			if _, ok := entityByID[e.ID]; !ok {
				result.Stats.BridgedEntities++
			}
			addEntity(e)
		}
	}

	result.Stats.SearchMs = time.Since(searchStart).Milliseconds()
	result.Stats.Documents = len(result.Documents)

	for _, id := range entityOrder {
		result.Entities = append(result.Entities, entityByID[id])
	}

	if result.Empty() {
		slog.Debug("retrieval: no hits", "strategy", opts.Strategy, "threshold", opts.SimilarityThreshold)
		return result, nil
	}

	if len(entityOrder) > 0 {
		subgraphStart := time.Now()
		sub, err := p.store.RetrieveSubgraph(ctx, store.SubgraphQuery{
			MaxDepth: opts.MaxDepth,
			Limit:    opts.Limit,
			StartIDs: entityOrder,
			ScopeID:  p.scopeID,
		})
		if err != nil {
			return nil, fmt.Errorf("subgraph expansion: %w", err)
		}
		result.Stats.SubgraphMs = time.Since(subgraphStart).Milliseconds()
		result.Stats.SubgraphEntities = len(sub.Entities)
		result.Stats.SubgraphRelationships = len(sub.Relationships)

		for _, e := range sub.Entities {
			addEntity(e)
		}
		result.Entities = result.Entities[:0]
		for _, id := range entityOrder {
			result.Entities = append(result.Entities, entityByID[id])
		}
		result.Relationships = sub.Relationships
	}

	slog.Debug("retrieval: complete",
		"documents", len(result.Documents),
		"entities", len(result.Entities),
		"relationships", len(result.Relationships),
		"searchMs", result.Stats.SearchMs,
		"subgraphMs", result.Stats.SubgraphMs)
	return result, nil
}

func filterDocumentsByThreshold(docs []store.Document, threshold float64) []store.Document {
	out := docs[:0]
	for _, d := range docs {
		if d.Similarity >= threshold {
			out = append(out, d)
		}
	}
	return out
}

func filterEntitiesByThreshold(entities []store.Entity, threshold float64) []store.Entity {
	out := entities[:0]
	for _, e := range entities {
		if e.Similarity >= threshold {
			out = append(out, e)
		}
	}
	return out
}

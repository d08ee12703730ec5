package retrieval

import (
	"context"
	"testing"

	"github.com/Glossick/akasha-sub002/store"
)

// fakeStore implements store.Provider with function hooks for the methods
// retrieval exercises; everything else is a no-op.
type fakeStore struct {
	store.Provider

	findDocumentsByVector func(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Document, error)
	findEntitiesByVector  func(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Entity, error)
	documentEntities      func(ctx context.Context, docID, scopeID string) ([]store.Entity, error)
	retrieveSubgraph      func(ctx context.Context, q store.SubgraphQuery) (*store.Subgraph, error)

	subgraphQuery *store.SubgraphQuery
}

func (f *fakeStore) FindDocumentsByVector(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Document, error) {
	if f.findDocumentsByVector == nil {
		return nil, nil
	}
	return f.findDocumentsByVector(ctx, query, q)
}

func (f *fakeStore) FindEntitiesByVector(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Entity, error) {
	if f.findEntitiesByVector == nil {
		return nil, nil
	}
	return f.findEntitiesByVector(ctx, query, q)
}

func (f *fakeStore) DocumentEntities(ctx context.Context, docID, scopeID string) ([]store.Entity, error) {
	if f.documentEntities == nil {
		return nil, nil
	}
	return f.documentEntities(ctx, docID, scopeID)
}

func (f *fakeStore) RetrieveSubgraph(ctx context.Context, q store.SubgraphQuery) (*store.Subgraph, error) {
	f.subgraphQuery = &q
	if f.retrieveSubgraph == nil {
		return &store.Subgraph{}, nil
	}
	return f.retrieveSubgraph(ctx, q)
}

func entity(id, label, name string, sim float64) store.Entity {
	return store.Entity{
		ID: id, Label: label, Similarity: sim,
		Properties: map[string]any{"name": name},
	}
}

func TestRetrieveThresholdReasserted(t *testing.T) {
	fs := &fakeStore{
		findEntitiesByVector: func(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Entity, error) {
			// A provider that ignores the threshold.
			return []store.Entity{
				entity("e1", "Person", "Alice", 0.95),
				entity("e2", "Person", "Bob", 0.4),
			}, nil
		},
	}

	p := NewPlanner(fs, "s")
	result, err := p.Retrieve(context.Background(), []float32{1}, Options{Strategy: StrategyEntities})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Entities) != 1 || result.Entities[0].ID != "e1" {
		t.Fatalf("sub-threshold entity must be dropped locally, got %+v", result.Entities)
	}
}

func TestRetrieveDocumentBridge(t *testing.T) {
	fs := &fakeStore{
		findDocumentsByVector: func(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Document, error) {
			return []store.Document{{ID: "d1", Text: "doc", Similarity: 0.9}}, nil
		},
		documentEntities: func(ctx context.Context, docID, scopeID string) ([]store.Entity, error) {
			if docID != "d1" || scopeID != "s" {
				t.Errorf("bridge called with %s/%s", docID, scopeID)
			}
			// Bridged entities carry no similarity at all.
			return []store.Entity{entity("e9", "Topic", "Graphs", 0)}, nil
		},
	}

	p := NewPlanner(fs, "s")
	result, err := p.Retrieve(context.Background(), []float32{1}, Options{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Entities) != 1 || result.Entities[0].ID != "e9" {
		t.Fatalf("bridged entity must join the set without a threshold check: %+v", result.Entities)
	}
	if result.Stats.BridgedEntities != 1 {
		t.Errorf("bridged count: got %d", result.Stats.BridgedEntities)
	}
}

func TestRetrieveEmptyShortCircuits(t *testing.T) {
	fs := &fakeStore{}
	p := NewPlanner(fs, "s")
	result, err := p.Retrieve(context.Background(), []float32{1}, Options{})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !result.Empty() {
		t.Fatal("expected empty result")
	}
	if fs.subgraphQuery != nil {
		t.Error("subgraph expansion must be skipped when nothing was found")
	}
}

func TestRetrieveSubgraphParameters(t *testing.T) {
	fs := &fakeStore{
		findEntitiesByVector: func(ctx context.Context, query []float32, q store.VectorQuery) ([]store.Entity, error) {
			return []store.Entity{
				entity("e1", "Person", "Alice", 0.9),
				entity("e2", "Company", "Acme", 0.8),
			}, nil
		},
		retrieveSubgraph: func(ctx context.Context, q store.SubgraphQuery) (*store.Subgraph, error) {
			return &store.Subgraph{
				Entities: []store.Entity{
					entity("e1", "Person", "Alice", 0),
					entity("e3", "Person", "Carol", 0),
				},
				Relationships: []store.Relationship{
					{ID: "r1", Type: "KNOWS", FromID: "e1", ToID: "e3", ScopeID: "s"},
				},
			}, nil
		},
	}

	p := NewPlanner(fs, "s")
	result, err := p.Retrieve(context.Background(), []float32{1}, Options{
		Strategy: StrategyEntities, MaxDepth: 3, Limit: 25,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	q := fs.subgraphQuery
	if q == nil {
		t.Fatal("subgraph not queried")
	}
	if q.MaxDepth != 3 || q.Limit != 25 || q.ScopeID != "s" {
		t.Errorf("unexpected subgraph query: %+v", q)
	}
	if len(q.StartIDs) != 2 {
		t.Errorf("start ids must be the vector hits: %v", q.StartIDs)
	}
	if len(q.Labels) != 0 {
		t.Errorf("explicit start ids must not carry a label constraint: %v", q.Labels)
	}

	// e1 kept once, e2 kept, e3 merged in from the subgraph.
	if len(result.Entities) != 3 {
		t.Fatalf("expected 3 deduplicated entities, got %d", len(result.Entities))
	}
	if len(result.Relationships) != 1 {
		t.Fatalf("expected the subgraph relationship, got %d", len(result.Relationships))
	}
	if result.Entities[0].ID != "e1" {
		t.Error("vector hits must keep their order ahead of subgraph additions")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.MaxDepth != 2 || o.Limit != 50 || o.Strategy != StrategyBoth || o.SimilarityThreshold != 0.7 {
		t.Errorf("unexpected defaults: %+v", o)
	}

	lowered := Options{SimilarityThreshold: 0.3}.withDefaults()
	if lowered.SimilarityThreshold != 0.3 {
		t.Error("caller-lowered threshold must survive")
	}
}

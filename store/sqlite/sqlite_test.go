//go:build cgo

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Glossick/akasha-sub002/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s := New(dbPath, 4) // dim=4 for test vectors
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("connecting: %v", err)
	}
	if err := s.EnsureVectorIndex(ctx); err != nil {
		t.Fatalf("ensuring vector index: %v", err)
	}
	t.Cleanup(func() { s.Disconnect(context.Background()) })
	return s
}

func mustCreateEntity(t *testing.T, s *Store, name, label, scope string, embedding []float32) store.Entity {
	t.Helper()
	created, err := s.CreateEntities(context.Background(), []store.Entity{{
		Label:      label,
		Properties: map[string]any{"name": name},
		ScopeID:    scope,
		RecordedAt: "2024-01-01T00:00:00Z",
		Embedding:  embedding,
	}})
	if err != nil {
		t.Fatalf("creating entity %s: %v", name, err)
	}
	return created[0]
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

func TestConnectIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

func TestDocumentDedupByText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, store.Document{
		Text:       "Alice works at Acme.",
		ScopeID:    "tenant-a",
		ContextIDs: []string{"ctx-1"},
		RecordedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("creating document: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("expected generated id")
	}

	found, err := s.FindDocumentByText(ctx, "Alice works at Acme.", "tenant-a")
	if err != nil {
		t.Fatalf("finding by text: %v", err)
	}
	if found == nil || found.ID != doc.ID {
		t.Fatalf("expected to find %s, got %+v", doc.ID, found)
	}

	// Same text in another scope is a distinct document.
	other, err := s.FindDocumentByText(ctx, "Alice works at Acme.", "tenant-b")
	if err != nil {
		t.Fatalf("cross-scope find: %v", err)
	}
	if other != nil {
		t.Fatal("document must not be visible from another scope")
	}

	// A duplicate insert in-scope trips the uniqueness constraint.
	if _, err := s.CreateDocument(ctx, store.Document{
		Text: "Alice works at Acme.", ScopeID: "tenant-a",
	}); err == nil {
		t.Fatal("expected constraint error on duplicate text in scope")
	}
}

func TestDocumentContextAccumulation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, store.Document{
		Text: "ctx doc", ScopeID: "s", ContextIDs: []string{"a"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.UpdateDocumentContextIDs(ctx, doc.ID, "b")
	if err != nil {
		t.Fatalf("adding context: %v", err)
	}
	if len(updated.ContextIDs) != 2 {
		t.Fatalf("expected 2 contexts, got %v", updated.ContextIDs)
	}

	// Re-adding the same tag is a no-op.
	updated, err = s.UpdateDocumentContextIDs(ctx, doc.ID, "b")
	if err != nil {
		t.Fatalf("re-adding context: %v", err)
	}
	if len(updated.ContextIDs) != 2 {
		t.Fatalf("context set must not grow on duplicate add: %v", updated.ContextIDs)
	}
}

func TestDocumentUpdateDropsProtectedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, store.Document{
		Text: "immutable text", ScopeID: "s", RecordedAt: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.UpdateDocument(ctx, doc.ID, map[string]any{
		"source":      "crm",
		"text":        "evil overwrite",
		"scopeId":     "other",
		"_recordedAt": "1999-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Properties["source"] != "crm" {
		t.Error("plain property must be merged")
	}
	if _, ok := updated.Properties["text"]; ok {
		t.Error("text must be dropped from the patch")
	}

	reread, _ := s.FindDocumentByID(ctx, doc.ID)
	if reread.Text != "immutable text" || reread.ScopeID != "s" || reread.RecordedAt != "2024-01-01T00:00:00Z" {
		t.Errorf("protected fields changed: %+v", reread)
	}
}

func TestDocumentVectorSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := []store.Document{
		{Text: "close match", ScopeID: "s", Embedding: []float32{1, 0, 0, 0}, ContextIDs: []string{"a"}},
		{Text: "far match", ScopeID: "s", Embedding: []float32{0, 1, 0, 0}, ContextIDs: []string{"a"}},
		{Text: "tagless", ScopeID: "s", Embedding: []float32{1, 0, 0, 0}},
		{Text: "other scope", ScopeID: "other", Embedding: []float32{1, 0, 0, 0}, ContextIDs: []string{"a"}},
	}
	for _, d := range docs {
		if _, err := s.CreateDocument(ctx, d); err != nil {
			t.Fatalf("creating %q: %v", d.Text, err)
		}
	}

	results, err := s.FindDocumentsByVector(ctx, []float32{1, 0, 0, 0}, store.VectorQuery{
		Limit: 10, Threshold: 0.5, ScopeID: "s", Contexts: []string{"a"},
	})
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected only the in-context close match, got %d: %+v", len(results), results)
	}
	if results[0].Text != "close match" {
		t.Errorf("unexpected top result: %q", results[0].Text)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("similarity should be ~1, got %v", results[0].Similarity)
	}

	// Without a context filter, the tagless row qualifies too.
	results, err = s.FindDocumentsByVector(ctx, []float32{1, 0, 0, 0}, store.VectorQuery{
		Limit: 10, Threshold: 0.5, ScopeID: "s",
	})
	if err != nil {
		t.Fatalf("unfiltered search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected close match and tagless, got %d", len(results))
	}
}

func TestDocumentVectorSearchTemporalFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []store.Document{
		{Text: "current", ScopeID: "s", Embedding: []float32{1, 0, 0, 0},
			ValidFrom: "2024-01-01T00:00:00Z"},
		{Text: "expired", ScopeID: "s", Embedding: []float32{1, 0, 0, 0},
			ValidTo: "2023-01-01T00:00:00Z"},
		{Text: "open", ScopeID: "s", Embedding: []float32{1, 0, 0, 0}},
	} {
		if _, err := s.CreateDocument(ctx, d); err != nil {
			t.Fatalf("creating %q: %v", d.Text, err)
		}
	}

	results, err := s.FindDocumentsByVector(ctx, []float32{1, 0, 0, 0}, store.VectorQuery{
		Limit: 10, ScopeID: "s", ValidAt: "2024-06-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected current and open, got %d", len(results))
	}
	for _, r := range results {
		if r.Text == "expired" {
			t.Error("expired document must be filtered out")
		}
	}
}

func TestDocumentDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, store.Document{Text: "doc", ScopeID: "s"})
	if err != nil {
		t.Fatalf("create doc: %v", err)
	}
	e := mustCreateEntity(t, s, "Alice", "Person", "s", nil)
	if _, err := s.LinkEntityToDocument(ctx, doc.ID, e.ID, "s"); err != nil {
		t.Fatalf("link: %v", err)
	}

	deleted, err := s.DeleteDocument(ctx, doc.ID)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}

	rels, err := s.ListRelationships(ctx, store.ListQuery{ScopeID: "s"})
	if err != nil {
		t.Fatalf("list relationships: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("incident relationships must cascade, got %d", len(rels))
	}

	deleted, err = s.DeleteDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Error("second delete must report false")
	}
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

func TestEntityNameResolutionScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateEntity(t, s, "Alice", "Person", "tenant-a", nil)
	mustCreateEntity(t, s, "Alice", "Person", "tenant-b", nil)

	found, err := s.FindEntityByName(ctx, "Alice", "tenant-a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != a.ID {
		t.Fatalf("expected tenant-a Alice, got %+v", found)
	}

	missing, err := s.FindEntityByName(ctx, "Bob", "tenant-a")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown name")
	}
}

func TestEntityInvalidLabelRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateEntities(context.Background(), []store.Entity{{
		Label: "person", Properties: map[string]any{"name": "X"},
	}})
	if err == nil {
		t.Fatal("lowercase label must be rejected")
	}
}

func TestEntityUpdateKeepsNameColumnInSync(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := mustCreateEntity(t, s, "Acme", "Company", "s", nil)
	if _, err := s.UpdateEntity(ctx, e.ID, map[string]any{"name": "Acme Corp"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	found, err := s.FindEntityByName(ctx, "Acme Corp", "s")
	if err != nil {
		t.Fatalf("find by new name: %v", err)
	}
	if found == nil || found.ID != e.ID {
		t.Fatal("entity must be findable by its updated name")
	}
}

func TestEntityVectorSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateEntity(t, s, "A", "Person", "s", []float32{1, 0, 0, 0})
	mustCreateEntity(t, s, "B", "Person", "s", []float32{0.9, 0.1, 0, 0})
	mustCreateEntity(t, s, "C", "Person", "s", []float32{0, 0, 1, 0})

	results, err := s.FindEntitiesByVector(ctx, []float32{1, 0, 0, 0}, store.VectorQuery{
		Limit: 2, Threshold: 0.5, ScopeID: "s",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Name() != "A" || results[1].Name() != "B" {
		t.Errorf("results must be ordered by similarity: %v, %v",
			results[0].Name(), results[1].Name())
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("similarity ordering violated")
	}
}

func TestEntityListByLabel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateEntity(t, s, "Alice", "Person", "s", nil)
	mustCreateEntity(t, s, "Acme", "Company", "s", nil)

	people, err := s.ListEntities(ctx, store.ListQuery{ScopeID: "s", Label: "Person"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(people) != 1 || people[0].Name() != "Alice" {
		t.Fatalf("expected just Alice, got %+v", people)
	}

	filtered, err := s.ListEntities(ctx, store.ListQuery{
		ScopeID: "s", Filter: map[string]any{"name": "Acme"},
	})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Label != "Company" {
		t.Fatalf("expected Acme, got %+v", filtered)
	}
}

// ---------------------------------------------------------------------------
// Relationships
// ---------------------------------------------------------------------------

func TestRelationshipMerge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateEntity(t, s, "A", "Person", "s", nil)
	b := mustCreateEntity(t, s, "B", "Company", "s", nil)

	first, err := s.CreateRelationships(ctx, []store.Relationship{{
		Type: "WORKS_FOR", FromID: a.ID, ToID: b.ID, ScopeID: "s",
		Properties: map[string]any{"since": "2020"},
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	second, err := s.CreateRelationships(ctx, []store.Relationship{{
		Type: "WORKS_FOR", FromID: a.ID, ToID: b.ID, ScopeID: "s",
		Properties: map[string]any{"since": "2021"},
	}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if second[0].ID != first[0].ID {
		t.Error("merge must return the existing edge")
	}
	if second[0].Properties["since"] != "2020" {
		t.Error("merge must not overwrite existing properties")
	}

	all, _ := s.ListRelationships(ctx, store.ListQuery{ScopeID: "s", Type: "WORKS_FOR"})
	if len(all) != 1 {
		t.Fatalf("expected a single merged edge, got %d", len(all))
	}
}

func TestRelationshipValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateEntity(t, s, "A", "Person", "s", nil)
	b := mustCreateEntity(t, s, "B", "Person", "s", nil)
	outside := mustCreateEntity(t, s, "C", "Person", "other", nil)

	tests := []struct {
		name string
		rel  store.Relationship
	}{
		{"invalid type", store.Relationship{Type: "knows", FromID: a.ID, ToID: b.ID, ScopeID: "s"}},
		{"reserved type", store.Relationship{Type: store.ContainsEntity, FromID: a.ID, ToID: b.ID, ScopeID: "s"}},
		{"self loop", store.Relationship{Type: "KNOWS", FromID: a.ID, ToID: a.ID, ScopeID: "s"}},
		{"cross-scope endpoint", store.Relationship{Type: "KNOWS", FromID: a.ID, ToID: outside.ID, ScopeID: "s"}},
		{"unknown endpoint", store.Relationship{Type: "KNOWS", FromID: a.ID, ToID: "nope", ScopeID: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateRelationships(ctx, []store.Relationship{tt.rel}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRelationshipUpdateDropsStructuralFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := mustCreateEntity(t, s, "A", "Person", "s", nil)
	b := mustCreateEntity(t, s, "B", "Person", "s", nil)
	rels, err := s.CreateRelationships(ctx, []store.Relationship{{
		Type: "KNOWS", FromID: a.ID, ToID: b.ID, ScopeID: "s",
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.UpdateRelationship(ctx, rels[0].ID, map[string]any{
		"weight": 0.8, "type": "HATES", "from": "x", "to": "y",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Type != "KNOWS" || updated.FromID != a.ID || updated.ToID != b.ID {
		t.Errorf("structural fields changed: %+v", updated)
	}
	if updated.Properties["weight"] != 0.8 {
		t.Error("plain property must be merged")
	}
}

func TestLinkEntityToDocumentIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, store.Document{Text: "doc", ScopeID: "s"})
	if err != nil {
		t.Fatalf("create doc: %v", err)
	}
	e := mustCreateEntity(t, s, "Alice", "Person", "s", nil)

	first, err := s.LinkEntityToDocument(ctx, doc.ID, e.ID, "s")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	second, err := s.LinkEntityToDocument(ctx, doc.ID, e.ID, "s")
	if err != nil {
		t.Fatalf("re-link: %v", err)
	}
	if second.ID != first.ID {
		t.Error("re-linking must return the same edge")
	}

	linked, err := s.DocumentEntities(ctx, doc.ID, "s")
	if err != nil {
		t.Fatalf("document entities: %v", err)
	}
	if len(linked) != 1 || linked[0].ID != e.ID {
		t.Fatalf("expected Alice, got %+v", linked)
	}
}

// ---------------------------------------------------------------------------
// Subgraph
// ---------------------------------------------------------------------------

func TestRetrieveSubgraphDepthBound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Chain: A -KNOWS-> B -KNOWS-> C -KNOWS-> D
	a := mustCreateEntity(t, s, "A", "Person", "s", nil)
	b := mustCreateEntity(t, s, "B", "Person", "s", nil)
	c := mustCreateEntity(t, s, "C", "Person", "s", nil)
	d := mustCreateEntity(t, s, "D", "Person", "s", nil)
	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}, {c.ID, d.ID}} {
		if _, err := s.CreateRelationships(ctx, []store.Relationship{{
			Type: "KNOWS", FromID: pair[0], ToID: pair[1], ScopeID: "s",
		}}); err != nil {
			t.Fatalf("create rel: %v", err)
		}
	}

	sub, err := s.RetrieveSubgraph(ctx, store.SubgraphQuery{
		StartIDs: []string{a.ID}, MaxDepth: 2, Limit: 100, ScopeID: "s",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sub.Entities) != 3 {
		t.Fatalf("depth 2 from A must reach A, B, C; got %d entities", len(sub.Entities))
	}
	for _, e := range sub.Entities {
		if e.Name() == "D" {
			t.Error("D is beyond the depth bound")
		}
	}
	if len(sub.Relationships) != 2 {
		t.Errorf("expected 2 edges inside the subgraph, got %d", len(sub.Relationships))
	}
}

func TestRetrieveSubgraphValidatesDepth(t *testing.T) {
	s := newTestStore(t)
	for _, depth := range []int{0, 11} {
		if _, err := s.RetrieveSubgraph(context.Background(), store.SubgraphQuery{
			MaxDepth: depth,
		}); err == nil {
			t.Errorf("maxDepth %d must be rejected", depth)
		}
	}
}

func TestRetrieveSubgraphLabelSeeds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := mustCreateEntity(t, s, "Alice", "Person", "s", nil)
	co := mustCreateEntity(t, s, "Acme", "Company", "s", nil)
	if _, err := s.CreateRelationships(ctx, []store.Relationship{{
		Type: "WORKS_FOR", FromID: p.ID, ToID: co.ID, ScopeID: "s",
	}}); err != nil {
		t.Fatalf("create rel: %v", err)
	}

	sub, err := s.RetrieveSubgraph(ctx, store.SubgraphQuery{
		Labels: []string{"Person"}, MaxDepth: 1, Limit: 100, ScopeID: "s",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	// Labels pick the seeds; the walk itself is label-free, so the Company
	// neighbor joins through its edge.
	if len(sub.Entities) != 2 {
		t.Fatalf("expected Alice plus her Company neighbor, got %+v", sub.Entities)
	}
	if len(sub.Relationships) != 1 {
		t.Errorf("expected the WORKS_FOR edge, got %d", len(sub.Relationships))
	}

	sub, err = s.RetrieveSubgraph(ctx, store.SubgraphQuery{
		Labels: []string{"Robot"}, MaxDepth: 1, Limit: 100, ScopeID: "s",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sub.Entities) != 0 {
		t.Fatalf("no seeds match Robot, got %+v", sub.Entities)
	}
}

func TestRetrieveSubgraphCrossesLabels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Alice -WORKS_FOR-> Acme -LOCATED_IN-> Berlin
	alice := mustCreateEntity(t, s, "Alice", "Person", "s", nil)
	acme := mustCreateEntity(t, s, "Acme", "Company", "s", nil)
	berlin := mustCreateEntity(t, s, "Berlin", "City", "s", nil)
	rels := []store.Relationship{
		{Type: "WORKS_FOR", FromID: alice.ID, ToID: acme.ID, ScopeID: "s"},
		{Type: "LOCATED_IN", FromID: acme.ID, ToID: berlin.ID, ScopeID: "s"},
	}
	for _, r := range rels {
		if _, err := s.CreateRelationships(ctx, []store.Relationship{r}); err != nil {
			t.Fatalf("create rel: %v", err)
		}
	}

	sub, err := s.RetrieveSubgraph(ctx, store.SubgraphQuery{
		StartIDs: []string{alice.ID}, MaxDepth: 2, Limit: 100, ScopeID: "s",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sub.Entities) != 3 {
		t.Fatalf("two hops from Alice must reach Acme and Berlin, got %+v", sub.Entities)
	}
	found := false
	for _, e := range sub.Entities {
		if e.Label == "City" {
			found = true
		}
	}
	if !found {
		t.Error("the City neighbor must be reachable even though no seed carries that label")
	}
	if len(sub.Relationships) != 2 {
		t.Errorf("expected both edges, got %d", len(sub.Relationships))
	}
}

func TestRetrieveSubgraphDeterministicOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hub := mustCreateEntity(t, s, "Hub", "Person", "s", nil)
	for i := 0; i < 12; i++ {
		spoke := mustCreateEntity(t, s, "Spoke"+string(rune('A'+i)), "Person", "s", nil)
		if _, err := s.CreateRelationships(ctx, []store.Relationship{{
			Type: "KNOWS", FromID: hub.ID, ToID: spoke.ID, ScopeID: "s",
		}}); err != nil {
			t.Fatalf("create rel: %v", err)
		}
	}

	q := store.SubgraphQuery{StartIDs: []string{hub.ID}, MaxDepth: 1, Limit: 100, ScopeID: "s"}
	first, err := s.RetrieveSubgraph(ctx, q)
	if err != nil {
		t.Fatalf("first retrieve: %v", err)
	}
	second, err := s.RetrieveSubgraph(ctx, q)
	if err != nil {
		t.Fatalf("second retrieve: %v", err)
	}

	if len(first.Entities) != len(second.Entities) || len(first.Relationships) != len(second.Relationships) {
		t.Fatalf("result sizes differ: %d/%d vs %d/%d",
			len(first.Entities), len(first.Relationships),
			len(second.Entities), len(second.Relationships))
	}
	for i := range first.Entities {
		if first.Entities[i].ID != second.Entities[i].ID {
			t.Fatalf("entity order differs at %d: %s vs %s", i, first.Entities[i].ID, second.Entities[i].ID)
		}
	}
	for i := range first.Relationships {
		if first.Relationships[i].ID != second.Relationships[i].ID {
			t.Fatalf("relationship order differs at %d: %s vs %s",
				i, first.Relationships[i].ID, second.Relationships[i].ID)
		}
	}
	for i := 1; i < len(first.Relationships); i++ {
		prev, cur := first.Relationships[i-1], first.Relationships[i]
		if prev.RecordedAt > cur.RecordedAt ||
			(prev.RecordedAt == cur.RecordedAt && prev.ID > cur.ID) {
			t.Fatalf("relationships not ordered by (recordedAt, id) at %d", i)
		}
	}
}

package store

import (
	"math"
	"testing"
)

func TestValidLabel(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Person", true},
		{"Company", true},
		{"Fire_Damper2", true},
		{"person", false},
		{"", false},
		{"1Person", false},
		{"Per son", false},
		{"Per-son", false},
	}
	for _, tt := range tests {
		if got := ValidLabel(tt.label); got != tt.want {
			t.Errorf("ValidLabel(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}

func TestValidRelType(t *testing.T) {
	tests := []struct {
		relType string
		want    bool
	}{
		{"WORKS_FOR", true},
		{"KNOWS", true},
		{"CONTAINS_ENTITY", true},
		{"REL2", true},
		{"works_for", false},
		{"Works_For", false},
		{"", false},
		{"HAS-PART", false},
		{"_LEADING", false},
	}
	for _, tt := range tests {
		if got := ValidRelType(tt.relType); got != tt.want {
			t.Errorf("ValidRelType(%q) = %v, want %v", tt.relType, got, tt.want)
		}
	}
}

func TestEntityName(t *testing.T) {
	e := Entity{Properties: map[string]any{"name": "Alice"}}
	if e.Name() != "Alice" {
		t.Errorf("name: got %q", e.Name())
	}
	e = Entity{Properties: map[string]any{"title": "CTO"}}
	if e.Name() != "CTO" {
		t.Errorf("title fallback: got %q", e.Name())
	}
	e = Entity{}
	if e.Name() != "" {
		t.Errorf("empty: got %q", e.Name())
	}
}

func TestFilterProtected(t *testing.T) {
	props := map[string]any{
		"description": "ok",
		"scopeId":     "evil",
		"contextIds":  []string{"x"},
		"_recordedAt": "2024-01-01T00:00:00Z",
		"_validFrom":  "2024-01-01T00:00:00Z",
		"_validTo":    "2025-01-01T00:00:00Z",
		"embedding":   []float32{1},
		"id":          "hijack",
		"text":        "replaced",
	}
	got := FilterProtected(props, PropText)
	if len(got) != 1 {
		t.Fatalf("expected only description to survive, got %v", got)
	}
	if got["description"] != "ok" {
		t.Errorf("description dropped: %v", got)
	}
	// Original map is untouched.
	if _, ok := props["scopeId"]; !ok {
		t.Error("input map was mutated")
	}
}

func TestAddContextID(t *testing.T) {
	ids := AddContextID(nil, "c1")
	ids = AddContextID(ids, "c2")
	ids = AddContextID(ids, "c1")
	if len(ids) != 2 {
		t.Fatalf("expected set semantics, got %v", ids)
	}
}

func TestMatchesContexts(t *testing.T) {
	tests := []struct {
		name   string
		have   []string
		filter []string
		want   bool
	}{
		{"no filter", []string{"c1"}, nil, true},
		{"no filter tagless", nil, nil, true},
		{"match", []string{"c1", "c2"}, []string{"c2"}, true},
		{"union", []string{"c3"}, []string{"c1", "c3"}, true},
		{"miss", []string{"c1"}, []string{"c2"}, false},
		{"tagless excluded under filter", nil, []string{"c1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesContexts(tt.have, tt.filter); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesValidAt(t *testing.T) {
	at := "2024-06-01T00:00:00Z"
	tests := []struct {
		name     string
		from, to string
		want     bool
	}{
		{"open interval", "", "", true},
		{"inside", "2024-01-01T00:00:00Z", "2024-12-31T00:00:00Z", true},
		{"expired", "2023-01-01T00:00:00Z", "2023-12-31T00:00:00Z", false},
		{"not yet valid", "2025-01-01T00:00:00Z", "", false},
		{"open end", "2024-01-01T00:00:00Z", "", true},
		{"open start", "", "2024-12-31T00:00:00Z", true},
		{"unparsable from treated open", "garbage", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesValidAt(tt.from, tt.to, at); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
	if !MatchesValidAt("2025-01-01T00:00:00Z", "", "") {
		t.Error("empty validAt must match everything")
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched dims", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCandidatePool(t *testing.T) {
	tests := []struct {
		limit, want int
	}{
		{10, 100},
		{30, 150},
		{100, 500},
		{200, 500},
		{0, 100},
	}
	for _, tt := range tests {
		if got := CandidatePool(tt.limit); got != tt.want {
			t.Errorf("CandidatePool(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}

func TestSortBySimilarity(t *testing.T) {
	entities := []Entity{
		{ID: "a", Similarity: 0.5},
		{ID: "b", Similarity: 0.9},
		{ID: "c", Similarity: 0.7},
	}
	SortEntitiesBySimilarity(entities)
	if entities[0].ID != "b" || entities[1].ID != "c" || entities[2].ID != "a" {
		t.Errorf("wrong order: %v %v %v", entities[0].ID, entities[1].ID, entities[2].ID)
	}
}

func TestSubgraphQueryValidate(t *testing.T) {
	for _, depth := range []int{1, 2, 10} {
		q := SubgraphQuery{MaxDepth: depth}
		if err := q.Validate(); err != nil {
			t.Errorf("depth %d should be valid: %v", depth, err)
		}
	}
	for _, depth := range []int{0, -1, 11} {
		q := SubgraphQuery{MaxDepth: depth}
		if err := q.Validate(); err == nil {
			t.Errorf("depth %d should be rejected", depth)
		}
	}
}

func TestSortSubgraph(t *testing.T) {
	sub := &Subgraph{
		Entities: []Entity{
			{ID: "z", RecordedAt: "2024-01-02T00:00:00Z"},
			{ID: "b", RecordedAt: "2024-01-01T00:00:00Z"},
			{ID: "a", RecordedAt: "2024-01-01T00:00:00Z"},
		},
		Relationships: []Relationship{
			{ID: "r2", RecordedAt: "2024-01-01T00:00:00Z"},
			{ID: "r1", RecordedAt: "2024-01-01T00:00:00Z"},
			{ID: "r0", RecordedAt: "2024-01-03T00:00:00Z"},
		},
	}
	SortSubgraph(sub)

	if sub.Entities[0].ID != "a" || sub.Entities[1].ID != "b" || sub.Entities[2].ID != "z" {
		t.Errorf("entities out of order: %v %v %v",
			sub.Entities[0].ID, sub.Entities[1].ID, sub.Entities[2].ID)
	}
	if sub.Relationships[0].ID != "r1" || sub.Relationships[1].ID != "r2" || sub.Relationships[2].ID != "r0" {
		t.Errorf("relationships out of order: %v %v %v",
			sub.Relationships[0].ID, sub.Relationships[1].ID, sub.Relationships[2].ID)
	}
}

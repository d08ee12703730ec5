package retrieval

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Glossick/akasha-sub002/store"
)

// Packing limits. The document section gets the first 60% of the character
// budget when any documents are present; entities and relationships share
// what remains.
const (
	MaxContextChars   = 200_000
	docBudgetFraction = 0.6
	maxPackedDocs     = 10
	maxPackedEntities = 100
	maxPackedRels     = 200
	maxValueChars     = 200
	maxPropsPerEntity = 10
	truncationSuffix  = "..."
)

// PackSummary counts emitted versus available items per section.
type PackSummary struct {
	DocumentsPacked     int `json:"documentsPacked"`
	DocumentsTotal      int `json:"documentsTotal"`
	EntitiesPacked      int `json:"entitiesPacked"`
	EntitiesTotal       int `json:"entitiesTotal"`
	RelationshipsPacked int `json:"relationshipsPacked"`
	RelationshipsTotal  int `json:"relationshipsTotal"`
	Chars               int `json:"chars"`
}

// Packed is the serialized context handed to the answer LLM.
type Packed struct {
	Context string
	Summary PackSummary
}

// Pack serializes retrieved context deterministically within the budget:
// documents first, entities second, relationships third. Emission in a
// section stops as soon as the next line would exceed what is left of the
// section's budget.
func Pack(docs []store.Document, entities []store.Entity, rels []store.Relationship) Packed {
	var b strings.Builder
	summary := PackSummary{
		DocumentsTotal:     len(docs),
		EntitiesTotal:      len(entities),
		RelationshipsTotal: len(rels),
	}

	remaining := MaxContextChars

	if len(docs) > 0 {
		docBudget := int(float64(MaxContextChars) * docBudgetFraction)
		header := "## Documents\n\n"
		b.WriteString(header)
		docBudget -= len(header)

		for i, d := range docs {
			if i >= maxPackedDocs || docBudget <= 0 {
				break
			}
			entry := fmt.Sprintf("[Document %d]\n%s\n\n", i+1, d.Text)
			if len(entry) > docBudget {
				// Truncate the last emitted document rather than dropping it.
				keep := docBudget - len(truncationSuffix) - 2
				if keep <= 0 {
					break
				}
				entry = cutAtRune(entry, keep) + truncationSuffix + "\n\n"
			}
			b.WriteString(entry)
			docBudget -= len(entry)
			summary.DocumentsPacked++
		}
		remaining = MaxContextChars - b.Len()
	}

	if len(entities) > 0 && remaining > 0 {
		header := "## Entities\n\n"
		if len(header) <= remaining {
			b.WriteString(header)
			remaining -= len(header)
			for i, e := range entities {
				if i >= maxPackedEntities {
					break
				}
				line := entityLine(&e) + "\n"
				if len(line) > remaining {
					break
				}
				b.WriteString(line)
				remaining -= len(line)
				summary.EntitiesPacked++
			}
		}
	}

	if len(rels) > 0 && remaining > 0 {
		names := entityDisplayNames(entities)
		header := "\n## Relationships\n\n"
		if len(header) <= remaining {
			b.WriteString(header)
			remaining -= len(header)
			for i, r := range rels {
				if i >= maxPackedRels {
					break
				}
				line := relationshipLine(&r, names) + "\n"
				if len(line) > remaining {
					break
				}
				b.WriteString(line)
				remaining -= len(line)
				summary.RelationshipsPacked++
			}
		}
	}

	summary.Chars = b.Len()
	return Packed{Context: b.String(), Summary: summary}
}

// priorityProps are emitted first on an entity line, in this order.
var priorityProps = []string{store.PropName, store.PropTitle, "description"}

// entityLine renders one entity as "<Label> (<id>): k: v, k: v". Internal
// keys are omitted, values capped, and at most ten properties emitted with
// name, title, and description ahead of the alphabetical rest.
func entityLine(e *store.Entity) string {
	skip := map[string]bool{
		store.PropEmbedding:  true,
		store.PropSimilarity: true,
		store.PropScopeID:    true,
	}

	var keys []string
	seen := map[string]bool{}
	for _, k := range priorityProps {
		if _, ok := e.Properties[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range e.Properties {
		if !seen[k] && !skip[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)
	if len(keys) > maxPropsPerEntity {
		keys = keys[:maxPropsPerEntity]
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, capValue(e.Properties[k])))
	}
	return fmt.Sprintf("%s (%s): %s", e.Label, e.ID, strings.Join(parts, ", "))
}

// relationshipLine renders one edge as "<fromName> --[TYPE]--> <toName>".
func relationshipLine(r *store.Relationship, names map[string]string) string {
	from := names[r.FromID]
	if from == "" {
		from = r.FromID
	}
	to := names[r.ToID]
	if to == "" {
		to = r.ToID
	}
	return fmt.Sprintf("%s --[%s]--> %s", from, r.Type, to)
}

// entityDisplayNames maps entity ids to the best-available human label:
// name, title, label, then the id itself.
func entityDisplayNames(entities []store.Entity) map[string]string {
	names := make(map[string]string, len(entities))
	for i := range entities {
		e := &entities[i]
		display := e.Name()
		if display == "" {
			display = e.Label
		}
		if display == "" {
			display = e.ID
		}
		names[e.ID] = display
	}
	return names
}

func capValue(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > maxValueChars {
		return cutAtRune(s, maxValueChars) + truncationSuffix
	}
	return s
}

// cutAtRune cuts s to at most n bytes without splitting a multi-byte rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

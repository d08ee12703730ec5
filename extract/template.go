package extract

// EntityTypeSpec constrains extraction to a known entity label with the
// properties the ontology requires for it.
type EntityTypeSpec struct {
	Label              string   `json:"label"`
	RequiredProperties []string `json:"requiredProperties,omitempty"`
	Description        string   `json:"description,omitempty"`
}

// RelTypeSpec constrains a relationship type to allowed endpoint labels.
type RelTypeSpec struct {
	Type        string   `json:"type"`
	From        []string `json:"from,omitempty"`
	To          []string `json:"to,omitempty"`
	Description string   `json:"description,omitempty"`
}

// PromptTemplate is the composable recipe for the extraction system prompt.
// A zero field in a caller override keeps the default.
type PromptTemplate struct {
	Role                  string           `json:"role,omitempty"`
	Task                  string           `json:"task,omitempty"`
	FormatRules           []string         `json:"formatRules,omitempty"`
	ExtractionConstraints []string         `json:"extractionConstraints,omitempty"`
	SemanticConstraints   []string         `json:"semanticConstraints,omitempty"`
	EntityTypes           []EntityTypeSpec `json:"entityTypes,omitempty"`
	RelationshipTypes     []RelTypeSpec    `json:"relationshipTypes,omitempty"`
	OutputExample         string           `json:"outputExample,omitempty"`
}

// DefaultTemplate returns the built-in extraction template. Callers overlay
// partial templates on top of it via Merge.
func DefaultTemplate() PromptTemplate {
	return PromptTemplate{
		Role: "You are a knowledge graph extraction engine. You convert free-form text into a typed property graph.",
		Task: "Extract all entities and the relationships between them from the text provided by the user.",
		FormatRules: []string{
			`Return a single JSON object with exactly two keys: "entities" and "relationships".`,
			`Each entity is {"label": string, "properties": object}. The label is PascalCase (e.g. Person, Company, FireDamper).`,
			`Each entity's properties must include "name" (or "title" for titled works).`,
			`Each relationship is {"from": string, "to": string, "type": string, "properties": object (optional)}.`,
			`Relationship "from" and "to" reference entity names exactly as extracted.`,
			`Relationship types are UPPERCASE_WITH_UNDERSCORES (e.g. WORKS_FOR, LOCATED_IN).`,
			"Do NOT include any text outside the JSON object.",
		},
		ExtractionConstraints: []string{
			"Only extract entities and relationships clearly supported by the text.",
			"Normalise entity names to their most complete surface form in the text.",
			"Never create a relationship from an entity to itself.",
			"Add a short \"description\" property to each entity when the text supports one.",
		},
		SemanticConstraints: []string{
			"Prefer specific labels over generic ones (Person over Entity, Company over Organization when it is a company).",
			"Keep property values short and factual.",
		},
		OutputExample: `{"entities": [{"label": "Person", "properties": {"name": "Alice", "description": "Software engineer"}}, {"label": "Company", "properties": {"name": "Acme Corp"}}], "relationships": [{"from": "Alice", "to": "Acme Corp", "type": "WORKS_FOR"}]}`,
	}
}

// Merge overlays a partial caller template on top of t. Non-zero override
// fields replace the corresponding defaults wholesale.
func (t PromptTemplate) Merge(override *PromptTemplate) PromptTemplate {
	if override == nil {
		return t
	}
	merged := t
	if override.Role != "" {
		merged.Role = override.Role
	}
	if override.Task != "" {
		merged.Task = override.Task
	}
	if len(override.FormatRules) > 0 {
		merged.FormatRules = override.FormatRules
	}
	if len(override.ExtractionConstraints) > 0 {
		merged.ExtractionConstraints = override.ExtractionConstraints
	}
	if len(override.SemanticConstraints) > 0 {
		merged.SemanticConstraints = override.SemanticConstraints
	}
	if len(override.EntityTypes) > 0 {
		merged.EntityTypes = override.EntityTypes
	}
	if len(override.RelationshipTypes) > 0 {
		merged.RelationshipTypes = override.RelationshipTypes
	}
	if override.OutputExample != "" {
		merged.OutputExample = override.OutputExample
	}
	return merged
}

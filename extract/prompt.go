package extract

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt composes the deterministic extraction system prompt from
// a merged template. Section ordering is fixed so identical templates always
// produce identical prompts.
func BuildSystemPrompt(t PromptTemplate) string {
	var b strings.Builder

	b.WriteString(t.Role)
	b.WriteString("\n\n")
	b.WriteString(t.Task)
	b.WriteString("\n")

	writeSection(&b, "FORMAT RULES", t.FormatRules)
	writeSection(&b, "EXTRACTION CONSTRAINTS", t.ExtractionConstraints)
	writeSection(&b, "SEMANTIC CONSTRAINTS", t.SemanticConstraints)

	if len(t.EntityTypes) > 0 {
		b.WriteString("\nALLOWED ENTITY TYPES (use exactly these labels):\n")
		for _, et := range t.EntityTypes {
			b.WriteString("- ")
			b.WriteString(et.Label)
			if len(et.RequiredProperties) > 0 {
				fmt.Fprintf(&b, " (required properties: %s)", strings.Join(et.RequiredProperties, ", "))
			}
			if et.Description != "" {
				b.WriteString(" : ")
				b.WriteString(et.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("Do not invent entity labels outside this list.\n")
	}

	if len(t.RelationshipTypes) > 0 {
		b.WriteString("\nALLOWED RELATIONSHIP TYPES (use exactly these types):\n")
		for _, rt := range t.RelationshipTypes {
			b.WriteString("- ")
			b.WriteString(rt.Type)
			if len(rt.From) > 0 || len(rt.To) > 0 {
				fmt.Fprintf(&b, " (from: %s, to: %s)",
					orAny(rt.From), orAny(rt.To))
			}
			if rt.Description != "" {
				b.WriteString(" : ")
				b.WriteString(rt.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("Do not invent relationship types outside this list.\n")
	}

	if t.OutputExample != "" {
		b.WriteString("\nOUTPUT FORMAT EXAMPLE:\n")
		b.WriteString(t.OutputExample)
		b.WriteString("\n")
	}

	return b.String()
}

func writeSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func orAny(labels []string) string {
	if len(labels) == 0 {
		return "any"
	}
	return strings.Join(labels, "|")
}

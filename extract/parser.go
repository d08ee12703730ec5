package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Glossick/akasha-sub002/store"
)

// Entity is a single extracted node before resolution against the store.
type Entity struct {
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// Name returns the identity property: name, falling back to title.
func (e *Entity) Name() string {
	if v, ok := e.Properties["name"].(string); ok && v != "" {
		return v
	}
	if v, ok := e.Properties["title"].(string); ok && v != "" {
		return v
	}
	return ""
}

// Relationship is a single extracted edge with name-references as endpoints.
type Relationship struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Result is the validated output of one extraction call.
type Result struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// ParseError surfaces the model's raw output for diagnostics. A ParseError
// aborts the enclosing learn before any entity or relationship writes.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extraction parse failed: %s (raw output: %s)", e.Reason, truncate(e.Raw, 500))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// isolateJSON finds the JSON object in raw model output. It handles common
// LLM quirks: markdown code fences and prose before/after the object.
func isolateJSON(raw string) (string, bool) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
		return raw, true
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}

// rawResult is the wire shape before validation.
type rawResult struct {
	Entities []struct {
		Label      string         `json:"label"`
		Properties map[string]any `json:"properties"`
	} `json:"entities"`
	Relationships []struct {
		From       string         `json:"from"`
		To         string         `json:"to"`
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties,omitempty"`
	} `json:"relationships"`
}

// normalizeRelType repairs casing and separators so that e.g. "works for"
// or "Works-For" becomes "WORKS_FOR" before the grammar check.
func normalizeRelType(t string) string {
	t = strings.TrimSpace(t)
	t = strings.ReplaceAll(t, " ", "_")
	t = strings.ReplaceAll(t, "-", "_")
	return strings.ToUpper(t)
}

// Parse validates a raw model response into a Result. Malformed JSON or a
// schema-invalid entity yields a *ParseError carrying the raw response.
// Relationship-level defects (self-loop, duplicate, grammar-violating type,
// unknown shape) are dropped with a warning, per the resolution-warning
// policy: a bad edge never poisons the whole extraction.
func Parse(raw string) (*Result, error) {
	jsonStr, ok := isolateJSON(raw)
	if !ok {
		return nil, &ParseError{Reason: "no JSON object found in response", Raw: raw}
	}

	var parsed rawResult
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}

	result := &Result{}

	for i, e := range parsed.Entities {
		if !store.ValidLabel(e.Label) {
			return nil, &ParseError{
				Reason: fmt.Sprintf("entity %d has invalid label %q (must be PascalCase)", i, e.Label),
				Raw:    raw,
			}
		}
		if e.Properties == nil {
			return nil, &ParseError{
				Reason: fmt.Sprintf("entity %d (%s) has no properties object", i, e.Label),
				Raw:    raw,
			}
		}
		entity := Entity{Label: e.Label, Properties: e.Properties}
		if entity.Name() == "" {
			return nil, &ParseError{
				Reason: fmt.Sprintf("entity %d (%s) has neither name nor title", i, e.Label),
				Raw:    raw,
			}
		}
		result.Entities = append(result.Entities, entity)
	}

	seen := make(map[string]bool, len(parsed.Relationships))
	for _, r := range parsed.Relationships {
		from := strings.TrimSpace(r.From)
		to := strings.TrimSpace(r.To)
		relType := normalizeRelType(r.Type)

		if from == "" || to == "" || relType == "" {
			slog.Warn("extract: dropping relationship with missing endpoint or type",
				"from", r.From, "to", r.To, "type", r.Type)
			continue
		}
		if from == to {
			slog.Warn("extract: dropping self-loop relationship", "name", from, "type", relType)
			continue
		}
		if !store.ValidRelType(relType) {
			slog.Warn("extract: dropping relationship with invalid type", "type", r.Type)
			continue
		}
		if relType == store.ContainsEntity {
			slog.Warn("extract: dropping relationship using reserved type", "type", relType)
			continue
		}
		key := from + "\x00" + to + "\x00" + relType
		if seen[key] {
			continue
		}
		seen[key] = true

		result.Relationships = append(result.Relationships, Relationship{
			From:       from,
			To:         to,
			Type:       relType,
			Properties: r.Properties,
		})
	}

	return result, nil
}

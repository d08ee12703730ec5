package akasha

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Glossick/akasha-sub002/extract"
	"github.com/Glossick/akasha-sub002/store"
)

// LearnOptions configures one learn call.
type LearnOptions struct {
	ContextID         string `json:"contextId,omitempty"`
	ContextName       string `json:"contextName,omitempty"`
	ValidFrom         string `json:"validFrom,omitempty"`
	ValidTo           string `json:"validTo,omitempty"`
	IncludeEmbeddings bool   `json:"includeEmbeddings,omitempty"`
}

// CreatedCounts reports what one learn call actually wrote.
type CreatedCounts struct {
	Document      int `json:"document"`
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
}

// LearnResult is the outcome of one learn call.
type LearnResult struct {
	Context       ContextMeta          `json:"context"`
	Document      *store.Document      `json:"document"`
	Entities      []store.Entity       `json:"entities"`
	Relationships []store.Relationship `json:"relationships"`
	Summary       string               `json:"summary"`
	Created       CreatedCounts        `json:"created"`
}

// Learn ingests one text: document dedup and tag-merge, LLM extraction,
// entity dedup and tag-merge, document links, and relationship creation.
// Extraction failure aborts before any entity or relationship writes; the
// document may already exist at that point.
func (e *Engine) Learn(ctx context.Context, text string, opts LearnOptions) (*LearnResult, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if e.cfg.Scope.ID == "" {
		return nil, ErrScopeRequired
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("akasha: learn requires non-empty text")
	}
	scopeID := e.cfg.Scope.ID
	meta := stampContext(opts, e.now)
	start := time.Now()

	result := &LearnResult{Context: meta}

	// Document dedup by exact text within the scope.
	doc, err := e.store.FindDocumentByText(ctx, text, scopeID)
	if err != nil {
		return nil, fmt.Errorf("document lookup: %w", err)
	}
	if doc != nil {
		doc, err = e.store.UpdateDocumentContextIDs(ctx, doc.ID, meta.ID)
		if err != nil {
			return nil, fmt.Errorf("document tag merge: %w", err)
		}
	} else {
		embedding, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		newDoc := store.Document{Text: text, Embedding: embedding}
		stampDocument(&newDoc, scopeID, meta)
		doc, err = e.store.CreateDocument(ctx, newDoc)
		if err != nil {
			return nil, fmt.Errorf("document create: %w", err)
		}
		result.Created.Document = 1
	}
	result.Document = scrubDocument(doc, opts.IncludeEmbeddings)

	extracted, err := e.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}

	// Resolve each extracted entity against the scope, first match by
	// name. The name-to-id map covers this call only.
	nameToID := make(map[string]string, len(extracted.Entities))
	for _, raw := range extracted.Entities {
		name := raw.Name()
		if _, ok := nameToID[name]; ok {
			continue
		}

		existing, err := e.store.FindEntityByName(ctx, name, scopeID)
		if err != nil {
			return nil, fmt.Errorf("entity lookup %q: %w", name, err)
		}
		if existing != nil {
			updated, err := e.store.UpdateEntityContextIDs(ctx, existing.ID, meta.ID)
			if err != nil {
				return nil, fmt.Errorf("entity tag merge %q: %w", name, err)
			}
			nameToID[name] = updated.ID
			result.Entities = append(result.Entities, *updated)
			continue
		}

		embedding, err := e.embedOne(ctx, entityEmbedText(raw))
		if err != nil {
			return nil, err
		}
		entity := store.Entity{
			Label:      raw.Label,
			Properties: raw.Properties,
			Embedding:  embedding,
		}
		stampEntity(&entity, scopeID, meta)
		created, err := e.store.CreateEntities(ctx, []store.Entity{entity})
		if err != nil {
			return nil, fmt.Errorf("entity create %q: %w", name, err)
		}
		nameToID[name] = created[0].ID
		result.Entities = append(result.Entities, created[0])
		result.Created.Entities++
	}

	// Link every resolved entity to the document. A pre-existing link is
	// benign, and a link failure must not fail the learn.
	for name, id := range nameToID {
		if _, err := e.store.LinkEntityToDocument(ctx, doc.ID, id, scopeID); err != nil {
			slog.Warn("learn: entity link failed", "entity", name, "error", err)
		}
	}

	// Map name-endpoints to ids; drop what cannot be resolved.
	var edges []store.Relationship
	seen := make(map[string]bool)
	for _, rel := range extracted.Relationships {
		fromID, okFrom := nameToID[rel.From]
		toID, okTo := nameToID[rel.To]
		if !okFrom || !okTo {
			slog.Warn("learn: dropping relationship with unresolved endpoint",
				"from", rel.From, "to", rel.To, "type", rel.Type)
			continue
		}
		if fromID == toID {
			slog.Warn("learn: dropping self-loop relationship", "name", rel.From, "type", rel.Type)
			continue
		}
		key := fromID + "\x00" + toID + "\x00" + rel.Type
		if seen[key] {
			continue
		}
		seen[key] = true

		edge := store.Relationship{
			Type:       rel.Type,
			FromID:     fromID,
			ToID:       toID,
			Properties: rel.Properties,
		}
		stampRelationship(&edge, scopeID, meta)
		edges = append(edges, edge)
	}
	if len(edges) > 0 {
		created, err := e.store.CreateRelationships(ctx, edges)
		if err != nil {
			return nil, fmt.Errorf("relationship create: %w", err)
		}
		result.Relationships = created
		result.Created.Relationships = len(created)
	}

	result.Entities = scrubEntities(result.Entities, opts.IncludeEmbeddings)
	result.Summary = fmt.Sprintf("learned %d entities and %d relationships from 1 document (%d new entities)",
		len(result.Entities), len(result.Relationships), result.Created.Entities)

	slog.Info("learn: complete",
		"scope", scopeID,
		"context", meta.ID,
		"documentCreated", result.Created.Document == 1,
		"entities", len(result.Entities),
		"relationships", len(result.Relationships),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// maxEmbedProps bounds how many scalar properties join an entity's
// canonical embedding text.
const maxEmbedProps = 4

// entityEmbedText derives the canonical text an entity is embedded under:
// label, identity, description, then a few short scalar properties.
func entityEmbedText(e extract.Entity) string {
	var b strings.Builder
	b.WriteString(e.Label)
	b.WriteString(": ")
	b.WriteString(e.Name())

	if desc, ok := e.Properties["description"].(string); ok && desc != "" {
		b.WriteString(". ")
		b.WriteString(desc)
	}

	count := 0
	for _, k := range sortedKeys(e.Properties) {
		if k == "name" || k == "title" || k == "description" {
			continue
		}
		if count >= maxEmbedProps {
			break
		}
		v := e.Properties[k]
		switch v.(type) {
		case string, float64, int, bool:
			s := fmt.Sprintf("%v", v)
			if len(s) > 100 {
				continue
			}
			b.WriteString(fmt.Sprintf(". %s: %s", k, s))
			count++
		}
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

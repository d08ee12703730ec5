package neo4j

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Glossick/akasha-sub002/store"
)

// systemKeys are node properties managed by the store, split back out of
// the flat Neo4j property map into first-class struct fields.
var systemKeys = map[string]bool{
	"id":                 true,
	store.PropScopeID:    true,
	store.PropContextIDs: true,
	store.PropRecordedAt: true,
	store.PropValidFrom:  true,
	store.PropValidTo:    true,
	store.PropEmbedding:  true,
	store.PropText:       true,
}

// entityParams flattens an entity into the property map stored on its node.
func entityParams(e store.Entity) map[string]any {
	params := map[string]any{
		"id":              e.ID,
		store.PropScopeID: e.ScopeID,
	}
	for k, v := range e.Properties {
		if !systemKeys[k] {
			params[k] = v
		}
	}
	if len(e.ContextIDs) > 0 {
		params[store.PropContextIDs] = toAnySlice(e.ContextIDs)
	}
	if e.RecordedAt != "" {
		params[store.PropRecordedAt] = e.RecordedAt
	}
	if e.ValidFrom != "" {
		params[store.PropValidFrom] = e.ValidFrom
	}
	if e.ValidTo != "" {
		params[store.PropValidTo] = e.ValidTo
	}
	if len(e.Embedding) > 0 {
		params[store.PropEmbedding] = toFloat64s(e.Embedding)
	}
	return params
}

func documentParams(d store.Document) map[string]any {
	params := map[string]any{
		"id":              d.ID,
		store.PropText:    d.Text,
		store.PropScopeID: d.ScopeID,
	}
	for k, v := range d.Properties {
		if !systemKeys[k] {
			params[k] = v
		}
	}
	if len(d.ContextIDs) > 0 {
		params[store.PropContextIDs] = toAnySlice(d.ContextIDs)
	}
	if d.RecordedAt != "" {
		params[store.PropRecordedAt] = d.RecordedAt
	}
	if d.ValidFrom != "" {
		params[store.PropValidFrom] = d.ValidFrom
	}
	if d.ValidTo != "" {
		params[store.PropValidTo] = d.ValidTo
	}
	if len(d.Embedding) > 0 {
		params[store.PropEmbedding] = toFloat64s(d.Embedding)
	}
	return params
}

func relationshipParams(r store.Relationship) map[string]any {
	params := map[string]any{
		"id":              r.ID,
		store.PropScopeID: r.ScopeID,
	}
	for k, v := range r.Properties {
		if !systemKeys[k] && k != "type" && k != "from" && k != "to" {
			params[k] = v
		}
	}
	if r.RecordedAt != "" {
		params[store.PropRecordedAt] = r.RecordedAt
	}
	if r.ValidFrom != "" {
		params[store.PropValidFrom] = r.ValidFrom
	}
	if r.ValidTo != "" {
		params[store.PropValidTo] = r.ValidTo
	}
	return params
}

// nodeToEntity rebuilds an Entity from a fetched node. The typed label is
// whichever node label is not the shared base label.
func nodeToEntity(node neo4j.Node) store.Entity {
	e := store.Entity{Properties: map[string]any{}}
	for _, l := range node.Labels {
		if l != baseEntityLabel {
			e.Label = l
			break
		}
	}
	for k, v := range node.Props {
		switch k {
		case "id":
			e.ID, _ = v.(string)
		case store.PropScopeID:
			e.ScopeID, _ = v.(string)
		case store.PropContextIDs:
			e.ContextIDs = toStringSlice(v)
		case store.PropRecordedAt:
			e.RecordedAt, _ = v.(string)
		case store.PropValidFrom:
			e.ValidFrom, _ = v.(string)
		case store.PropValidTo:
			e.ValidTo, _ = v.(string)
		case store.PropEmbedding:
			e.Embedding = toFloat32s(v)
		default:
			e.Properties[k] = v
		}
	}
	return e
}

func nodeToDocument(node neo4j.Node) store.Document {
	d := store.Document{Properties: map[string]any{}}
	for k, v := range node.Props {
		switch k {
		case "id":
			d.ID, _ = v.(string)
		case store.PropText:
			d.Text, _ = v.(string)
		case store.PropScopeID:
			d.ScopeID, _ = v.(string)
		case store.PropContextIDs:
			d.ContextIDs = toStringSlice(v)
		case store.PropRecordedAt:
			d.RecordedAt, _ = v.(string)
		case store.PropValidFrom:
			d.ValidFrom, _ = v.(string)
		case store.PropValidTo:
			d.ValidTo, _ = v.(string)
		case store.PropEmbedding:
			d.Embedding = toFloat32s(v)
		default:
			d.Properties[k] = v
		}
	}
	return d
}

// relToRelationship rebuilds an edge. The endpoint ids come from the query
// projection, not the driver's internal element ids.
func relToRelationship(rel neo4j.Relationship, fromID, toID string) store.Relationship {
	r := store.Relationship{
		Type:       rel.Type,
		FromID:     fromID,
		ToID:       toID,
		Properties: map[string]any{},
	}
	for k, v := range rel.Props {
		switch k {
		case "id":
			r.ID, _ = v.(string)
		case store.PropScopeID:
			r.ScopeID, _ = v.(string)
		case store.PropRecordedAt:
			r.RecordedAt, _ = v.(string)
		case store.PropValidFrom:
			r.ValidFrom, _ = v.(string)
		case store.PropValidTo:
			r.ValidTo, _ = v.(string)
		default:
			r.Properties[k] = v
		}
	}
	return r
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toFloat64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, f := range in {
		out[i] = float64(f)
	}
	return out
}

func toFloat32s(v any) []float32 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}

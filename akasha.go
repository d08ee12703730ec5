// Package akasha is a multi-tenant GraphRAG engine. It learns free-form
// text into a typed knowledge graph with vector embeddings, and answers
// questions by fusing vector retrieval, bounded graph expansion, and LLM
// generation. Two store backends implement the same contract: a Neo4j
// server with native vector indexes and an embedded SQLite engine.
package akasha

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Glossick/akasha-sub002/extract"
	"github.com/Glossick/akasha-sub002/llm"
	"github.com/Glossick/akasha-sub002/retrieval"
	"github.com/Glossick/akasha-sub002/store"
	neo4jstore "github.com/Glossick/akasha-sub002/store/neo4j"
	sqlitestore "github.com/Glossick/akasha-sub002/store/sqlite"
)

// Engine is the public entry point. One engine serves one scope; all of
// its writes and reads are bound to that scope. Independent calls are safe
// to run concurrently.
type Engine struct {
	cfg       Config
	store     store.Provider
	embedder  llm.Provider
	chat      llm.Provider
	extractor *extract.Extractor
	planner   *retrieval.Planner

	initialized bool
	now         func() time.Time
}

// Option overrides an engine dependency, mainly for tests.
type Option func(*Engine)

// WithStore substitutes the store provider.
func WithStore(p store.Provider) Option {
	return func(e *Engine) { e.store = p }
}

// WithEmbedder substitutes the embedding provider.
func WithEmbedder(p llm.Provider) Option {
	return func(e *Engine) { e.embedder = p }
}

// WithChat substitutes the completion provider.
func WithChat(p llm.Provider) Option {
	return func(e *Engine) { e.chat = p }
}

// WithClock substitutes the time source used for metadata stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an engine from a validated configuration. No network
// traffic happens until Initialize.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if v := ValidateConfig(cfg); !v.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, v.Errors)
	}

	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		if cfg.Store.FilesystemPath != "" {
			e.store = sqlitestore.New(cfg.Store.FilesystemPath, cfg.Embedding.Dimensions)
		} else {
			e.store = neo4jstore.New(neo4jstore.Config{
				URI:          cfg.Store.Endpoint,
				Username:     cfg.Store.Username,
				Password:     cfg.Store.Password,
				Database:     cfg.Store.Database,
				EmbeddingDim: cfg.Embedding.Dimensions,
			})
		}
	}

	if e.embedder == nil {
		p, err := llm.NewProvider(llm.Config{
			Provider:   cfg.Embedding.Provider,
			Model:      cfg.Embedding.Model,
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     cfg.Embedding.APIKey,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding provider: %w", err)
		}
		e.embedder = p
	}

	if e.chat == nil {
		p, err := llm.NewProvider(llm.Config{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			BaseURL:  cfg.LLM.BaseURL,
			APIKey:   cfg.LLM.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("llm provider: %w", err)
		}
		e.chat = p
	}

	e.extractor = extract.New(e.chat, cfg.ExtractionPrompt, cfg.LLM.Temperature)
	e.planner = retrieval.NewPlanner(e.store, cfg.Scope.ID)
	return e, nil
}

// Initialize connects the store and ensures its vector indexes exist.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initialized {
		return nil
	}
	if err := e.store.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.store.EnsureVectorIndex(ctx); err != nil {
		return fmt.Errorf("ensuring vector index: %w", err)
	}
	e.initialized = true
	slog.Info("engine: initialized", "scope", e.cfg.Scope.ID)
	return nil
}

// Cleanup releases the store connection. Idempotent.
func (e *Engine) Cleanup(ctx context.Context) error {
	if !e.initialized {
		return nil
	}
	e.initialized = false
	return e.store.Disconnect(ctx)
}

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Health is the result of a HealthCheck.
type Health struct {
	Status         string `json:"status"`
	StoreConnected bool   `json:"storeConnected"`
	LLMAvailable   bool   `json:"llmAvailable"`
	Timestamp      string `json:"timestamp"`
}

// HealthCheck probes the store and the embedding provider. One failing
// dependency degrades the status; both failing makes it unhealthy.
func (e *Engine) HealthCheck(ctx context.Context) Health {
	h := Health{Timestamp: e.now().UTC().Format(time.RFC3339)}

	if e.initialized {
		if err := e.store.Ping(ctx); err == nil {
			h.StoreConnected = true
		} else {
			slog.Warn("health: store ping failed", "error", err)
		}
	}

	if _, err := e.embedder.Embed(ctx, []string{"ping"}); err == nil {
		h.LLMAvailable = true
	} else {
		slog.Warn("health: embedding probe failed", "error", err)
	}

	switch {
	case h.StoreConnected && h.LLMAvailable:
		h.Status = StatusHealthy
	case h.StoreConnected || h.LLMAvailable:
		h.Status = StatusDegraded
	default:
		h.Status = StatusUnhealthy
	}
	return h
}

// embedOne embeds a single text.
func (e *Engine) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingFailed, len(vectors))
	}
	return vectors[0], nil
}

// scrubDocument drops the embedding from an API response unless opted in.
func scrubDocument(d *store.Document, includeEmbeddings bool) *store.Document {
	if d == nil || includeEmbeddings {
		return d
	}
	copied := *d
	copied.Embedding = nil
	return &copied
}

func scrubEntities(entities []store.Entity, includeEmbeddings bool) []store.Entity {
	if includeEmbeddings {
		return entities
	}
	out := make([]store.Entity, len(entities))
	for i, e := range entities {
		e.Embedding = nil
		out[i] = e
	}
	return out
}

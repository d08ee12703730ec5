package akasha

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Glossick/akasha-sub002/llm"
	"github.com/Glossick/akasha-sub002/retrieval"
	"github.com/Glossick/akasha-sub002/store"
)

// answerSystemPrompt bounds the answer to the retrieved graph context.
const answerSystemPrompt = `You are a knowledgeable assistant answering questions from a knowledge graph.
Answer using ONLY the provided context: the documents, entities, and relationships below.
If the context does not contain the answer, say so plainly. Do not invent facts.`

// insufficientContextAnswer is returned when retrieval finds nothing.
const insufficientContextAnswer = "I could not find any relevant information in the knowledge graph to answer this question."

// AskOptions configures one ask call.
type AskOptions struct {
	MaxDepth            int                `json:"maxDepth,omitempty"`
	Limit               int                `json:"limit,omitempty"`
	Contexts            []string           `json:"contexts,omitempty"`
	Strategy            retrieval.Strategy `json:"strategy,omitempty"`
	ValidAt             string             `json:"validAt,omitempty"`
	SimilarityThreshold float64            `json:"similarityThreshold,omitempty"`
	IncludeEmbeddings   bool               `json:"includeEmbeddings,omitempty"`
	IncludeStats        bool               `json:"includeStats,omitempty"`
}

// AskContext is the retrieved material an answer was generated from.
// Documents is present only when the strategy consulted the document index.
type AskContext struct {
	Documents     []store.Document     `json:"documents,omitempty"`
	Entities      []store.Entity       `json:"entities"`
	Relationships []store.Relationship `json:"relationships"`
}

// AskStats extends the retrieval stats with the generation timing.
type AskStats struct {
	retrieval.Stats
	LLMMs   int64 `json:"llmMs"`
	TotalMs int64 `json:"totalMs"`
}

// AskResult is the outcome of one ask call.
type AskResult struct {
	Answer  string     `json:"answer"`
	Context AskContext `json:"context"`
	Stats   *AskStats  `json:"stats,omitempty"`
}

// Ask answers a question from the scope's knowledge graph: embed the query
// once, retrieve and expand context, pack it, and generate. A query with
// no qualifying hits returns a canned answer with empty context rather
// than an error.
func (e *Engine) Ask(ctx context.Context, query string, opts AskOptions) (*AskResult, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}
	start := time.Now()

	threshold := opts.SimilarityThreshold
	if threshold <= 0 {
		threshold = e.cfg.SimilarityThreshold
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = e.cfg.Strategy
	}

	queryVec, err := e.embedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	retrieved, err := e.planner.Retrieve(ctx, queryVec, retrieval.Options{
		MaxDepth:            opts.MaxDepth,
		Limit:               opts.Limit,
		Contexts:            opts.Contexts,
		Strategy:            strategy,
		ValidAt:             opts.ValidAt,
		SimilarityThreshold: threshold,
	})
	if err != nil {
		return nil, err
	}

	result := &AskResult{
		Context: AskContext{
			Entities:      scrubEntities(retrieved.Entities, opts.IncludeEmbeddings),
			Relationships: retrieved.Relationships,
		},
	}
	if strategy != retrieval.StrategyEntities {
		result.Context.Documents = scrubDocuments(retrieved.Documents, opts.IncludeEmbeddings)
	}

	if retrieved.Empty() {
		result.Answer = insufficientContextAnswer
		if opts.IncludeStats {
			result.Stats = &AskStats{
				Stats:   retrieved.Stats,
				TotalMs: time.Since(start).Milliseconds(),
			}
		}
		return result, nil
	}

	packed := retrieval.Pack(retrieved.Documents, retrieved.Entities, retrieved.Relationships)

	llmStart := time.Now()
	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Context:\n\n%s\n\nQuestion: %s", packed.Context, query)},
		},
		Temperature: e.cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	result.Answer = resp.Content

	if opts.IncludeStats {
		result.Stats = &AskStats{
			Stats:   retrieved.Stats,
			LLMMs:   time.Since(llmStart).Milliseconds(),
			TotalMs: time.Since(start).Milliseconds(),
		}
	}

	slog.Info("ask: complete",
		"scope", e.cfg.Scope.ID,
		"documents", len(retrieved.Documents),
		"entities", len(retrieved.Entities),
		"relationships", len(retrieved.Relationships),
		"packedChars", packed.Summary.Chars,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

func scrubDocuments(docs []store.Document, includeEmbeddings bool) []store.Document {
	if includeEmbeddings {
		return docs
	}
	out := make([]store.Document, len(docs))
	for i, d := range docs {
		d.Embedding = nil
		out[i] = d
	}
	return out
}

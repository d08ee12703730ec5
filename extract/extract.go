// Package extract turns free-form text into a validated typed graph via a
// single low-temperature LLM call: prompt composition, JSON isolation, and
// schema validation against the label and relationship-type grammars.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Glossick/akasha-sub002/llm"
)

// defaultTemperature keeps extraction deterministic. The prompt contract
// assumes low-temperature JSON output.
const defaultTemperature = 0.1

// Extractor runs the prompt-build, LLM-call, parse-validate pipeline.
type Extractor struct {
	chat        llm.Provider
	template    PromptTemplate
	temperature float64
}

// New creates an Extractor. override is a partial template overlaid on the
// defaults; nil keeps the defaults. temperature above 0.3 is clamped.
func New(chat llm.Provider, override *PromptTemplate, temperature float64) *Extractor {
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	if temperature > 0.3 {
		temperature = 0.3
	}
	return &Extractor{
		chat:        chat,
		template:    DefaultTemplate().Merge(override),
		temperature: temperature,
	}
}

// SystemPrompt returns the composed system prompt for diagnostics.
func (x *Extractor) SystemPrompt() string {
	return BuildSystemPrompt(x.template)
}

// Extract runs one extraction over text. The user message contains only the
// text to analyze; all instructions live in the system prompt.
func (x *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	resp, err := x.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: BuildSystemPrompt(x.template)},
			{Role: "user", Content: text},
		},
		Temperature:    x.temperature,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("extraction llm chat: %w", err)
	}

	result, err := Parse(resp.Content)
	if err != nil {
		return nil, err
	}

	slog.Debug("extract: complete",
		"entities", len(result.Entities),
		"relationships", len(result.Relationships),
		"tokens", resp.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

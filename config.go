package akasha

import (
	"fmt"
	"strings"

	"github.com/Glossick/akasha-sub002/extract"
	"github.com/Glossick/akasha-sub002/retrieval"
)

// Config holds all configuration for an engine instance.
type Config struct {
	// Store selects and configures the backend. FilesystemPath chooses
	// the embedded SQLite engine; Endpoint chooses the Neo4j server.
	Store StoreConfig `json:"store" yaml:"store"`

	// Embedding configures the text-to-vector provider.
	Embedding ProviderConfig `json:"embedding" yaml:"embedding"`

	// LLM configures the completion provider used for extraction and
	// answer generation.
	LLM ProviderConfig `json:"llm" yaml:"llm"`

	// Scope is the tenant isolation key stamped on every node and edge.
	Scope ScopeConfig `json:"scope" yaml:"scope"`

	// ExtractionPrompt partially overrides the default extraction
	// template (ontology, format rules, semantic constraints).
	ExtractionPrompt *extract.PromptTemplate `json:"extractionPrompt,omitempty" yaml:"extraction_prompt,omitempty"`

	// SimilarityThreshold is the default vector similarity floor for Ask.
	SimilarityThreshold float64 `json:"similarityThreshold" yaml:"similarity_threshold"`

	// Strategy is the default retrieval strategy for Ask.
	Strategy retrieval.Strategy `json:"strategy" yaml:"strategy"`
}

// StoreConfig configures the graph/vector store backend.
type StoreConfig struct {
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Username       string `json:"username,omitempty" yaml:"username,omitempty"`
	Password       string `json:"password,omitempty" yaml:"password,omitempty"`
	Database       string `json:"database,omitempty" yaml:"database,omitempty"`
	FilesystemPath string `json:"filesystemPath,omitempty" yaml:"filesystem_path,omitempty"`
}

// ProviderConfig configures a single LLM or embedding endpoint.
type ProviderConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // openai, ollama, lmstudio, custom
	Model       string  `json:"model" yaml:"model"`
	BaseURL     string  `json:"baseUrl,omitempty" yaml:"base_url,omitempty"`
	APIKey      string  `json:"apiKey,omitempty" yaml:"api_key,omitempty"`
	Dimensions  int     `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// ScopeConfig identifies the tenant this engine writes and reads for.
type ScopeConfig struct {
	ID       string            `json:"id" yaml:"id"`
	Type     string            `json:"type" yaml:"type"`
	Name     string            `json:"name" yaml:"name"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults for local use: an
// embedded store under ./akasha.db and local Ollama inference.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			FilesystemPath: "akasha.db",
		},
		Embedding: ProviderConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768,
		},
		LLM: ProviderConfig{
			Provider:    "ollama",
			Model:       "llama3.1:8b",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.1,
		},
		SimilarityThreshold: retrieval.DefaultThreshold,
		Strategy:            retrieval.StrategyBoth,
	}
}

// ValidationResult reports the outcome of ValidateConfig.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateConfig checks a configuration without touching the network. It
// reports missing store credentials, missing provider keys for vendors
// that need them, and incomplete scope sections; it warns on unexpected
// endpoint schemes.
func ValidateConfig(cfg Config) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}}
	fail := func(format string, args ...any) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}
	warn := func(format string, args ...any) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(format, args...))
	}

	switch {
	case cfg.Store.FilesystemPath != "" && cfg.Store.Endpoint != "":
		fail("store: endpoint and filesystemPath are mutually exclusive")
	case cfg.Store.FilesystemPath == "" && cfg.Store.Endpoint == "":
		fail("store: either endpoint or filesystemPath is required")
	case cfg.Store.Endpoint != "":
		if cfg.Store.Username == "" {
			fail("store: username required for server endpoint")
		}
		if cfg.Store.Password == "" {
			fail("store: password required for server endpoint")
		}
		if !hasScheme(cfg.Store.Endpoint, "neo4j://", "neo4j+s://", "bolt://", "bolt+s://") {
			warn("store: unexpected endpoint scheme in %q", cfg.Store.Endpoint)
		}
	}

	if cfg.Embedding.Model == "" {
		fail("embedding: model is required")
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
		fail("embedding: apiKey required for provider %q", cfg.Embedding.Provider)
	}

	if cfg.LLM.Model == "" {
		fail("llm: model is required")
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		fail("llm: apiKey required for provider %q", cfg.LLM.Provider)
	}

	// A scope is optional, but a partially filled one is a mistake.
	scopeProvided := cfg.Scope.ID != "" || cfg.Scope.Type != "" || cfg.Scope.Name != "" || cfg.Scope.Metadata != nil
	if scopeProvided {
		if cfg.Scope.ID == "" {
			fail("scope: id is required when a scope is provided")
		}
		if cfg.Scope.Type == "" {
			fail("scope: type is required when a scope is provided")
		}
		if cfg.Scope.Name == "" {
			fail("scope: name is required when a scope is provided")
		}
	}

	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		fail("similarityThreshold must be within [0, 1], got %v", cfg.SimilarityThreshold)
	}

	return result
}

func hasScheme(endpoint string, schemes ...string) bool {
	for _, s := range schemes {
		if strings.HasPrefix(endpoint, s) {
			return true
		}
	}
	return false
}

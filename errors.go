package akasha

import "errors"

var (
	// ErrNotInitialized is returned when operating on an engine before
	// Initialize or after Cleanup.
	ErrNotInitialized = errors.New("akasha: engine not initialized")

	// ErrScopeRequired is returned by Learn when the engine has no scope.
	ErrScopeRequired = errors.New("akasha: scope required for learn")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("akasha: invalid configuration")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("akasha: embedding generation failed")

	// ErrLLMUnavailable is returned when the LLM provider is unreachable.
	ErrLLMUnavailable = errors.New("akasha: LLM provider unavailable")

	// ErrNotFound is returned by management lookups for unknown ids.
	ErrNotFound = errors.New("akasha: not found")

	// ErrStoreUnavailable is returned when the store cannot be reached.
	ErrStoreUnavailable = errors.New("akasha: store unavailable")
)

package interfaces

import (
	"context"
	"encoding/json"
)

// CompleteRequest is a structured-output chat completion request. Schema is
// a JSON schema enforced by the provider (Gemini ResponseSchema, Claude via
// system instruction); responses failing validation are SchemaViolations.
type CompleteRequest struct {
	SchemaName string                 // "parse_jd", "parse_resume", "parse_compliance", "rerank_candidates"
	Schema     map[string]interface{} // JSON schema for the structured output
	System     string
	Prompt     string
	Model      string // empty = default provider/model
	MaxTokens  int
}

// ModelClient is the thin contract for chat-completion and embedding
// providers. Implementations retry RateLimited/Transient failures with
// backoff and trip a circuit breaker after repeated failures.
type ModelClient interface {
	// Complete returns the raw structured object conforming to the request
	// schema. Callers must tolerate output non-determinism across retries.
	Complete(ctx context.Context, req *CompleteRequest) (json.RawMessage, error)

	// Embed returns one unit-normalized vector per input text. Batches of up
	// to the configured size are formed internally.
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)

	Close() error
}

// SectionEmbedder produces section vectors with content-addressed caching.
type SectionEmbedder interface {
	// EmbedTexts embeds each text, serving repeats from the cache. Given N
	// identical inputs, exactly one provider call is made.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

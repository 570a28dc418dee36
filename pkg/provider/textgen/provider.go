// Package textgen defines the Provider interface for text-generation
// backends.
//
// A text-generation provider wraps a remote chat-completion API (e.g., OpenAI
// or any backend reachable through any-llm-go) and exposes a single blocking
// Complete operation with token usage accounting. Retry, backoff and cost
// attribution live one layer up, in internal/story; providers only perform
// the call and classify its failure.
//
// Implementations must be safe for concurrent use.
package textgen

import "context"

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and directly affect billing.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// Request carries everything the model needs to produce a story draft.
type Request struct {
	// Prompt is the full user prompt. Must be non-empty.
	Prompt string

	// SystemPrompt is an optional high-priority instruction injected before
	// the prompt.
	SystemPrompt string

	// Model overrides the provider's default model when non-empty.
	Model string

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int

	// Temperature controls output randomness in [0.0, 2.0].
	Temperature float64
}

// Response is the result of a successful completion.
type Response struct {
	// Content is the full generated text.
	Content string

	// Model is the model that actually served the request.
	Model string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any chat-completion backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly. Failures should be returned as (or wrapped around)
// [*APIError] so callers can distinguish transient from permanent causes.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Model returns the provider's default model identifier.
	Model() string
}

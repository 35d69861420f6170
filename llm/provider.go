// LLM Provider interface - the abstract interface for LLM providers.
//
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling (status codes surface as
//   netx.HTTPError so the resilience layer can classify them)

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for tool-aware chat turns.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// SendTurn sends one chat turn with tool definitions. The model
	// may respond with tool calls in ModelReply.ToolCalls. Providers
	// do not retry; callers own resilience.
	SendTurn(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (ModelReply, error)
}

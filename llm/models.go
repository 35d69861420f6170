// Package llm provides shared data models for LLM providers.
package llm

import "encoding/json"

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For assistant messages with tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool result messages
	IsError    bool       `json:"is_error,omitempty"`     // For tool result messages reporting a failure
}

// ToolCall represents a tool call from the LLM. The ID is an opaque
// provider token: it is carried through untouched and echoed back on
// the matching result message, never parsed or synthesized.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition defines a tool that the LLM can call.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "system",
		Content: content,
	}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "user",
		Content: content,
	}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{
		Role:    "assistant",
		Content: content,
	}
}

// ToolResultMessage creates a tool result message echoing the opaque
// call ID it answers.
func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{
		Role:       "tool",
		Content:    content,
		ToolCallID: callID,
	}
}

// ToolErrorMessage creates a tool result message flagged as a failure.
// Providers with an error marker on tool results set it from here.
func ToolErrorMessage(callID, content string) ChatMessage {
	msg := ToolResultMessage(callID, content)
	msg.IsError = true
	return msg
}

// ModelReply represents one model turn.
type ModelReply struct {
	Content   string
	ToolCalls []ToolCall // Tool calls requested by the LLM
	// FinishReason is the provider's advisory stop reason, raw and
	// provider-specific. The presence or absence of ToolCalls is the
	// authoritative continuation signal; FinishReason only feeds
	// diagnostics when the two disagree.
	FinishReason string
	Usage        *TokenUsage
}

// FinishIndicatesTools reports whether the advisory finish reason
// claims the model requested tools.
func (r ModelReply) FinishIndicatesTools() bool {
	switch r.FinishReason {
	case "tool_calls", "tool_use", "function_call":
		return true
	}
	return false
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

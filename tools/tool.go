// Package tools provides the closed tool set exposed to the model.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/warden-agent/warden/llm"
)

// ToolParameter defines a parameter schema for a tool.
type ToolParameter struct {
	Name        string `json:"name"`
	ParamType   string `json:"param_type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// ToolMetadata describes what a tool does and how to use it.
type ToolMetadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Definition converts the metadata to the JSON Schema form providers
// send to the model.
func (m ToolMetadata) Definition() llm.ToolDefinition {
	properties := make(map[string]interface{}, len(m.Parameters))
	var required []string
	for _, p := range m.Parameters {
		properties[p.Name] = map[string]interface{}{
			"type":        p.ParamType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return llm.ToolDefinition{
		Name:        m.Name,
		Description: m.Description,
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil.
type ToolResult struct {
	Output string `json:"output"`
	Error  error  `json:"-"` // Excluded from JSON, use MarshalJSON for custom serialization
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Output  string `json:"output"`
			Error   string `json:"error"`
		}{
			Success: false,
			Output:  t.Output,
			Error:   t.Error.Error(),
		})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}{
		Success: true,
		Output:  t.Output,
	})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal execution logic,
// data structures, and error handling strategies behind this interface.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameters).
	Metadata() ToolMetadata

	// Execute runs the tool with given arguments. Security denials
	// and operational failures are reported through ToolResult; the
	// error return is reserved for infrastructure faults.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)

	// Validate validates arguments before execution (optional).
	Validate(args json.RawMessage) error
}

// BaseTool provides a default implementation for Validate.
type BaseTool struct{}

// Validate provides a default no-op validation.
func (BaseTool) Validate(args json.RawMessage) error {
	return nil
}

// Memory persistence tool.
//
// Lets the model store durable facts about the user or project. Facts
// are scoped to the session that saved them and surface in later
// conversations through the prompt.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warden-agent/warden/storage"
)

// maxFactLen bounds a single saved fact.
const maxFactLen = 2000

// SaveMemoryTool persists a fact to the memory store.
type SaveMemoryTool struct {
	BaseTool
	memories storage.MemoryStore
	session  string
}

// NewSaveMemoryTool creates a new memory tool writing to the given store.
func NewSaveMemoryTool(memories storage.MemoryStore, session string) *SaveMemoryTool {
	return &SaveMemoryTool{memories: memories, session: session}
}

// Metadata returns the tool metadata.
func (t *SaveMemoryTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "save_memory",
		Description: "Save a short fact to persistent memory so it is available in future conversations. Use for durable user preferences or project facts, not transient details.",
		Parameters: []ToolParameter{
			{Name: "fact", ParamType: "string", Description: "The fact to remember, phrased as a standalone sentence", Required: true},
		},
	}
}

type memoryArgs struct {
	Fact string `json:"fact"`
}

// Validate validates the tool arguments.
func (t *SaveMemoryTool) Validate(args json.RawMessage) error {
	var a memoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Fact) == "" {
		return fmt.Errorf("fact cannot be empty")
	}
	if len(a.Fact) > maxFactLen {
		return fmt.Errorf("fact exceeds maximum length of %d characters", maxFactLen)
	}
	return nil
}

// Execute saves the fact.
func (t *SaveMemoryTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a memoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	fact := strings.TrimSpace(a.Fact)
	if fact == "" {
		return FailureResultf("fact cannot be empty"), nil
	}
	if len(fact) > maxFactLen {
		return FailureResultf("fact exceeds maximum length of %d characters", maxFactLen), nil
	}

	if err := t.memories.SaveFact(ctx, storage.NewFact(t.session, fact)); err != nil {
		return FailureResult(fmt.Errorf("failed to save memory: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Saved memory: %s", fact)), nil
}

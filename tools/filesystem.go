// Filesystem Tools - Read, Write, Replace, ListDirectory operations.
//
// Information Hiding:
// - File I/O implementation details hidden
// - Path authorization delegated to the shared Guard
// - Error handling for file operations abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadFileTool reads file contents.
type ReadFileTool struct {
	BaseTool
	guard        *Guard
	maxSizeBytes int64
}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool(guard *Guard, maxSizeBytes int64) *ReadFileTool {
	return &ReadFileTool{
		guard:        guard,
		maxSizeBytes: maxSizeBytes,
	}
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_file",
		Description: "Read the contents of a file from the filesystem",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to read", Required: true},
		},
	}
}

type readFileArgs struct {
	Path string `json:"path"`
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args json.RawMessage) error {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute reads the file.
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	path, err := t.guard.Authorize(ctx, "read_file", a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return FailureResultf("file does not exist: %s", a.Path), nil
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file metadata: %w", err)), nil
	}

	if info.Size() > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (max: %d bytes)", info.Size(), t.maxSizeBytes), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}

	return SuccessResult(string(content)), nil
}

// WriteFileTool writes content to a file.
type WriteFileTool struct {
	BaseTool
	guard        *Guard
	maxSizeBytes int64
}

// NewWriteFileTool creates a new write file tool.
func NewWriteFileTool(guard *Guard, maxSizeBytes int64) *WriteFileTool {
	return &WriteFileTool{
		guard:        guard,
		maxSizeBytes: maxSizeBytes,
	}
}

// Metadata returns the tool metadata.
func (t *WriteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "write_file",
		Description: "Write content to a file on the filesystem",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to write", Required: true},
			{Name: "content", ParamType: "string", Description: "Content to write", Required: true},
		},
	}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Validate validates the arguments.
func (t *WriteFileTool) Validate(args json.RawMessage) error {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute writes to the file.
func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	if int64(len(a.Content)) > t.maxSizeBytes {
		return FailureResultf("content too large: %d bytes (max: %d bytes)", len(a.Content), t.maxSizeBytes), nil
	}

	path, err := t.guard.Authorize(ctx, "write_file", a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	// Create parent directory if needed
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return FailureResult(fmt.Errorf("failed to create directory: %w", err)), nil
	}

	if err := os.WriteFile(path, []byte(a.Content), 0644); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Successfully wrote %d bytes to %s", len(a.Content), a.Path)), nil
}

// ReplaceTool performs exact-occurrence replacement in a file.
type ReplaceTool struct {
	BaseTool
	guard        *Guard
	maxSizeBytes int64
}

// NewReplaceTool creates a new replace tool.
func NewReplaceTool(guard *Guard, maxSizeBytes int64) *ReplaceTool {
	return &ReplaceTool{
		guard:        guard,
		maxSizeBytes: maxSizeBytes,
	}
}

// Metadata returns the tool metadata.
func (t *ReplaceTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "replace",
		Description: "Replace occurrences of a string in a file. Fails if the occurrence count does not match expected_replacements (default 1), so stale edits are rejected instead of applied blindly.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to edit", Required: true},
			{Name: "old_string", ParamType: "string", Description: "Exact text to replace", Required: true},
			{Name: "new_string", ParamType: "string", Description: "Replacement text", Required: true},
			{Name: "expected_replacements", ParamType: "integer", Description: "Number of occurrences that must exist (default: 1)", Required: false},
		},
	}
}

type replaceArgs struct {
	Path                 string `json:"path"`
	OldString            string `json:"old_string"`
	NewString            string `json:"new_string"`
	ExpectedReplacements *int   `json:"expected_replacements"`
}

// Validate validates the arguments.
func (t *ReplaceTool) Validate(args json.RawMessage) error {
	var a replaceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if a.OldString == "" {
		return fmt.Errorf("old_string cannot be empty")
	}
	if a.ExpectedReplacements != nil && *a.ExpectedReplacements < 1 {
		return fmt.Errorf("expected_replacements must be at least 1")
	}
	return nil
}

// Execute performs the replacement.
func (t *ReplaceTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a replaceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}
	if a.OldString == "" {
		return FailureResultf("old_string cannot be empty"), nil
	}

	path, err := t.guard.Authorize(ctx, "replace", a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return FailureResultf("file does not exist: %s", a.Path), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read file: %w", err)), nil
	}

	if int64(len(content)) > t.maxSizeBytes {
		return FailureResultf("file too large: %d bytes (max: %d bytes)", len(content), t.maxSizeBytes), nil
	}

	contentStr := string(content)
	occurrences := strings.Count(contentStr, a.OldString)

	expected := 1
	if a.ExpectedReplacements != nil {
		expected = *a.ExpectedReplacements
	}

	if occurrences == 0 {
		return FailureResultf("old_string not found in %s", a.Path), nil
	}
	if occurrences != expected {
		return FailureResultf("old_string occurs %d times, expected %d; adjust expected_replacements or make old_string more specific", occurrences, expected), nil
	}

	updated := strings.ReplaceAll(contentStr, a.OldString, a.NewString)

	if int64(len(updated)) > t.maxSizeBytes {
		return FailureResultf("updated content too large: %d bytes (max: %d bytes)", len(updated), t.maxSizeBytes), nil
	}

	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return FailureResult(fmt.Errorf("failed to write file: %w", err)), nil
	}

	return SuccessResult(fmt.Sprintf("Replaced %d occurrence(s) in %s", occurrences, a.Path)), nil
}

// ListDirectoryTool lists directory entries.
type ListDirectoryTool struct {
	BaseTool
	guard *Guard
}

// NewListDirectoryTool creates a new list directory tool.
func NewListDirectoryTool(guard *Guard) *ListDirectoryTool {
	return &ListDirectoryTool{guard: guard}
}

// Metadata returns the tool metadata.
func (t *ListDirectoryTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_directory",
		Description: "List the entries of a directory. Directories are suffixed with a trailing slash.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the directory to list", Required: true},
		},
	}
}

type listDirectoryArgs struct {
	Path string `json:"path"`
}

// Validate validates the arguments.
func (t *ListDirectoryTool) Validate(args json.RawMessage) error {
	var a listDirectoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute lists the directory.
func (t *ListDirectoryTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a listDirectoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	path, err := t.guard.Authorize(ctx, "list_directory", a.Path)
	if err != nil {
		return FailureResult(err), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FailureResultf("directory does not exist: %s", a.Path), nil
		}
		return FailureResult(fmt.Errorf("failed to list directory: %w", err)), nil
	}

	if len(entries) == 0 {
		return SuccessResult(fmt.Sprintf("%s is empty", a.Path)), nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return SuccessResult(strings.Join(names, "\n")), nil
}

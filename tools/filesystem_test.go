package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustArgs(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFileToolReadsContent(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "hello.txt", "hello world")

	tool := NewReadFileTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{"path": path}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, "hello world", result.Output)
}

func TestReadFileToolMissingFile(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)

	tool := NewReadFileTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"path": filepath.Join(root, "nope.txt"),
	}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "does not exist")
}

func TestReadFileToolDeniedOutsideRoots(t *testing.T) {
	root := canonicalTempDir(t)
	outside := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, outside, "secret.txt", "nope")

	tool := NewReadFileTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{"path": path}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "access denied")
}

func TestReadFileToolSizeLimit(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "big.txt", "0123456789")

	tool := NewReadFileTool(guard, 5)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{"path": path}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "file too large")
}

func TestWriteFileToolCreatesParentDirs(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := filepath.Join(root, "nested", "dir", "out.txt")

	tool := NewWriteFileTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"path":    path,
		"content": "written",
	}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Contains(t, result.Output, "Successfully wrote 7 bytes")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "written", string(content))
}

func TestWriteFileToolDeniedExcluded(t *testing.T) {
	root := canonicalTempDir(t)
	external := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, []string{external})

	tool := NewWriteFileTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"path":    filepath.Join(external, "server.pem"),
		"content": "key material",
	}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "security decision")
	assert.NoFileExists(t, filepath.Join(external, "server.pem"))
}

func TestReplaceToolSingleOccurrence(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	tool := NewReplaceTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"path":       path,
		"old_string": "func main() {}",
		"new_string": "func main() { run() }",
	}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Contains(t, result.Output, "Replaced 1 occurrence(s)")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "run()")
}

func TestReplaceToolOccurrenceCountMismatch(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "dup.txt", "x\nx\nx\n")

	tool := NewReplaceTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"path":       path,
		"old_string": "x",
		"new_string": "y",
	}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "occurs 3 times, expected 1")

	// File untouched on mismatch.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x\nx\nx\n", string(content))
}

func TestReplaceToolExpectedReplacements(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "dup.txt", "x x x")

	tool := NewReplaceTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
		"path":                  path,
		"old_string":            "x",
		"new_string":            "y",
		"expected_replacements": 3,
	}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Contains(t, result.Output, "Replaced 3 occurrence(s)")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "y y y", string(content))
}

func TestReplaceToolOldStringNotFound(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "a.txt", "content")

	tool := NewReplaceTool(guard, DefaultMaxFileSize)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"path":       path,
		"old_string": "absent",
		"new_string": "present",
	}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "old_string not found")
}

func TestReplaceToolValidateRejectsZeroExpected(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)

	tool := NewReplaceTool(guard, DefaultMaxFileSize)
	err := tool.Validate(mustArgs(t, map[string]any{
		"path":                  "a.txt",
		"old_string":            "x",
		"new_string":            "y",
		"expected_replacements": 0,
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected_replacements")
}

func TestListDirectoryTool(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	writeTestFile(t, root, "b.txt", "")
	writeTestFile(t, root, "a.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	tool := NewListDirectoryTool(guard)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{"path": root}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, "a.txt\nb.txt\nsub/", result.Output)
}

func TestListDirectoryToolEmpty(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	empty := filepath.Join(root, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))

	tool := NewListDirectoryTool(guard)
	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{"path": empty}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, fmt.Sprintf("%s is empty", empty), result.Output)
}

package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-agent/warden/storage"
)

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&stubTool{name: "dup"}))

	err := registry.Register(&stubTool{name: "dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestWithDefaultsRegistersClosedToolSet(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)

	registry, err := WithDefaults(guard, storage.NewInMemoryStore(), "s", DefaultLimits())
	require.NoError(t, err)

	want := []string{
		"glob_search",
		"list_directory",
		"read_file",
		"replace",
		"run_shell_command",
		"save_memory",
		"search_file_content",
		"web_fetch",
		"web_search",
		"write_file",
	}
	assert.Equal(t, want, registry.Names())
}

func TestDefinitionsMatchMetadata(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)

	registry, err := WithDefaults(guard, storage.NewInMemoryStore(), "s", DefaultLimits())
	require.NoError(t, err)

	defs := registry.Definitions()
	require.Len(t, defs, len(registry.Names()))

	for i, name := range registry.Names() {
		assert.Equal(t, name, defs[i].Name)
		assert.NotEmpty(t, defs[i].Description)
	}
}

func TestWithDefaultsThreadsFileSizeLimit(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "big.txt", "this file is bigger than the configured ceiling")

	registry, err := WithDefaults(guard, storage.NewInMemoryStore(), "s", Limits{MaxFileSize: 16})
	require.NoError(t, err)

	tool, ok := registry.Get("read_file")
	require.True(t, ok)

	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"path": path}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "file too large")
	assert.Contains(t, result.Error.Error(), "max: 16 bytes")
}

func TestWithDefaultsThreadsShellAllowlist(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)

	registry, err := WithDefaults(guard, storage.NewInMemoryStore(), "s",
		Limits{ShellAllowlist: []string{"echo"}})
	require.NoError(t, err)

	tool, ok := registry.Get("run_shell_command")
	require.True(t, ok)

	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"command": "printf hi"}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "not in the allowed list")
}

func TestWithDefaultsThreadsFetchDomains(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)

	registry, err := WithDefaults(guard, storage.NewInMemoryStore(), "s",
		Limits{FetchDomains: []string{"example.com"}})
	require.NoError(t, err)

	tool, ok := registry.Get("web_fetch")
	require.True(t, ok)

	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"url": "https://evil.net/payload"}))
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "not allowed")
}

func TestWithDefaultsZeroLimitsFallBack(t *testing.T) {
	root := canonicalTempDir(t)
	guard, _ := newTestGuard(t, []string{root}, nil)
	path := writeTestFile(t, root, "small.txt", "fits")

	registry, err := WithDefaults(guard, storage.NewInMemoryStore(), "s", Limits{})
	require.NoError(t, err)

	tool, ok := registry.Get("read_file")
	require.True(t, ok)

	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"path": path}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Contains(t, result.Output, "fits")
}

package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-agent/warden/storage"
)

func TestSaveMemoryToolPersistsFact(t *testing.T) {
	store := storage.NewInMemoryStore()
	tool := NewSaveMemoryTool(store, "session-1")

	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"fact": "The user prefers tabs over spaces",
	}))
	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Contains(t, result.Output, "Saved memory")

	facts, err := store.Facts(context.Background(), "session-1", 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "The user prefers tabs over spaces", facts[0].Content)
	assert.Equal(t, "session-1", facts[0].SessionID)
}

func TestSaveMemoryToolTrimsWhitespace(t *testing.T) {
	store := storage.NewInMemoryStore()
	tool := NewSaveMemoryTool(store, "s")

	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{
		"fact": "  project uses Go 1.22  ",
	}))
	require.NoError(t, err)
	require.NoError(t, result.Error)

	facts, err := store.Facts(context.Background(), "s", 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "project uses Go 1.22", facts[0].Content)
}

func TestSaveMemoryToolRejectsEmptyFact(t *testing.T) {
	store := storage.NewInMemoryStore()
	tool := NewSaveMemoryTool(store, "s")

	require.Error(t, tool.Validate(mustArgs(t, map[string]string{"fact": "   "})))

	result, err := tool.Execute(context.Background(), mustArgs(t, map[string]string{"fact": ""}))
	require.NoError(t, err)
	require.Error(t, result.Error)
}

func TestSaveMemoryToolRejectsOversizedFact(t *testing.T) {
	store := storage.NewInMemoryStore()
	tool := NewSaveMemoryTool(store, "s")

	long := strings.Repeat("a", maxFactLen+1)
	require.Error(t, tool.Validate(mustArgs(t, map[string]string{"fact": long})))
}

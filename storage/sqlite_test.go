package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/llm"
)

func newTestSqlite(t *testing.T) *SqliteStore {
	t.Helper()
	store, err := NewSqliteInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSqliteStoreSaveAndLoad(t *testing.T) {
	store := newTestSqlite(t)
	ctx := context.Background()

	messages := []llm.ChatMessage{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
	}
	require.NoError(t, store.Save(ctx, "test-session", messages))

	loaded, err := store.Load(ctx, "test-session")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "Hello", loaded[0].Content)
	assert.Equal(t, "Hi there", loaded[1].Content)
}

func TestSqliteStoreRoundTripsToolCalls(t *testing.T) {
	store := newTestSqlite(t)
	ctx := context.Background()

	history := []llm.ChatMessage{
		{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.txt"}`)},
			},
		},
		{Role: "tool", ToolCallID: "call_1", Content: "contents"},
	}
	require.NoError(t, store.Save(ctx, "s", history))

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Len(t, loaded[0].ToolCalls, 1)
	assert.Equal(t, "call_1", loaded[0].ToolCalls[0].ID)
	assert.Equal(t, "read_file", loaded[0].ToolCalls[0].Name)
	assert.JSONEq(t, `{"path":"a.txt"}`, string(loaded[0].ToolCalls[0].Arguments))
	assert.Equal(t, "call_1", loaded[1].ToolCallID)
}

func TestSqliteStoreLoadNonexistentSession(t *testing.T) {
	store := newTestSqlite(t)

	loaded, err := store.Load(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSqliteStoreSaveReplacesHistory(t *testing.T) {
	store := newTestSqlite(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s", []llm.ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}))
	require.NoError(t, store.Save(ctx, "s", []llm.ChatMessage{
		{Role: "user", Content: "only"},
	}))

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "only", loaded[0].Content)
}

func TestSqliteStoreDeleteAndList(t *testing.T) {
	store := newTestSqlite(t)
	ctx := context.Background()
	msg := []llm.ChatMessage{{Role: "user", Content: "Test"}}

	require.NoError(t, store.Save(ctx, "a", msg))
	require.NoError(t, store.Save(ctx, "b", msg))

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, store.Delete(ctx, "a"))
	sessions, err = store.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, sessions)
}

func TestSqliteStoreFacts(t *testing.T) {
	store := newTestSqlite(t)
	ctx := context.Background()

	first := NewFact("s", "prefers tabs")
	second := NewFact("s", "project uses sqlite")
	second.CreatedAt = first.CreatedAt + 1
	require.NoError(t, store.SaveFact(ctx, first))
	require.NoError(t, store.SaveFact(ctx, second))

	facts, err := store.Facts(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "project uses sqlite", facts[0].Content)

	limited, err := store.Facts(ctx, "s", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSqliteStoreAuditSink(t *testing.T) {
	store := newTestSqlite(t)
	ctx := context.Background()

	ev := audit.New(audit.EventDenial, "s")
	ev.Tool = "read_file"
	ev.Path = "/home/user/.ssh/id_rsa"
	ev.Reason = "path matches excluded pattern \".ssh\" (security decision)"
	store.Record(ctx, ev)
	store.Record(ctx, audit.New(audit.EventTermination, "s"))
	store.Record(ctx, audit.New(audit.EventDispatch, "other"))

	events, err := store.Events(ctx, "s")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventDenial, events[0].Type)
	assert.Equal(t, "read_file", events[0].Tool)
	assert.Contains(t, events[0].Reason, ".ssh")
	assert.Equal(t, audit.EventTermination, events[1].Type)
}

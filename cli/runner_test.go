package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-agent/warden/agent"
	"github.com/warden-agent/warden/llm"
	"github.com/warden-agent/warden/storage"
	"github.com/warden-agent/warden/tools"
)

// scriptedProvider replays canned replies and records every
// conversation it was sent.
type scriptedProvider struct {
	replies []llm.ModelReply
	seen    [][]llm.ChatMessage
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) SendTurn(_ context.Context, messages []llm.ChatMessage, _ []llm.ToolDefinition) (llm.ModelReply, error) {
	snapshot := make([]llm.ChatMessage, len(messages))
	copy(snapshot, messages)
	p.seen = append(p.seen, snapshot)

	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

// newTestSession builds a session over the given store the way one
// warden invocation would, with a scripted model behind it.
func newTestSession(t *testing.T, store *storage.SqliteStore, id string, provider *scriptedProvider) *session {
	t.Helper()

	dispatcher := tools.NewDispatcher(tools.NewRegistry(), time.Second)
	ag := agent.New(agent.Config{MaxIterations: 3}, llm.NewClient(provider), dispatcher)
	return &session{id: id, agent: ag, store: store}
}

func TestRunTurnResumesStoredHistory(t *testing.T) {
	store, err := storage.NewSqliteInMemory()
	require.NoError(t, err)
	defer store.Close()

	first := &scriptedProvider{replies: []llm.ModelReply{{Content: "the answer is 42"}}}
	sess := newTestSession(t, store, "sess-resume", first)

	result, err := sess.runTurn(context.Background(), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, agent.Completed, result.Reason)

	// A later invocation of the same session id must see the earlier
	// turn, not start from scratch.
	second := &scriptedProvider{replies: []llm.ModelReply{{Content: "as I said, 42"}}}
	sess = newTestSession(t, store, "sess-resume", second)

	result, err = sess.runTurn(context.Background(), "repeat that")
	require.NoError(t, err)
	assert.Equal(t, agent.Completed, result.Reason)

	require.Len(t, second.seen, 1)
	request := second.seen[0]

	var contents []string
	for _, msg := range request {
		contents = append(contents, msg.Content)
	}
	assert.Contains(t, contents, "what is the answer?")
	assert.Contains(t, contents, "the answer is 42")
	assert.Contains(t, contents, "repeat that")
}

func TestRunTurnPersistsBothTurns(t *testing.T) {
	store, err := storage.NewSqliteInMemory()
	require.NoError(t, err)
	defer store.Close()

	provider := &scriptedProvider{replies: []llm.ModelReply{
		{Content: "first reply"},
		{Content: "second reply"},
	}}
	sess := newTestSession(t, store, "sess-persist", provider)

	_, err = sess.runTurn(context.Background(), "first task")
	require.NoError(t, err)
	_, err = sess.runTurn(context.Background(), "second task")
	require.NoError(t, err)

	saved, err := store.Load(context.Background(), "sess-persist")
	require.NoError(t, err)

	var contents []string
	for _, msg := range saved {
		contents = append(contents, msg.Content)
	}
	assert.Contains(t, contents, "first task")
	assert.Contains(t, contents, "first reply")
	assert.Contains(t, contents, "second task")
	assert.Contains(t, contents, "second reply")
}

func TestRunTurnDistinctSessionsStayIsolated(t *testing.T) {
	store, err := storage.NewSqliteInMemory()
	require.NoError(t, err)
	defer store.Close()

	a := newTestSession(t, store, "sess-a",
		&scriptedProvider{replies: []llm.ModelReply{{Content: "for a"}}})
	_, err = a.runTurn(context.Background(), "task for a")
	require.NoError(t, err)

	b := &scriptedProvider{replies: []llm.ModelReply{{Content: "for b"}}}
	sess := newTestSession(t, store, "sess-b", b)
	_, err = sess.runTurn(context.Background(), "task for b")
	require.NoError(t, err)

	require.Len(t, b.seen, 1)
	for _, msg := range b.seen[0] {
		assert.NotContains(t, msg.Content, "task for a")
	}
}

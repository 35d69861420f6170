package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/llm"
	"github.com/warden-agent/warden/netx"
	"github.com/warden-agent/warden/tools"
)

// scriptedProvider returns canned replies in order, then errors.
type scriptedProvider struct {
	replies []llm.ModelReply
	errs    []error
	calls   int
	seen    [][]llm.ChatMessage
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) SendTurn(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.ModelReply, error) {
	idx := p.calls
	p.calls++
	p.seen = append(p.seen, append([]llm.ChatMessage(nil), messages...))
	if idx < len(p.errs) && p.errs[idx] != nil {
		return llm.ModelReply{}, p.errs[idx]
	}
	if idx < len(p.replies) {
		return p.replies[idx], nil
	}
	return llm.ModelReply{}, fmt.Errorf("no scripted reply for call %d", idx)
}

// echoTool reports its arguments back.
type echoTool struct {
	tools.BaseTool
	calls int
}

func (e *echoTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{Name: "echo", Description: "echoes input"}
}

func (e *echoTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	e.calls++
	return tools.SuccessResult("echo: " + string(args)), nil
}

type recordedEvents struct {
	events []audit.Event
}

func (r *recordedEvents) Record(_ context.Context, ev audit.Event) {
	r.events = append(r.events, ev)
}

func (r *recordedEvents) ofType(typ audit.EventType) []audit.Event {
	var out []audit.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func newTestAgent(t *testing.T, provider llm.Provider, cfg Config) (*Agent, *echoTool, *recordedEvents) {
	t.Helper()
	echo := &echoTool{}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(echo))

	sink := &recordedEvents{}
	client := llm.NewClient(provider)
	dispatcher := tools.NewDispatcher(registry, 0)
	return New(cfg, client, dispatcher).WithAudit(sink, "s"), echo, sink
}

func textReply(text string) llm.ModelReply {
	return llm.ModelReply{Content: text, FinishReason: "stop"}
}

func toolReply(ids ...string) llm.ModelReply {
	reply := llm.ModelReply{FinishReason: "tool_calls"}
	for _, id := range ids {
		reply.ToolCalls = append(reply.ToolCalls, llm.ToolCall{
			ID:        id,
			Name:      "echo",
			Arguments: json.RawMessage(`{"n":1}`),
		})
	}
	return reply
}

func TestRunTurnCompletesWithoutTools(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.ModelReply{textReply("all done")}}
	agent, echo, _ := newTestAgent(t, provider, DefaultConfig())

	result := agent.RunTurn(context.Background(), "hello", nil)

	assert.Equal(t, Completed, result.Reason)
	assert.Equal(t, "all done", result.FinalText)
	assert.Equal(t, 1, result.Iterations)
	assert.NoError(t, result.Err)
	assert.Zero(t, echo.calls)

	// system + user + assistant
	require.Len(t, result.Conversation, 3)
	assert.Equal(t, "system", result.Conversation[0].Role)
	assert.Equal(t, "user", result.Conversation[1].Role)
	assert.Equal(t, "assistant", result.Conversation[2].Role)
}

func TestRunTurnDispatchesToolsThenCompletes(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.ModelReply{
		toolReply("call_1", "call_2"),
		textReply("finished"),
	}}
	agent, echo, _ := newTestAgent(t, provider, DefaultConfig())

	result := agent.RunTurn(context.Background(), "do work", nil)

	assert.Equal(t, Completed, result.Reason)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 2, echo.calls)

	// The second model request must already contain both tool results,
	// in call order, with the model's ids echoed untouched.
	require.Equal(t, 2, provider.calls)
	second := provider.seen[1]
	var toolMsgs []llm.ChatMessage
	for _, msg := range second {
		if msg.Role == "tool" {
			toolMsgs = append(toolMsgs, msg)
		}
	}
	require.Len(t, toolMsgs, 2)
	assert.Equal(t, "call_1", toolMsgs[0].ToolCallID)
	assert.Equal(t, "call_2", toolMsgs[1].ToolCallID)
}

func TestRunTurnExhaustsAtCap(t *testing.T) {
	// The model always wants more tools.
	provider := &scriptedProvider{replies: []llm.ModelReply{
		toolReply("c1"), toolReply("c2"), toolReply("c3"), toolReply("c4"),
	}}
	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	agent, echo, sink := newTestAgent(t, provider, cfg)

	result := agent.RunTurn(context.Background(), "loop forever", nil)

	assert.Equal(t, Exhausted, result.Reason)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, 3, provider.calls, "exactly the cap, not one more")
	assert.Equal(t, 3, echo.calls, "the final round's tools still ran")

	var limitErr *IterationLimitError
	require.ErrorAs(t, result.Err, &limitErr)
	assert.Equal(t, 3, limitErr.Limit)
	assert.Contains(t, result.Err.Error(), "maximum of 3 iterations")

	// The last tool result is present in the preserved history.
	last := result.Conversation[len(result.Conversation)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "c3", last.ToolCallID)

	terms := sink.ofType(audit.EventTermination)
	require.Len(t, terms, 1)
	assert.Equal(t, "exhausted", terms[0].Reason)
}

func TestRunTurnFailsOnPermanentError(t *testing.T) {
	provider := &scriptedProvider{errs: []error{
		&netx.PermanentError{Kind: netx.KindAuth, Err: fmt.Errorf("bad key")},
	}}
	agent, _, sink := newTestAgent(t, provider, DefaultConfig())

	result := agent.RunTurn(context.Background(), "hello", nil)

	assert.Equal(t, Failed, result.Reason)
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "model request failed")
	assert.Equal(t, 1, provider.calls, "permanent errors are not retried")

	terms := sink.ofType(audit.EventTermination)
	require.Len(t, terms, 1)
	assert.Equal(t, "failed", terms[0].Reason)
}

func TestRunTurnCancelledBeforeRequest(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.ModelReply{textReply("x")}}
	agent, _, _ := newTestAgent(t, provider, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := agent.RunTurn(ctx, "hello", nil)
	assert.Equal(t, Failed, result.Reason)
	assert.Contains(t, result.Err.Error(), "cancelled")
	assert.Zero(t, provider.calls)
}

func TestRunTurnDiagnosticOnFinishReasonDisagreement(t *testing.T) {
	// finish_reason says stop but tool calls are present; presence wins.
	reply := toolReply("c1")
	reply.FinishReason = "stop"
	provider := &scriptedProvider{replies: []llm.ModelReply{reply, textReply("done")}}
	agent, echo, sink := newTestAgent(t, provider, DefaultConfig())

	result := agent.RunTurn(context.Background(), "go", nil)

	assert.Equal(t, Completed, result.Reason)
	assert.Equal(t, 1, echo.calls, "tool calls dispatched despite finish_reason")

	diags := sink.ofType(audit.EventDiagnostic)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Reason, "disagrees")
}

func TestRunTurnContinuesHistory(t *testing.T) {
	provider := &scriptedProvider{replies: []llm.ModelReply{textReply("second answer")}}
	agent, _, _ := newTestAgent(t, provider, DefaultConfig())

	history := []llm.ChatMessage{
		llm.SystemMessage("sys"),
		llm.UserMessage("first"),
		llm.AssistantMessage("first answer"),
	}
	result := agent.RunTurn(context.Background(), "second", history)

	require.Equal(t, Completed, result.Reason)
	// No second system prompt injected.
	systems := 0
	for _, msg := range result.Conversation {
		if msg.Role == "system" {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Len(t, result.Conversation, 5)
}

func TestTerminationReasonExitCodes(t *testing.T) {
	assert.Equal(t, 0, Completed.ExitCode())
	assert.Equal(t, 2, Exhausted.ExitCode())
	assert.Equal(t, 1, Failed.ExitCode())
}

// Tool Dispatcher - routes model tool calls to handlers.
//
// Information Hiding:
// - Timeout enforcement hidden
// - Result-to-message serialization hidden
// - Unknown-tool and validation handling internalized

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/llm"
)

// Dispatcher executes tool calls from the model against the registry.
// Every call produces exactly one result message, success or failure:
// local tool errors are reported back to the model as error results,
// never raised as loop failures.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	sink     audit.Sink
	session  string
}

// NewDispatcher creates a dispatcher over the registry. A timeout of
// zero disables the per-call deadline.
func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		sink:     audit.NopSink{},
	}
}

// WithAudit routes dispatch events to the given sink.
func (d *Dispatcher) WithAudit(sink audit.Sink, session string) *Dispatcher {
	d.sink = sink
	d.session = session
	return d
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch executes one tool call and returns its result message. The
// opaque call ID is echoed back untouched. Timeouts and unknown tools
// are reported as operational failures, worded so the model can tell
// them apart from security denials.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) llm.ChatMessage {
	ev := audit.New(audit.EventDispatch, d.session)
	ev.Tool = call.Name
	d.sink.Record(ctx, ev)

	result := d.run(ctx, call)
	if result.Error != nil {
		return llm.ToolErrorMessage(call.ID, formatResult(result))
	}
	return llm.ToolResultMessage(call.ID, formatResult(result))
}

// DispatchAll executes calls sequentially in the order the model
// issued them, producing one result per call.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []llm.ToolCall) []llm.ChatMessage {
	results := make([]llm.ChatMessage, 0, len(calls))
	for _, call := range calls {
		results = append(results, d.Dispatch(ctx, call))
	}
	return results
}

func (d *Dispatcher) run(ctx context.Context, call llm.ToolCall) ToolResult {
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		return FailureResult(fmt.Errorf("unknown tool '%s': %w", call.Name, ErrUnknownTool))
	}

	if err := tool.Validate(call.Arguments); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments for '%s': %w", call.Name, err))
	}

	parent := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if ctx.Err() == context.DeadlineExceeded {
		// Transient operational failure, not a security decision. Only
		// blame the per-call timer when it is the deadline that fired;
		// an expired outer deadline reads as a turn-level cancellation.
		if d.timeout > 0 && parent.Err() == nil {
			return FailureResult(fmt.Errorf("tool '%s' timed out after %s; %w", call.Name, d.timeout, ErrToolTimeout))
		}
		return FailureResult(fmt.Errorf("tool '%s' was cancelled before completion; %w", call.Name, ErrToolTimeout))
	}
	if err != nil {
		return FailureResult(fmt.Errorf("tool '%s' failed: %w", call.Name, err))
	}
	return result
}

// formatResult renders a ToolResult as the text content of a tool
// message.
func formatResult(result ToolResult) string {
	if result.Error != nil {
		return "Error: " + result.Error.Error()
	}
	return result.Output
}

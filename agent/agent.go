// Bounded tool-calling loop.
//
// This is THE canonical implementation of the agent loop.
// All turn execution goes through this module.
//
// Information Hiding:
// - Loop state transitions hidden
// - Model communication hidden
// - Tool dispatch coordination hidden

package agent

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/llm"
	"github.com/warden-agent/warden/tools"
)

// Agent runs bounded turns against one model client and one tool
// dispatcher. The loop is strictly sequential: every tool result for a
// round-trip is appended before the next model request.
type Agent struct {
	config     Config
	client     *llm.Client
	dispatcher *tools.Dispatcher
	sink       audit.Sink
	session    string
	onText     func(string)
}

// New creates an agent over the client and dispatcher.
func New(config Config, client *llm.Client, dispatcher *tools.Dispatcher) *Agent {
	return &Agent{
		config:     config,
		client:     client,
		dispatcher: dispatcher,
		sink:       audit.NopSink{},
	}
}

// WithAudit routes termination and diagnostic events to the sink.
func (a *Agent) WithAudit(sink audit.Sink, session string) *Agent {
	a.sink = sink
	a.session = session
	return a
}

// WithProgress sets a callback receiving assistant text as each model
// response arrives, for interactive display. Nil disables it.
func (a *Agent) WithProgress(onText func(string)) *Agent {
	a.onText = onText
	return a
}

// Client returns the underlying model client.
func (a *Agent) Client() *llm.Client {
	return a.client
}

// RunTurn executes one conversational turn: send the conversation,
// dispatch any requested tools, repeat until the model stops asking or
// a bound is hit. history carries prior turns; pass nil to start fresh.
func (a *Agent) RunTurn(ctx context.Context, userText string, history []llm.ChatMessage) Result {
	start := time.Now()

	if a.config.WallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.WallClock)
		defer cancel()
	}

	conversation := history
	if len(conversation) == 0 && a.config.SystemPrompt != "" {
		conversation = append(conversation, llm.SystemMessage(a.config.SystemPrompt))
	}
	conversation = append(conversation, llm.UserMessage(userText))

	definitions := a.dispatcher.Registry().Definitions()
	maxIterations := a.config.maxIterations()

	var usage llm.TokenUsage
	var lastText string

	for iteration := 1; iteration <= maxIterations; iteration++ {
		// Cancellation takes effect before the next network call.
		if err := ctx.Err(); err != nil {
			return a.terminate(ctx, Result{
				Reason:       Failed,
				Err:          fmt.Errorf("turn cancelled: %w", err),
				FinalText:    lastText,
				Iterations:   iteration - 1,
				Conversation: conversation,
				Usage:        usage,
				Elapsed:      time.Since(start),
			})
		}

		reply, err := a.client.SendTurn(ctx, conversation, definitions)
		if err != nil {
			// Permanent or retries-exhausted network errors end the
			// turn; they are a distinct cause from the iteration cap.
			return a.terminate(ctx, Result{
				Reason:       Failed,
				Err:          fmt.Errorf("model request failed: %w", err),
				FinalText:    lastText,
				Iterations:   iteration - 1,
				Conversation: conversation,
				Usage:        usage,
				Elapsed:      time.Since(start),
			})
		}

		if reply.Usage != nil {
			usage.PromptTokens += reply.Usage.PromptTokens
			usage.CompletionTokens += reply.Usage.CompletionTokens
			usage.TotalTokens += reply.Usage.TotalTokens
		}

		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})
		if reply.Content != "" {
			lastText = reply.Content
			if a.onText != nil {
				a.onText(reply.Content)
			}
		}

		// Tool-call presence is authoritative; finish_reason is only
		// advisory, so disagreement is surfaced, not acted on.
		if reply.FinishIndicatesTools() != (len(reply.ToolCalls) > 0) {
			a.recordDiagnostic(ctx, reply, iteration)
		}

		if len(reply.ToolCalls) == 0 {
			return a.terminate(ctx, Result{
				Reason:       Completed,
				FinalText:    reply.Content,
				Iterations:   iteration,
				Conversation: conversation,
				Usage:        usage,
				Elapsed:      time.Since(start),
			})
		}

		// One result per call, order preserved. Local tool failures
		// travel inside the results; they never abort the loop.
		results := a.dispatcher.DispatchAll(ctx, reply.ToolCalls)
		conversation = append(conversation, results...)
	}

	// The final round-trip's tool results are already appended; the
	// history is complete up to the cap.
	return a.terminate(ctx, Result{
		Reason:       Exhausted,
		Err:          &IterationLimitError{Limit: maxIterations},
		FinalText:    lastText,
		Iterations:   maxIterations,
		Conversation: conversation,
		Usage:        usage,
		Elapsed:      time.Since(start),
	})
}

// terminate records the termination event and returns the result.
func (a *Agent) terminate(ctx context.Context, result Result) Result {
	ev := audit.New(audit.EventTermination, a.session)
	ev.Reason = result.Reason.String()
	ev.Detail = strconv.Itoa(result.Iterations) + " iterations"
	if result.Err != nil {
		ev.Detail += ": " + result.Err.Error()
	}
	a.sink.Record(ctx, ev)
	return result
}

// recordDiagnostic notes a finish_reason that disagrees with tool-call
// presence.
func (a *Agent) recordDiagnostic(ctx context.Context, reply llm.ModelReply, iteration int) {
	ev := audit.New(audit.EventDiagnostic, a.session)
	ev.Reason = fmt.Sprintf("finish_reason %q disagrees with %d tool calls", reply.FinishReason, len(reply.ToolCalls))
	ev.Detail = fmt.Sprintf("iteration %d", iteration)
	a.sink.Record(ctx, ev)
}

// Package agent drives the bounded tool-calling loop for one
// conversational turn.
//
// Contains the termination types shared by runners.
package agent

import (
	"fmt"
	"time"

	"github.com/warden-agent/warden/llm"
)

// TerminationReason says why a turn ended.
type TerminationReason int

const (
	// Completed means the model responded with no tool calls.
	Completed TerminationReason = iota
	// Exhausted means the iteration cap was reached while the model
	// still wanted tools. The conversation up to the cap is preserved.
	Exhausted
	// Failed means an unrecoverable error fetching a model response.
	Failed
)

// String returns the reason name.
func (r TerminationReason) String() string {
	switch r {
	case Completed:
		return "completed"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ExitCode maps the reason to a process exit code. Completed and the
// two abnormal ends stay distinguishable to callers and scripts.
func (r TerminationReason) ExitCode() int {
	switch r {
	case Completed:
		return 0
	case Exhausted:
		return 2
	default:
		return 1
	}
}

// IterationLimitError reports the configured cap when a turn ends
// Exhausted, with guidance instead of silent truncation.
type IterationLimitError struct {
	Limit int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf(
		"reached the maximum of %d iterations; raise the max-iterations setting or split the task into smaller steps",
		e.Limit,
	)
}

// Result is the outcome of one agent turn.
type Result struct {
	// Reason says how the turn terminated.
	Reason TerminationReason

	// FinalText is the model's last text content. For Exhausted turns
	// it holds whatever text accompanied the final tool request.
	FinalText string

	// Err is set for Failed turns (the network error) and Exhausted
	// turns (an IterationLimitError). Nil when Completed.
	Err error

	// Iterations is the number of model round-trips performed.
	Iterations int

	// Conversation is the full history including this turn, suitable
	// for feeding back into the next RunTurn call.
	Conversation []llm.ChatMessage

	// Usage is the cumulative token usage across all round-trips.
	Usage llm.TokenUsage

	// Elapsed is the wall-clock duration of the turn.
	Elapsed time.Duration
}

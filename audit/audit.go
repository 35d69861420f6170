// Package audit records security and lifecycle events emitted by the
// agent runtime: tool dispatches, denials, threat blocks, retries and
// terminations.
//
// Information Hiding:
// - Sink fan-out and failure handling hidden
// - Log formatting hidden behind the Sink interface
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType names the kind of event being recorded.
type EventType string

const (
	// EventDispatch records a tool call handed to a handler.
	EventDispatch EventType = "dispatch"
	// EventDenial records a path validation denial.
	EventDenial EventType = "denial"
	// EventThreatBlock records content blocked by the classifier.
	EventThreatBlock EventType = "threat_block"
	// EventApproval records a user approval decision.
	EventApproval EventType = "approval"
	// EventRetry records a transient network failure being retried.
	EventRetry EventType = "retry"
	// EventTermination records the end of an agent run.
	EventTermination EventType = "termination"
	// EventDiagnostic records advisory conditions, such as a model
	// finish reason disagreeing with the presence of tool calls.
	EventDiagnostic EventType = "diagnostic"
)

// Event is one audit record. Fields not relevant to the event type are
// left zero.
type Event struct {
	ID      string
	Time    time.Time
	Type    EventType
	Session string
	Tool    string
	Path    string
	Reason  string
	Detail  string
}

// Sink receives audit events. Implementations must be safe for
// concurrent use. Recording is best-effort: sinks swallow their own
// errors rather than failing the operation being audited.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// New builds an event with a fresh ID and timestamp.
func New(typ EventType, session string) Event {
	return Event{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Type:    typ,
		Session: session,
	}
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}

// SlogSink writes events through a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger; a nil logger uses slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Record(ctx context.Context, ev Event) {
	attrs := []slog.Attr{
		slog.String("event_id", ev.ID),
		slog.String("session", ev.Session),
	}
	if ev.Tool != "" {
		attrs = append(attrs, slog.String("tool", ev.Tool))
	}
	if ev.Path != "" {
		attrs = append(attrs, slog.String("path", ev.Path))
	}
	if ev.Reason != "" {
		attrs = append(attrs, slog.String("reason", ev.Reason))
	}
	if ev.Detail != "" {
		attrs = append(attrs, slog.String("detail", ev.Detail))
	}
	level := slog.LevelInfo
	switch ev.Type {
	case EventDenial, EventThreatBlock:
		level = slog.LevelWarn
	case EventRetry, EventDiagnostic:
		level = slog.LevelDebug
	}
	s.logger.LogAttrs(ctx, level, string(ev.Type), attrs...)
}

// MultiSink fans events out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Record(ctx, ev)
	}
}

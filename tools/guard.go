// Guard - the security boundary every tool crosses before touching
// the filesystem or running commands.
//
// Information Hiding:
// - Approval flow hidden behind a callback
// - Denial audit trail hidden
// - Threat screening policy hidden

package tools

import (
	"context"
	"fmt"

	"github.com/warden-agent/warden/audit"
	"github.com/warden-agent/warden/security"
)

// ApprovalDecision is the user's answer to an external access prompt.
type ApprovalDecision int

const (
	// ApprovalDeny refuses this access.
	ApprovalDeny ApprovalDecision = iota
	// ApprovalAllowOnce allows this access without remembering it.
	ApprovalAllowOnce
	// ApprovalTrustAlways allows and trusts the path for the session.
	ApprovalTrustAlways
)

// ApprovalFunc asks the user to approve external access to a path.
// Called synchronously from tool execution; implementations own the
// prompt UI.
type ApprovalFunc func(path string) ApprovalDecision

// Guard authorizes paths and screens content for every tool. One
// Guard is shared across the registry so all tools see the same
// session trust state.
type Guard struct {
	validator *security.Validator
	approve   ApprovalFunc
	sink      audit.Sink
	session   string

	// AllowSuspiciousOverride downgrades suspicious classifications
	// from block-pending-override to surface-and-proceed.
	AllowSuspiciousOverride bool
}

// NewGuard creates a guard over the validator. A nil approve func
// denies everything that needs approval.
func NewGuard(validator *security.Validator) *Guard {
	return &Guard{
		validator: validator,
		sink:      audit.NopSink{},
	}
}

// WithApproval sets the approval callback.
func (g *Guard) WithApproval(approve ApprovalFunc) *Guard {
	g.approve = approve
	return g
}

// WithAudit routes denial and approval events to the given sink.
func (g *Guard) WithAudit(sink audit.Sink, session string) *Guard {
	g.sink = sink
	g.session = session
	return g
}

// Validator returns the underlying validator.
func (g *Guard) Validator() *security.Validator {
	return g.validator
}

// Authorize validates a path and runs the approval flow when needed.
// Returns the canonical path on success. The error message tells the
// model a security decision was made, not a transient failure.
func (g *Guard) Authorize(ctx context.Context, tool, path string) (string, error) {
	decision := g.validator.Validate(path)

	switch decision.Kind {
	case security.DecisionInternal, security.DecisionExternalAllowed:
		return decision.Path, nil

	case security.DecisionExternalNeedsApproval:
		if g.approve == nil {
			g.recordDenial(ctx, tool, decision.Path, "external access requires approval and no approver is configured")
			return "", fmt.Errorf("access to '%s' requires approval and none is available (%w)", path, ErrSecurityDenied)
		}
		answer := g.approve(decision.Path)
		g.recordApproval(ctx, tool, decision.Path, answer)
		switch answer {
		case ApprovalAllowOnce:
			return decision.Path, nil
		case ApprovalTrustAlways:
			g.validator.Trust().Trust(decision.Path)
			return decision.Path, nil
		default:
			return "", fmt.Errorf("access to '%s' was denied by the user (%w)", path, ErrSecurityDenied)
		}

	default:
		g.recordDenial(ctx, tool, decision.Path, decision.Reason)
		return "", fmt.Errorf("access denied: %s (%w)", decision.Reason, ErrSecurityDenied)
	}
}

// Screen classifies text before it reaches a dangerous sink. Dangerous
// content is always refused; suspicious content is refused unless the
// override is set; warnings are surfaced in the audit trail and allowed.
func (g *Guard) Screen(ctx context.Context, tool, text string) error {
	level, reasons := security.Classify(text)

	switch {
	case level.Blocked():
		g.recordThreat(ctx, tool, level, reasons)
		return fmt.Errorf("content blocked as dangerous: %s (%w)", security.ReasonSummary(reasons), ErrSecurityDenied)
	case level.NeedsOverride():
		if g.AllowSuspiciousOverride {
			g.recordThreat(ctx, tool, level, reasons)
			return nil
		}
		g.recordThreat(ctx, tool, level, reasons)
		return fmt.Errorf("content blocked as suspicious, pending explicit override: %s (%w)", security.ReasonSummary(reasons), ErrSecurityDenied)
	case level == security.ThreatWarning:
		g.recordThreat(ctx, tool, level, reasons)
	}
	return nil
}

func (g *Guard) recordDenial(ctx context.Context, tool, path, reason string) {
	ev := audit.New(audit.EventDenial, g.session)
	ev.Tool = tool
	ev.Path = path
	ev.Reason = reason
	g.sink.Record(ctx, ev)
}

func (g *Guard) recordApproval(ctx context.Context, tool, path string, answer ApprovalDecision) {
	ev := audit.New(audit.EventApproval, g.session)
	ev.Tool = tool
	ev.Path = path
	switch answer {
	case ApprovalAllowOnce:
		ev.Detail = "allow-once"
	case ApprovalTrustAlways:
		ev.Detail = "trust-always"
	default:
		ev.Detail = "deny"
	}
	g.sink.Record(ctx, ev)
}

func (g *Guard) recordThreat(ctx context.Context, tool string, level security.ThreatLevel, reasons []security.ThreatReason) {
	typ := audit.EventDiagnostic
	if level.Blocked() || (level.NeedsOverride() && !g.AllowSuspiciousOverride) {
		typ = audit.EventThreatBlock
	}
	ev := audit.New(typ, g.session)
	ev.Tool = tool
	ev.Reason = security.ReasonSummary(reasons)
	ev.Detail = level.String()
	g.sink.Record(ctx, ev)
}

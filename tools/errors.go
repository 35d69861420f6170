package tools

import "errors"

// Sentinel errors for the failure modes a tool call can report. The
// dispatcher folds them into error results; callers holding the raw
// error can test with errors.Is.
var (
	// ErrSecurityDenied marks a deliberate refusal by the validator,
	// the approval flow or the content screen. Final for the request,
	// never retried.
	ErrSecurityDenied = errors.New("security decision")

	// ErrUnknownTool marks a call naming a tool outside the registry.
	ErrUnknownTool = errors.New("not in the available tool set")

	// ErrToolTimeout marks a call that exceeded the per-call deadline.
	ErrToolTimeout = errors.New("the operation was cancelled, not denied")
)

// Package security provides the access-control boundary for tool
// execution: path validation against trusted and allow-listed roots,
// and content threat classification.
//
// Information Hiding:
// - Path canonicalization rules hidden
// - Exclusion matching hidden
// - Session trust bookkeeping hidden behind one synchronized entry point
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Policy is the immutable per-session security configuration.
type Policy struct {
	// TrustedRoots are directories with unrestricted tool access.
	TrustedRoots []string
	// ExternalAllowedRoots are directories outside the trusted roots
	// that tools may touch, subject to exclusion and approval.
	ExternalAllowedRoots []string
	// ExcludedPatterns deny matching paths even inside allowed roots.
	// Each pattern is matched against the path's base name and against
	// every path segment with filepath.Match semantics.
	ExcludedPatterns []string
	// RequireApproval gates external access behind a user decision.
	RequireApproval bool
}

// DefaultExcludedPatterns covers secrets and credentials that no tool
// should read even from an allow-listed directory.
func DefaultExcludedPatterns() []string {
	return []string{
		".ssh",
		".gnupg",
		".aws",
		".env",
		".env.*",
		"*.pem",
		"*.key",
		"id_rsa",
		"id_ed25519",
		"credentials",
		"*.keystore",
	}
}

// DecisionKind enumerates validation outcomes.
type DecisionKind int

const (
	// DecisionDenied blocks access outright.
	DecisionDenied DecisionKind = iota
	// DecisionInternal allows access without further checks.
	DecisionInternal
	// DecisionExternalAllowed allows access to an external path.
	DecisionExternalAllowed
	// DecisionExternalNeedsApproval requires a user decision first.
	DecisionExternalNeedsApproval
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionInternal:
		return "internal"
	case DecisionExternalAllowed:
		return "external-allowed"
	case DecisionExternalNeedsApproval:
		return "external-needs-approval"
	default:
		return "denied"
	}
}

// AccessDecision is the result of validating one path. Derived, never
// persisted.
type AccessDecision struct {
	Kind DecisionKind
	// Path is the canonical path the decision applies to (empty for
	// unresolvable paths).
	Path string
	// Reason explains a denial in user-facing terms.
	Reason string
}

// Allowed reports whether a handler may proceed without approval.
func (d AccessDecision) Allowed() bool {
	return d.Kind == DecisionInternal || d.Kind == DecisionExternalAllowed
}

// SessionTrust is the grow-only set of externally approved paths for
// one session. All mutation goes through Trust; concurrent sessions
// each own their instance, concurrent tools within a session share it.
type SessionTrust struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewSessionTrust creates an empty trust set.
func NewSessionTrust() *SessionTrust {
	return &SessionTrust{paths: make(map[string]struct{})}
}

// Trust adds a canonical path to the session trust set.
func (s *SessionTrust) Trust(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path] = struct{}{}
}

// Trusted reports whether the path was approved earlier this session.
func (s *SessionTrust) Trusted(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of trusted paths.
func (s *SessionTrust) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// Validator decides access for filesystem paths. The Validator itself
// is pure: the only mutable state it consults is the SessionTrust
// handle passed in at construction.
type Validator struct {
	policy  Policy
	workdir string
	trust   *SessionTrust
}

// NewValidator creates a validator. Relative paths resolve against
// workdir; an empty workdir uses the process working directory.
func NewValidator(policy Policy, workdir string, trust *SessionTrust) *Validator {
	if workdir == "" {
		if wd, err := os.Getwd(); err == nil {
			workdir = wd
		} else {
			workdir = "."
		}
	}
	if trust == nil {
		trust = NewSessionTrust()
	}
	return &Validator{policy: policy, workdir: workdir, trust: trust}
}

// Policy returns the validator's policy snapshot.
func (v *Validator) Policy() Policy { return v.policy }

// Trust returns the session trust handle, the one synchronized entry
// point for recording Trust-always approvals.
func (v *Validator) Trust() *SessionTrust { return v.trust }

// Resolve canonicalizes a path: absolute against workdir, symlinks and
// dot segments resolved. For paths that do not exist yet the parent is
// resolved and the final element re-joined, so writes to new files
// validate against the real target directory.
func (v *Validator) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(v.workdir, abs)
	}
	abs = filepath.Clean(abs)

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}

	parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return "", fmt.Errorf("unresolvable path %q: %w", path, err)
	}
	return filepath.Join(parent, filepath.Base(abs)), nil
}

// Validate decides access for path. Precedence: canonicalization
// failure, trusted roots, exclusion patterns, external allow-list,
// approval state. Exclusion is checked before the external allow-list
// so an excluded file is denied even inside an allowed root.
func (v *Validator) Validate(path string) AccessDecision {
	resolved, err := v.Resolve(path)
	if err != nil {
		return AccessDecision{Kind: DecisionDenied, Reason: fmt.Sprintf("unresolvable path: %v", err)}
	}

	if _, ok := underAny(resolved, v.policy.TrustedRoots); ok {
		return AccessDecision{Kind: DecisionInternal, Path: resolved}
	}

	if pattern, ok := v.matchExcluded(resolved); ok {
		return AccessDecision{
			Kind:   DecisionDenied,
			Path:   resolved,
			Reason: fmt.Sprintf("path matches excluded pattern %q (security decision)", pattern),
		}
	}

	if _, ok := underAny(resolved, v.policy.ExternalAllowedRoots); !ok {
		return AccessDecision{
			Kind:   DecisionDenied,
			Path:   resolved,
			Reason: "path is not in a trusted directory or allowed external path (security decision)",
		}
	}

	if !v.policy.RequireApproval || v.trust.Trusted(resolved) {
		return AccessDecision{Kind: DecisionExternalAllowed, Path: resolved}
	}
	return AccessDecision{Kind: DecisionExternalNeedsApproval, Path: resolved}
}

// matchExcluded tests every path segment and the full path against the
// exclusion patterns.
func (v *Validator) matchExcluded(resolved string) (string, bool) {
	segments := strings.Split(resolved, string(filepath.Separator))
	for _, pattern := range v.policy.ExcludedPatterns {
		if ok, err := filepath.Match(pattern, resolved); err == nil && ok {
			return pattern, true
		}
		for _, seg := range segments {
			if seg == "" {
				continue
			}
			if ok, err := filepath.Match(pattern, seg); err == nil && ok {
				return pattern, true
			}
		}
	}
	return "", false
}

// underAny reports whether path is inside (or is) any of the roots.
// Roots are canonicalized best-effort at comparison time.
func underAny(path string, roots []string) (string, bool) {
	for _, root := range roots {
		canonical := root
		if r, err := filepath.EvalSymlinks(root); err == nil {
			canonical = r
		}
		canonical = filepath.Clean(canonical)
		if path == canonical {
			return root, true
		}
		if strings.HasPrefix(path, canonical+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

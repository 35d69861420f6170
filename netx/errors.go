// Package netx provides the network resilience layer: failure
// classification, bounded retry with backoff, and rate limiting.
//
// Information Hiding:
// - Error classification heuristics hidden
// - Backoff algorithm hidden
// - Rate window bookkeeping hidden
package netx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// FailureKind identifies the class of a network failure.
type FailureKind string

const (
	KindTimeout     FailureKind = "timeout"
	KindConnReset   FailureKind = "connection-reset"
	KindConnRefused FailureKind = "connection-refused"
	KindDNS         FailureKind = "dns"
	KindServer      FailureKind = "server-error"
	KindRateLimited FailureKind = "rate-limited"
	KindBadRequest  FailureKind = "bad-request"
	KindAuth        FailureKind = "authentication"
	KindUnknown     FailureKind = "unknown"
)

// TransientError marks a failure that is worth retrying.
type TransientError struct {
	Kind FailureKind
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient network failure (%s): %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Kind FailureKind
	Err  error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent network failure (%s): %v", e.Kind, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every retry attempt failed.
// It wraps the last transient error observed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// HTTPError carries an HTTP status extracted from a provider SDK error.
// Providers wrap SDK errors in HTTPError so classification does not have
// to parse error strings for status codes.
type HTTPError struct {
	Status int
	Err    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %v", e.Status, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError wraps err with its HTTP status.
func NewHTTPError(status int, err error) *HTTPError {
	return &HTTPError{Status: status, Err: err}
}

// Substring patterns indicating transient link failures. Kept broad on
// purpose: unstable links (satellite, cellular) surface errors in many
// shapes and a spurious retry is cheaper than a dropped turn.
var transientPatterns = []struct {
	needle string
	kind   FailureKind
}{
	{"connection reset", KindConnReset},
	{"broken pipe", KindConnReset},
	{"connection refused", KindConnRefused},
	{"connection dropped", KindConnReset},
	{"network unreachable", KindConnReset},
	{"no route to host", KindConnReset},
	{"host is unreachable", KindConnReset},
	{"network is down", KindConnReset},
	{"timeout", KindTimeout},
	{"timed out", KindTimeout},
	{"dns", KindDNS},
	{"no such host", KindDNS},
	{"temporary failure in name resolution", KindDNS},
	{"service unavailable", KindServer},
	{"currently unavailable", KindServer},
	{"the model did not respond", KindServer},
}

// Retryable HTTP statuses: standard gateway errors plus the Cloudflare
// 52x family seen on flaky origin links.
var transientStatuses = map[int]bool{
	502: true, 503: true, 504: true,
	520: true, 521: true, 522: true, 523: true, 524: true,
}

// Classify wraps err as TransientError or PermanentError.
//
// Transient: timeouts, resets, refused connections, DNS failures,
// 429, 502/503/504 and 520-524. Permanent: every other 4xx, malformed
// requests, and anything unrecognized. Context cancellation is passed
// through untouched so callers can distinguish it from network faults.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var already *TransientError
	var alreadyPerm *PermanentError
	if errors.As(err, &already) || errors.As(err, &alreadyPerm) {
		return err
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 429:
			return &TransientError{Kind: KindRateLimited, Err: err}
		case transientStatuses[httpErr.Status]:
			return &TransientError{Kind: KindServer, Err: err}
		case httpErr.Status == 401 || httpErr.Status == 403:
			return &PermanentError{Kind: KindAuth, Err: err}
		case httpErr.Status >= 400 && httpErr.Status < 500:
			return &PermanentError{Kind: KindBadRequest, Err: err}
		case httpErr.Status >= 500:
			return &TransientError{Kind: KindServer, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Kind: KindTimeout, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &TransientError{Kind: KindDNS, Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &TransientError{Kind: KindConnReset, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &TransientError{Kind: KindConnRefused, Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p.needle) {
			return &TransientError{Kind: p.kind, Err: err}
		}
	}

	return &PermanentError{Kind: KindUnknown, Err: err}
}

// IsTransient reports whether err classifies as retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(Classify(err), &t)
}

// IsRateLimited reports whether err is a 429-class failure.
func IsRateLimited(err error) bool {
	var t *TransientError
	if errors.As(Classify(err), &t) {
		return t.Kind == KindRateLimited
	}
	return false
}

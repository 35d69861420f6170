package netx

import (
	"context"
	"sync"
	"time"
)

// UsageTotals holds cumulative usage counters for the session.
type UsageTotals struct {
	Requests     uint64
	InputTokens  uint64
	OutputTokens uint64
}

type windowEntry struct {
	at     time.Time
	tokens int
}

// RateLimiter enforces request and token ceilings over a sliding window.
//
// The mutex guards the window slice only; Acquire sleeps with the lock
// released so one pacing wait never stalls other sessions sharing the
// limiter.
type RateLimiter struct {
	mu           sync.Mutex
	window       time.Duration
	maxRequests  int
	maxTokens    int
	entries      []windowEntry
	penaltyUntil time.Time
	totals       UsageTotals

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter with a 60 second sliding window.
// Ceilings of zero or below disable the corresponding check.
func NewRateLimiter(maxRequestsPerMinute, maxTokensPerMinute int) *RateLimiter {
	return &RateLimiter{
		window:      time.Minute,
		maxRequests: maxRequestsPerMinute,
		maxTokens:   maxTokensPerMinute,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire blocks until admitting a request of estimatedTokens would not
// exceed the window ceilings, then records the admission. Waits end when
// the oldest window entry expires; the headroom check then reruns.
func (l *RateLimiter) Acquire(ctx context.Context, estimatedTokens int) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)

		wait := l.waitFor(now, estimatedTokens)
		if wait <= 0 {
			l.entries = append(l.entries, windowEntry{at: now, tokens: estimatedTokens})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// waitFor returns how long to wait before the request fits, or <= 0 if
// it fits now. Caller holds the mutex.
func (l *RateLimiter) waitFor(now time.Time, estimatedTokens int) time.Duration {
	if until := l.penaltyUntil.Sub(now); until > 0 {
		return until
	}

	overRequests := l.maxRequests > 0 && len(l.entries) >= l.maxRequests
	tokensInWindow := 0
	for _, e := range l.entries {
		tokensInWindow += e.tokens
	}
	overTokens := l.maxTokens > 0 && tokensInWindow+estimatedTokens > l.maxTokens

	if !overRequests && !overTokens {
		return 0
	}
	if len(l.entries) == 0 {
		// A single request larger than the token ceiling can never be
		// admitted; let it through rather than sleeping forever.
		return 0
	}
	return l.entries[0].at.Add(l.window).Sub(now)
}

func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.entries) && !l.entries[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		l.entries = append(l.entries[:0], l.entries[i:]...)
	}
}

// Record updates the admitted entry with actual usage after a response
// arrives. The estimate stays in the window; Record only adjusts totals
// and replaces the newest entry's token count when the estimate was low.
func (l *RateLimiter) Record(inputTokens, outputTokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.totals.Requests++
	l.totals.InputTokens += uint64(inputTokens)
	l.totals.OutputTokens += uint64(outputTokens)

	actual := inputTokens + outputTokens
	if n := len(l.entries); n > 0 && actual > l.entries[n-1].tokens {
		l.entries[n-1].tokens = actual
	}
}

// Penalize tightens the next pacing decision after a 429: no request is
// admitted until the hold expires, on top of the usual window checks.
func (l *RateLimiter) Penalize(hold time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(hold)
	if until.After(l.penaltyUntil) {
		l.penaltyUntil = until
	}
}

// Totals returns a snapshot of cumulative usage.
func (l *RateLimiter) Totals() UsageTotals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals
}

// InWindow returns the current request and token counts in the window.
func (l *RateLimiter) InWindow() (requests, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	for _, e := range l.entries {
		tokens += e.tokens
	}
	return len(l.entries), tokens
}

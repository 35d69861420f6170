package netx

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultMaxRetries bounds attempts for one logical operation.
	DefaultMaxRetries = 3
	// DefaultBaseDelay seeds the exponential backoff.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the exponential term.
	DefaultMaxDelay = 60 * time.Second
	// maxJitter is added uniformly to every backoff delay.
	maxJitter = 1000 * time.Millisecond
	// ratePenaltyHold is how long a 429 blocks further admissions.
	ratePenaltyHold = 5 * time.Second
)

// Retrier runs operations with bounded retry, exponential backoff with
// jitter, and optional rate-limiter pacing before each attempt.
// Attempts for one operation are strictly sequential.
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Limiter    *RateLimiter

	// OnRetry is called before each backoff sleep, for audit.
	OnRetry func(attempt int, err error, delay time.Duration)

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewRetrier creates a retrier with default backoff constants.
func NewRetrier(maxRetries int) *Retrier {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Retrier{
		MaxRetries: maxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		sleep:      sleepCtx,
		jitter:     func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) },
	}
}

// WithLimiter attaches a rate limiter consulted before every attempt.
func (r *Retrier) WithLimiter(l *RateLimiter) *Retrier {
	r.Limiter = l
	return r
}

// WithBackoff overrides the backoff constants.
func (r *Retrier) WithBackoff(base, max time.Duration) *Retrier {
	r.BaseDelay = base
	r.MaxDelay = max
	return r
}

// Backoff returns the delay before retrying after failed attempt k
// (1-indexed): min(maxDelay, base * 2^(k-1)) plus uniform jitter.
func (r *Retrier) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := r.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.MaxDelay {
			delay = r.MaxDelay
			break
		}
	}
	return delay + r.jitter()
}

// Do runs op until it succeeds, fails permanently, or retries are
// exhausted. estimatedTokens is handed to the rate limiter before each
// attempt. The error returned for exhaustion wraps the last transient
// failure.
func (r *Retrier) Do(ctx context.Context, estimatedTokens int, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Limiter != nil {
			if err := r.Limiter.Acquire(ctx, estimatedTokens); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		classified := Classify(err)
		var transient *TransientError
		if !asTransient(classified, &transient) {
			return classified
		}
		if transient.Kind == KindRateLimited && r.Limiter != nil {
			r.Limiter.Penalize(ratePenaltyHold)
		}
		lastErr = classified

		if attempt == r.MaxRetries {
			break
		}
		delay := r.Backoff(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, classified, delay)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: r.MaxRetries, Last: lastErr}
}

func asTransient(err error, target **TransientError) bool {
	t, ok := err.(*TransientError)
	if ok {
		*target = t
	}
	return ok
}

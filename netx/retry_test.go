package netx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetrier(maxRetries int) (*Retrier, *[]time.Duration) {
	slept := []time.Duration{}
	r := NewRetrier(maxRetries)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	r.jitter = func() time.Duration { return 0 }
	return r, &slept
}

func TestClassifyTransient(t *testing.T) {
	cases := []struct {
		err  error
		kind FailureKind
	}{
		{errors.New("connection reset by peer"), KindConnReset},
		{errors.New("dial tcp: connection refused"), KindConnRefused},
		{errors.New("request timed out"), KindTimeout},
		{errors.New("temporary failure in name resolution"), KindDNS},
		{NewHTTPError(502, errors.New("bad gateway")), KindServer},
		{NewHTTPError(503, errors.New("service unavailable")), KindServer},
		{NewHTTPError(504, errors.New("gateway timeout")), KindServer},
		{NewHTTPError(522, errors.New("connection timed out")), KindServer},
		{NewHTTPError(429, errors.New("too many requests")), KindRateLimited},
	}
	for _, tc := range cases {
		classified := Classify(tc.err)
		var transient *TransientError
		require.True(t, errors.As(classified, &transient), "expected transient: %v", tc.err)
		assert.Equal(t, tc.kind, transient.Kind)
	}
}

func TestClassifyPermanent(t *testing.T) {
	cases := []error{
		NewHTTPError(400, errors.New("invalid request")),
		NewHTTPError(401, errors.New("invalid api key")),
		NewHTTPError(404, errors.New("model not found")),
		errors.New("json parse failure"),
	}
	for _, err := range cases {
		var perm *PermanentError
		require.True(t, errors.As(Classify(err), &perm), "expected permanent: %v", err)
	}
}

func TestClassifyPassesThroughContextErrors(t *testing.T) {
	assert.Equal(t, context.Canceled, Classify(context.Canceled))
	assert.Equal(t, context.DeadlineExceeded, Classify(context.DeadlineExceeded))
}

func TestBackoffBounds(t *testing.T) {
	r := NewRetrier(5).WithBackoff(1*time.Second, 60*time.Second)

	for k := 1; k <= 6; k++ {
		lower := time.Duration(1<<uint(k-1)) * time.Second
		if lower > 60*time.Second {
			lower = 60 * time.Second
		}
		got := r.Backoff(k)
		assert.GreaterOrEqual(t, got, lower, "attempt %d", k)
		assert.Less(t, got, lower+1001*time.Millisecond, "attempt %d", k)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	r, slept := newTestRetrier(5)

	calls := 0
	err := r.Do(context.Background(), 0, func(ctx context.Context) error {
		calls++
		if calls <= 3 {
			return fmt.Errorf("attempt %d: connection reset", calls)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	// Backoff after each of the three failed attempts, zero jitter.
	require.Len(t, *slept, 3)
	assert.Equal(t, 1*time.Second, (*slept)[0])
	assert.Equal(t, 2*time.Second, (*slept)[1])
	assert.Equal(t, 4*time.Second, (*slept)[2])
}

func TestDoStopsOnPermanent(t *testing.T) {
	r, slept := newTestRetrier(5)

	calls := 0
	err := r.Do(context.Background(), 0, func(ctx context.Context) error {
		calls++
		return NewHTTPError(400, errors.New("malformed"))
	})

	var perm *PermanentError
	require.True(t, errors.As(err, &perm))
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDoExhaustsRetries(t *testing.T) {
	r, _ := newTestRetrier(3)

	calls := 0
	err := r.Do(context.Background(), 0, func(ctx context.Context) error {
		calls++
		return errors.New("connection reset by peer")
	})

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, calls)

	var transient *TransientError
	assert.True(t, errors.As(exhausted.Last, &transient))
}

func TestDoRateLimitedPenalizesLimiter(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	base := time.Unix(1000, 0)
	now := base
	limiter.now = func() time.Time { return now }
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}

	r, _ := newTestRetrier(2)
	r.Limiter = limiter

	calls := 0
	err := r.Do(context.Background(), 10, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return NewHTTPError(429, errors.New("too many requests"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	// The 429 set a pacing hold; the second Acquire had to wait it out.
	assert.True(t, now.After(base))
}

func TestDoObservesCancellation(t *testing.T) {
	r, _ := newTestRetrier(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Do(ctx, 0, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

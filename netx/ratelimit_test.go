package netx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a limiter deterministically: sleeps advance time.
func fakeClock(l *RateLimiter, start time.Time) *time.Time {
	now := start
	l.now = func() time.Time { return now }
	l.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	return &now
}

func TestAcquireWithinCeilings(t *testing.T) {
	l := NewRateLimiter(3, 1000)
	start := time.Unix(0, 0)
	now := fakeClock(l, start)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background(), 100))
	}

	requests, tokens := l.InWindow()
	assert.Equal(t, 3, requests)
	assert.Equal(t, 300, tokens)
	assert.Equal(t, start, *now, "no waiting expected under the ceilings")
}

func TestAcquireWaitsForOldestExpiry(t *testing.T) {
	l := NewRateLimiter(2, 0)
	start := time.Unix(0, 0)
	now := fakeClock(l, start)

	require.NoError(t, l.Acquire(context.Background(), 10))
	require.NoError(t, l.Acquire(context.Background(), 10))

	// Third request exceeds the request ceiling; it must wait until the
	// first entry leaves the 60s window.
	require.NoError(t, l.Acquire(context.Background(), 10))
	assert.Equal(t, start.Add(time.Minute), *now)

	requests, _ := l.InWindow()
	assert.Equal(t, 1, requests)
}

func TestAcquireTokenCeiling(t *testing.T) {
	l := NewRateLimiter(0, 100)
	start := time.Unix(0, 0)
	now := fakeClock(l, start)

	require.NoError(t, l.Acquire(context.Background(), 60))
	require.NoError(t, l.Acquire(context.Background(), 40))

	// 60+40 fills the token budget; the next request waits a full window.
	require.NoError(t, l.Acquire(context.Background(), 1))
	assert.Equal(t, start.Add(time.Minute), *now)
}

func TestOversizedRequestAdmittedAlone(t *testing.T) {
	l := NewRateLimiter(0, 100)
	start := time.Unix(0, 0)
	now := fakeClock(l, start)

	// Larger than the ceiling on an empty window: admitted rather than
	// blocking forever.
	require.NoError(t, l.Acquire(context.Background(), 500))
	assert.Equal(t, start, *now)
}

func TestPenalizeDelaysNextAcquire(t *testing.T) {
	l := NewRateLimiter(0, 0)
	start := time.Unix(0, 0)
	now := fakeClock(l, start)

	l.Penalize(5 * time.Second)
	require.NoError(t, l.Acquire(context.Background(), 1))
	assert.Equal(t, start.Add(5*time.Second), *now)
}

func TestAcquireCancellation(t *testing.T) {
	l := NewRateLimiter(1, 0)
	fakeClock(l, time.Unix(0, 0))
	l.sleep = sleepCtx // real sleep so cancellation matters

	require.NoError(t, l.Acquire(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecordTracksTotals(t *testing.T) {
	l := NewRateLimiter(0, 0)
	fakeClock(l, time.Unix(0, 0))

	require.NoError(t, l.Acquire(context.Background(), 10))
	l.Record(100, 50)
	require.NoError(t, l.Acquire(context.Background(), 10))
	l.Record(200, 25)

	totals := l.Totals()
	assert.Equal(t, uint64(2), totals.Requests)
	assert.Equal(t, uint64(300), totals.InputTokens)
	assert.Equal(t, uint64(75), totals.OutputTokens)
}

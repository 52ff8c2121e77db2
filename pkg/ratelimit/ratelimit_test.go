package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsUpToMaxThenDenies(t *testing.T) {
	l := New(time.Minute, 2, time.Hour)
	defer l.Stop()

	r1 := l.Allow("client-a")
	r2 := l.Allow("client-a")
	r3 := l.Allow("client-a")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
	require.False(t, r3.Allowed)
	assert.Equal(t, 0, r3.Remaining)
	assert.Greater(t, r3.RetryAfterSeconds, 0)
}

func TestLimiter_BucketsAreIndependentPerIdentifier(t *testing.T) {
	l := New(time.Minute, 1, time.Hour)
	defer l.Stop()

	a1 := l.Allow("a")
	b1 := l.Allow("b")

	assert.True(t, a1.Allowed)
	assert.True(t, b1.Allowed)
}

func TestLimiter_SweepEvictsIdleBuckets(t *testing.T) {
	l := New(time.Minute, 1, 10*time.Millisecond)
	defer l.Stop()

	l.Allow("client-a")
	time.Sleep(50 * time.Millisecond)

	l.mu.Lock()
	_, exists := l.buckets["client-a"]
	l.mu.Unlock()
	assert.False(t, exists, "an idle bucket must be reclaimed by the sweep")
}

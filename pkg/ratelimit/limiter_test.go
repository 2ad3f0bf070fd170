package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tb := NewTokenBucket(3, time.Minute)
	tb.now = func() time.Time { return current }
	tb.lastRefill = current

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d should be available", i+1)
	}
	assert.False(t, tb.Allow(), "bucket should be exhausted")

	current = current.Add(time.Minute)
	assert.True(t, tb.Allow(), "bucket should refill after the period")

	tb.tokens = 0
	tb.Reset()
	assert.Equal(t, tb.capacity, tb.tokens)
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketWaitReturnsWhenTokenAvailable(t *testing.T) {
	tb := NewTokenBucket(2, time.Hour)
	assert.NoError(t, tb.Wait(context.Background()))
	assert.NoError(t, tb.Wait(context.Background()))
	assert.False(t, tb.Allow())
}

func TestNewTokenBucketClampsCapacity(t *testing.T) {
	tb := NewTokenBucket(0, time.Second)
	assert.Equal(t, 1, tb.capacity)
}

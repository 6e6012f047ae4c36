package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grimm.is/lanbridge/internal/clock"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *clock.MockClock) {
	mock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewLimiter(limit, window, WithClock(mock)), mock
}

func TestLimiter_Allow_Basic(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("test-key")
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, _ := l.Allow("test-key")
	assert.False(t, ok, "4th request should be denied (over limit)")
}

func TestLimiter_Allow_DifferentKeys(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	ok, _ := l.Allow("key1")
	assert.True(t, ok)
	ok, _ = l.Allow("key2")
	assert.True(t, ok, "keys have independent limits")
	ok, _ = l.Allow("key1")
	assert.False(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_WindowReportsSuppressed(t *testing.T) {
	l, mock := newTestLimiter(2, time.Minute)

	for i := 0; i < 5; i++ {
		l.Allow("peer")
	}

	mock.Advance(time.Minute)
	ok, suppressed := l.Allow("peer")
	assert.True(t, ok)
	assert.Equal(t, 3, suppressed)

	ok, suppressed = l.Allow("peer")
	assert.True(t, ok)
	assert.Zero(t, suppressed, "the count is reported once")
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow("key")
	ok, _ := l.Allow("key")
	assert.False(t, ok)

	l.Reset("key")
	ok, _ = l.Allow("key")
	assert.True(t, ok)
}

func TestLimiter_CleanupExpired(t *testing.T) {
	l, mock := newTestLimiter(1, time.Minute)

	l.Allow("old")
	mock.Advance(10 * time.Minute)
	l.Allow("fresh")

	l.CleanupExpired(5 * time.Minute)
	assert.Equal(t, 1, l.Len())

	ok, _ := l.Allow("old")
	assert.True(t, ok, "forgotten keys start a new window")
}

func TestLimiter_RunCleanupStops(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		l.RunCleanup(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

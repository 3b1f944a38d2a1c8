package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chirp-labs/chirp/internal/domain"
)

func newClockedLimiter(window time.Duration, max int) (*RateLimiter, *time.Time) {
	l := NewRateLimiter(window, max)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	l, _ := newClockedLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Begin("bot-1", "sess-1"))
		l.End("bot-1", "sess-1")
	}

	assert.ErrorIs(t, l.Begin("bot-1", "sess-1"), domain.ErrSessionThrottled)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	l, now := newClockedLimiter(time.Minute, 2)

	require.NoError(t, l.Begin("bot-1", "sess-1"))
	l.End("bot-1", "sess-1")
	require.NoError(t, l.Begin("bot-1", "sess-1"))
	l.End("bot-1", "sess-1")
	assert.ErrorIs(t, l.Begin("bot-1", "sess-1"), domain.ErrSessionThrottled)

	*now = now.Add(61 * time.Second)
	assert.NoError(t, l.Begin("bot-1", "sess-1"))
}

func TestRateLimiter_OneInFlightPerSession(t *testing.T) {
	l, _ := newClockedLimiter(time.Minute, 10)

	require.NoError(t, l.Begin("bot-1", "sess-1"))
	assert.ErrorIs(t, l.Begin("bot-1", "sess-1"), domain.ErrSessionBusy)

	l.End("bot-1", "sess-1")
	assert.NoError(t, l.Begin("bot-1", "sess-1"))
}

func TestRateLimiter_SessionsAreIndependent(t *testing.T) {
	l, _ := newClockedLimiter(time.Minute, 1)

	require.NoError(t, l.Begin("bot-1", "sess-1"))
	assert.NoError(t, l.Begin("bot-1", "sess-2"))
	assert.NoError(t, l.Begin("bot-2", "sess-1"))
}

func TestRateLimiter_ThrottledAttemptNotCounted(t *testing.T) {
	l, now := newClockedLimiter(time.Minute, 1)

	require.NoError(t, l.Begin("bot-1", "sess-1"))
	l.End("bot-1", "sess-1")

	// Rejected attempts must not extend the window.
	assert.ErrorIs(t, l.Begin("bot-1", "sess-1"), domain.ErrSessionThrottled)

	*now = now.Add(61 * time.Second)
	assert.NoError(t, l.Begin("bot-1", "sess-1"))
}

func TestRateLimiter_Prune(t *testing.T) {
	l, now := newClockedLimiter(time.Minute, 5)

	require.NoError(t, l.Begin("bot-1", "sess-1"))
	l.End("bot-1", "sess-1")
	require.NoError(t, l.Begin("bot-1", "sess-2"))
	l.End("bot-1", "sess-2")

	assert.Equal(t, 0, l.Prune())

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, l.Prune())
	assert.Empty(t, l.history)
}

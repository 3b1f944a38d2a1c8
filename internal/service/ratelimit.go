package service

import (
	"sync"
	"time"

	"github.com/chirp-labs/chirp/internal/domain"
)

const (
	// DefaultSessionWindow is the sliding window for per-session throttling.
	DefaultSessionWindow = 60 * time.Second
	// DefaultSessionMaxMessages is how many messages a session may send per window.
	DefaultSessionMaxMessages = 10
)

// RateLimiter enforces the per-session sliding window and the one-request-
// at-a-time rule. State is in-memory; a restart forgives the window, which
// is acceptable for throttling.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	history  map[string][]time.Time
	inflight map[string]struct{}
	now      func() time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	if window <= 0 {
		window = DefaultSessionWindow
	}
	if max <= 0 {
		max = DefaultSessionMaxMessages
	}
	return &RateLimiter{
		window:   window,
		max:      max,
		history:  make(map[string][]time.Time),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
}

func sessionKey(botID, sessionID string) string {
	return botID + "\x00" + sessionID
}

// Begin admits one message for a session: rejects when a request is already
// in flight for it or when the sliding window is full. An admitted message
// is counted immediately and must be paired with End.
func (l *RateLimiter) Begin(botID, sessionID string) error {
	key := sessionKey(botID, sessionID)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.inflight[key]; busy {
		return domain.ErrSessionBusy
	}

	recent := pruneWindow(l.history[key], now.Add(-l.window))
	if len(recent) >= l.max {
		l.history[key] = recent
		return domain.ErrSessionThrottled
	}

	l.history[key] = append(recent, now)
	l.inflight[key] = struct{}{}
	return nil
}

// End releases the in-flight slot taken by Begin.
func (l *RateLimiter) End(botID, sessionID string) {
	key := sessionKey(botID, sessionID)

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inflight, key)
}

// Prune drops sessions whose whole window has aged out. Called periodically
// so idle sessions do not accumulate.
func (l *RateLimiter) Prune() int {
	cutoff := l.now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, stamps := range l.history {
		recent := pruneWindow(stamps, cutoff)
		if len(recent) == 0 {
			delete(l.history, key)
			removed++
			continue
		}
		l.history[key] = recent
	}
	return removed
}

func pruneWindow(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

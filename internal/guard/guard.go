// Package guard applies submission-side limits before work reaches the engine.
package guard

import (
	"sync"
	"time"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// Guard enforces a per-ticket sliding window rate limit on API calls.
type Guard struct {
	RateLimitPerMinute int

	mu         sync.Mutex
	rateCounts map[string]*rateBucket
}

type rateBucket struct {
	count       int
	windowStart int64
}

// NewGuard creates a Guard with the given per-minute limit.
func NewGuard(rateLimitPerMinute int) *Guard {
	return &Guard{
		RateLimitPerMinute: rateLimitPerMinute,
		rateCounts:         make(map[string]*rateBucket),
	}
}

// CheckRateLimit enforces a per-ticket sliding window rate limit.
// The window is 60 seconds. If the count exceeds the configured limit,
// ErrRateLimitExceeded is returned.
func (g *Guard) CheckRateLimit(ticketID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().Unix()
	bucket, ok := g.rateCounts[ticketID]
	if !ok {
		g.rateCounts[ticketID] = &rateBucket{count: 1, windowStart: now}
		return nil
	}

	if now-bucket.windowStart > 60 {
		bucket.count = 1
		bucket.windowStart = now
		return nil
	}

	if bucket.count >= g.RateLimitPerMinute {
		return domain.ErrRateLimitExceeded
	}

	bucket.count++
	return nil
}

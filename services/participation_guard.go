package services

import (
	"sync"
	"time"
)

// ParticipationGuard tracks each user's most recent successful queue join and
// enforces the one-active-participation cooldown across all queues. State is
// in-memory and best-effort: it does not survive restarts, but it is safe for
// concurrent use from every request goroutine.
type ParticipationGuard struct {
	mu       sync.RWMutex
	joins    map[string]time.Time
	cooldown time.Duration
}

func NewParticipationGuard(cooldown time.Duration) *ParticipationGuard {
	return &ParticipationGuard{
		joins:    make(map[string]time.Time),
		cooldown: cooldown,
	}
}

// RecordJoin stamps the user's latest successful join.
func (g *ParticipationGuard) RecordJoin(userID string, at time.Time) {
	g.mu.Lock()
	g.joins[userID] = at
	g.mu.Unlock()
}

// CanJoin reports whether the user may join a queue: no recorded join, or the
// cooldown window has elapsed since the last one.
func (g *ParticipationGuard) CanJoin(userID string) bool {
	g.mu.RLock()
	lastJoin, ok := g.joins[userID]
	g.mu.RUnlock()

	if !ok {
		return true
	}
	return time.Since(lastJoin) >= g.cooldown
}

// Release clears the user's record, typically when their token completes or
// is cancelled.
func (g *ParticipationGuard) Release(userID string) {
	g.mu.Lock()
	delete(g.joins, userID)
	g.mu.Unlock()
}

// LastJoin returns the recorded join time, if any.
func (g *ParticipationGuard) LastJoin(userID string) (time.Time, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.joins[userID]
	return t, ok
}

// Cleanup drops entries older than the cooldown window and returns how many
// were removed. Bounds memory between restarts of long-running processes.
func (g *ParticipationGuard) Cleanup() int {
	cutoff := time.Now().Add(-g.cooldown)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for userID, joinedAt := range g.joins {
		if joinedAt.Before(cutoff) {
			delete(g.joins, userID)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked users.
func (g *ParticipationGuard) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.joins)
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is an in-process Limiter used when Redis is unavailable or
// for single-instance deployments. It keeps per-key request timestamps and
// evaluates them against a sliding window.
type MemoryLimiter struct {
	mu      sync.Mutex
	history map[string][]time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		history: make(map[string][]time.Time),
	}
}

// Check enforces a sliding-window limit for the provided key.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if limit <= 0 {
		return &Result{Allowed: false, ResetAt: time.Now().Add(window)}, ErrLimitExceeded
	}

	now := time.Now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := keepRecent(m.history[key], windowStart)

	allowed := len(recent) < limit
	if allowed {
		recent = append(recent, now)
	}
	m.history[key] = recent

	remaining := limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}

	if !allowed {
		return result, ErrLimitExceeded
	}

	return result, nil
}

// Cleanup drops keys whose newest entry is older than maxAge. Intended to be
// called periodically from a background goroutine.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, stamps := range m.history {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(m.history, key)
		}
	}
}

func keepRecent(stamps []time.Time, windowStart time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(windowStart) {
		idx++
	}

	return append([]time.Time(nil), stamps[idx:]...)
}

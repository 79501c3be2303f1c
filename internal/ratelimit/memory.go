package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultLimitPerSec = 10
	backoffStep        = 10 * time.Millisecond
	backoffMax         = 50 * time.Millisecond
)

// MemoryRateLimiter is a per-second fixed-window limiter local to the
// process. Used when no Redis endpoint is configured.
type MemoryRateLimiter struct {
	limitPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	counts map[string]int64
	window int64
}

func NewMemoryRateLimiter(limitPerSec int) *MemoryRateLimiter {
	return newMemoryRateLimiter(int64(limitPerSec), time.Now, sleepWithContext)
}

func newMemoryRateLimiter(
	limitPerSec int64,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) *MemoryRateLimiter {
	if limitPerSec <= 0 {
		limitPerSec = defaultLimitPerSec
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &MemoryRateLimiter{
		limitPerSec: limitPerSec,
		now:         nowFn,
		sleep:       sleepFn,
		counts:      make(map[string]int64),
	}
}

func (m *MemoryRateLimiter) Allow(ctx context.Context, transport string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(transport))
	if normalized == "" {
		return false, fmt.Errorf("transport is required")
	}

	window := m.now().UTC().Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	if window != m.window {
		m.window = window
		clear(m.counts)
	}

	m.counts[normalized]++
	return m.counts[normalized] <= m.limitPerSec, nil
}

func (m *MemoryRateLimiter) Wait(ctx context.Context, transport string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := backoffStep
	for {
		allowed, err := m.Allow(ctx, transport)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := m.sleep(ctx, backoff); err != nil {
			return err
		}

		backoff += backoffStep
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

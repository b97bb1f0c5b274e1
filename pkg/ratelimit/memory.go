package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter хранит состояние лимитов в памяти процесса.
// Подходит для одного экземпляра сервиса; для горизонтального
// масштабирования используется Redis-бэкенд.
type MemoryLimiter struct {
	mu     sync.Mutex
	states map[string]*clientState
	config *Config
	stopCh chan struct{}
	closed bool
}

// clientState состояние одного клиента: токены для token bucket и
// отметки запросов для sliding window.
type clientState struct {
	tokens   float64
	refilled time.Time
	requests []time.Time
}

// NewMemoryLimiter создаёт in-memory rate limiter и запускает фоновую
// очистку истёкших ключей.
func NewMemoryLimiter(cfg *Config) *MemoryLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &MemoryLimiter{
		states: make(map[string]*clientState),
		config: cfg,
		stopCh: make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *MemoryLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrLimiterClosed
	}

	st, ok := l.states[key]
	if !ok {
		st = &clientState{
			tokens:   float64(l.config.Requests + l.config.BurstSize),
			refilled: time.Now(),
		}
		l.states[key] = st
	}

	if l.config.Strategy == "token_bucket" {
		return l.takeTokens(st, n), nil
	}
	return l.recordInWindow(st, n), nil
}

// takeTokens реализует token bucket: токены восполняются со скоростью
// Requests за Window, максимум Requests+BurstSize.
func (l *MemoryLimiter) takeTokens(st *clientState, n int) bool {
	now := time.Now()
	elapsed := now.Sub(st.refilled)
	st.refilled = now

	rate := float64(l.config.Requests) / l.config.Window.Seconds()
	st.tokens += elapsed.Seconds() * rate

	if max := float64(l.config.Requests + l.config.BurstSize); st.tokens > max {
		st.tokens = max
	}

	if st.tokens < float64(n) {
		return false
	}
	st.tokens -= float64(n)
	return true
}

// recordInWindow реализует sliding window по отметкам времени запросов.
func (l *MemoryLimiter) recordInWindow(st *clientState, n int) bool {
	now := time.Now()
	st.requests = pruneBefore(st.requests, now.Add(-l.config.Window))

	if len(st.requests)+n > l.config.Requests {
		return false
	}
	for i := 0; i < n; i++ {
		st.requests = append(st.requests, now)
	}
	return true
}

// pruneBefore отбрасывает отметки старше cutoff, сохраняя порядок.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func (l *MemoryLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := l.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.states, key)
	return nil
}

func (l *MemoryLimiter) GetInfo(ctx context.Context, key string) (*LimitInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info := &LimitInfo{
		Limit:     l.config.Requests,
		Remaining: l.config.Requests,
		ResetAt:   time.Now().Add(l.config.Window),
	}

	st, ok := l.states[key]
	if !ok {
		return info, nil
	}

	if l.config.Strategy == "token_bucket" {
		info.Remaining = int(st.tokens)
	} else {
		windowStart := time.Now().Add(-l.config.Window)
		used := 0
		for _, t := range st.requests {
			if t.After(windowStart) {
				used++
			}
		}
		info.Remaining = l.config.Requests - used
	}

	if info.Remaining < 0 {
		info.Remaining = 0
	}
	return info, nil
}

func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.stopCh)
	l.states = nil

	return nil
}

func (l *MemoryLimiter) cleanupLoop() {
	interval := l.config.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.evictStale()
		}
	}
}

// evictStale удаляет клиентов без активности дольше двух окон.
func (l *MemoryLimiter) evictStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	cutoff := time.Now().Add(-2 * l.config.Window)
	for key, st := range l.states {
		st.requests = pruneBefore(st.requests, cutoff)
		if len(st.requests) == 0 && st.refilled.Before(cutoff) {
			delete(l.states, key)
		}
	}
}

package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache кэш в памяти процесса с LRU-вытеснением и фоновой
// очисткой истёкших записей. Используется как бэкенд кэшей матриц
// и результатов оптимизации, когда Redis не сконфигурирован.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*memEntry
	defaultTTL time.Duration
	maxEntries int

	hits   atomic.Int64
	misses atomic.Int64

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type memEntry struct {
	value      []byte
	expiresAt  time.Time
	accessedAt time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

func (e *memEntry) remainingTTL(now time.Time) time.Duration {
	if e.expiresAt.IsZero() {
		return -1 // без срока
	}
	ttl := e.expiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// NewMemoryCache создаёт кэш в памяти и запускает фоновую очистку
func NewMemoryCache(opts *Options) *MemoryCache {
	if opts == nil {
		opts = DefaultOptions()
	}

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 100000
	}

	cleanupInterval := opts.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	c := &MemoryCache{
		entries:    make(map[string]*memEntry),
		defaultTTL: opts.DefaultTTL,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop(cleanupInterval)

	return c
}

// lookup возвращает живую запись и обновляет время доступа для LRU.
// Счётчики hit/miss обновляются здесь же.
func (c *MemoryCache) lookup(key string) (*memEntry, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(now) {
		c.misses.Add(1)
		return nil, false
	}

	e.accessedAt = now
	c.hits.Add(1)
	return e, true
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	e, ok := c.lookup(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[key] = c.newEntry(value, ttl, now)

	return nil
}

func (c *MemoryCache) newEntry(value []byte, ttl time.Duration, now time.Time) *memEntry {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	return &memEntry{
		value:      append([]byte(nil), value...),
		expiresAt:  expiresAt,
		accessedAt: now,
	}
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}

	now := time.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	return ok && !e.expired(now), nil
}

func (c *MemoryCache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	if c.closed.Load() {
		return nil, 0, ErrCacheClosed
	}

	e, ok := c.lookup(key)
	if !ok {
		return nil, 0, ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), e.remainingTTL(time.Now()), nil
}

func (c *MemoryCache) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	result := make(map[string][]byte, len(keys))
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok || e.expired(now) {
			c.misses.Add(1)
			continue
		}
		c.hits.Add(1)
		e.accessedAt = now
		result[key] = append([]byte(nil), e.value...)
	}

	return result, nil
}

func (c *MemoryCache) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range entries {
		for len(c.entries) >= c.maxEntries {
			c.evictOldest()
		}
		c.entries[key] = c.newEntry(value, ttl, now)
	}

	return nil
}

func (c *MemoryCache) MDelete(ctx context.Context, keys []string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	for _, key := range keys {
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			count++
		}
	}

	return count, nil
}

func (c *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var keys []string
	for key, e := range c.entries {
		if !e.expired(now) && matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (c *MemoryCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	for key := range c.entries {
		if matchPattern(pattern, key) {
			delete(c.entries, key)
			count++
		}
	}

	return count, nil
}

func (c *MemoryCache) Stats(ctx context.Context) (*Stats, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	now := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &Stats{
		TotalKeys:    int64(len(c.entries)),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		KeysByPrefix: make(map[string]int64),
		Backend:      BackendMemory,
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	for key, e := range c.entries {
		if !e.expired(now) {
			stats.MemoryBytes += int64(len(e.value))
			stats.KeysByPrefix[keyPrefix(key)]++
		}
	}

	return stats, nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	c.mu.Lock()
	c.entries = make(map[string]*memEntry)
	c.mu.Unlock()

	return nil
}

func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.stopCh)
	c.wg.Wait()

	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()

	return nil
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// evictOldest удаляет запись с самым старым временем доступа.
// Вызывается под write-блокировкой.
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestAccess time.Time

	for key, e := range c.entries {
		if oldestKey == "" || e.accessedAt.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = e.accessedAt
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// matchPattern сопоставляет ключ с шаблоном, поддерживается один "*":
// "*", "prefix*", "*suffix", "prefix*suffix", либо точное совпадение.
func matchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}

	starIndex := strings.Index(pattern, "*")
	if starIndex == -1 {
		return pattern == key
	}

	prefix := pattern[:starIndex]
	suffix := pattern[starIndex+1:]

	if len(key) < len(prefix)+len(suffix) {
		return false
	}
	return strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix)
}

// keyPrefix возвращает сегмент ключа до первого ":" для статистики
func keyPrefix(key string) string {
	if idx := strings.Index(key, ":"); idx > 0 {
		return key[:idx]
	}
	return "other"
}

package cache

import (
	"context"
	"encoding/json"
	"time"

	"fleetrouting/pkg/domain"
)

// ResultCache специализированный кэш результатов оптимизации.
// Кэшируются только успешные планы: отказы и ошибки пересчитываются
// при каждом запросе.
type ResultCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// CachedResult кэшированный результат оптимизации
type CachedResult struct {
	Result     *domain.OptimizationResult `json:"result"`
	ComputedAt time.Time                  `json:"computed_at"`
}

// NewResultCache создаёт кэш результатов
func NewResultCache(cache Cache, defaultTTL time.Duration) *ResultCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &ResultCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Get получает кэшированный результат по отпечатку задачи
func (rc *ResultCache) Get(ctx context.Context, fingerprint string) (*domain.OptimizationResult, bool, error) {
	key := BuildResultKey(fingerprint)

	data, err := rc.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cached CachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		// Повреждённый кэш — удаляем, ошибку удаления игнорируем намеренно
		_ = rc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}
	if cached.Result == nil {
		return nil, false, nil
	}

	return cached.Result, true, nil
}

// Set сохраняет результат в кэш. Неуспешные результаты не сохраняются.
func (rc *ResultCache) Set(ctx context.Context, fingerprint string, result *domain.OptimizationResult, ttl time.Duration) error {
	if result == nil || !result.IsSuccess() {
		return nil
	}
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	key := BuildResultKey(fingerprint)

	cached := CachedResult{
		Result:     result,
		ComputedAt: time.Now(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}

	return rc.cache.Set(ctx, key, data, ttl)
}

// Invalidate удаляет результат по отпечатку
func (rc *ResultCache) Invalidate(ctx context.Context, fingerprint string) error {
	return rc.cache.Delete(ctx, BuildResultKey(fingerprint))
}

// InvalidateAll удаляет все кэшированные результаты
func (rc *ResultCache) InvalidateAll(ctx context.Context) (int64, error) {
	return rc.cache.DeleteByPattern(ctx, "result:*")
}

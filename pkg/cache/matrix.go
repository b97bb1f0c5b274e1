package cache

import (
	"context"
	"encoding/json"
	"time"

	"fleetrouting/pkg/domain"
)

// MatrixCache специализированный кэш матриц расстояний и времени.
// Записи устаревают по возрасту: Get отбрасывает матрицы старше expiry.
type MatrixCache struct {
	cache  Cache
	expiry time.Duration
}

// CachedMatrix кэшированная матрица с метаданными
type CachedMatrix struct {
	LocationIDs []string    `json:"location_ids"`
	Distance    [][]float64 `json:"distance"`
	Time        [][]float64 `json:"time"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewMatrixCache создаёт кэш матриц
func NewMatrixCache(cache Cache, expiry time.Duration) *MatrixCache {
	if expiry <= 0 {
		expiry = 30 * 24 * time.Hour
	}
	return &MatrixCache{
		cache:  cache,
		expiry: expiry,
	}
}

// Get получает кэшированную матрицу для набора локаций
func (mc *MatrixCache) Get(ctx context.Context, locationIDs []string) (*domain.Matrix, bool, error) {
	key := BuildMatrixKey(LocationSetHash(locationIDs))

	data, err := mc.cache.Get(ctx, key)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cached CachedMatrix
	if err := json.Unmarshal(data, &cached); err != nil {
		// Повреждённый кэш — удаляем, ошибку удаления игнорируем намеренно
		_ = mc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	if time.Since(cached.CreatedAt) > mc.expiry {
		_ = mc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return &domain.Matrix{
		LocationIDs: cached.LocationIDs,
		Distance:    cached.Distance,
		Time:        cached.Time,
	}, true, nil
}

// Set сохраняет матрицу в кэш
func (mc *MatrixCache) Set(ctx context.Context, m *domain.Matrix) error {
	if m == nil {
		return nil
	}

	key := BuildMatrixKey(LocationSetHash(m.LocationIDs))

	cached := CachedMatrix{
		LocationIDs: m.LocationIDs,
		Distance:    m.Distance,
		Time:        m.Time,
		CreatedAt:   time.Now(),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}

	return mc.cache.Set(ctx, key, data, mc.expiry)
}

// Invalidate удаляет матрицу для набора локаций
func (mc *MatrixCache) Invalidate(ctx context.Context, locationIDs []string) error {
	key := BuildMatrixKey(LocationSetHash(locationIDs))
	return mc.cache.Delete(ctx, key)
}

// InvalidateAll удаляет все кэшированные матрицы
func (mc *MatrixCache) InvalidateAll(ctx context.Context) (int64, error) {
	return mc.cache.DeleteByPattern(ctx, "matrix:*")
}

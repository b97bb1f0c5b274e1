// Package cache — общий слой кэширования сервисов маршрутизации.
// Поверх единого интерфейса Cache (память или Redis) построены
// типизированные кэши матриц расстояний и результатов оптимизации.
package cache

import (
	"context"
	"errors"
	"time"

	"fleetrouting/pkg/config"
)

// Поддерживаемые бэкенды. Выбор делается через Options.Backend,
// в проде обычно Redis, в тестах и при отсутствии Redis — память.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

var (
	// ErrKeyNotFound — ключ отсутствует либо его TTL истёк.
	ErrKeyNotFound = errors.New("key not found")
	// ErrCacheClosed — операция над уже закрытым кэшем.
	ErrCacheClosed = errors.New("cache is closed")
)

// Cache — общий контракт бэкендов кэша. Все операции принимают
// контекст: Redis ходит по сети, memory-реализация его игнорирует.
type Cache interface {
	// Get возвращает значение ключа либо ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetWithTTL дополнительно сообщает остаток TTL записи.
	GetWithTTL(ctx context.Context, key string) (value []byte, ttl time.Duration, err error)
	// Set пишет значение; ttl <= 0 означает TTL по умолчанию.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete удаляет ключ; отсутствие ключа не считается ошибкой.
	Delete(ctx context.Context, key string) error
	// Exists проверяет наличие живой записи.
	Exists(ctx context.Context, key string) (bool, error)

	// Пакетные операции. MGet возвращает только найденные ключи,
	// MDelete — число реально удалённых.
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
	MDelete(ctx context.Context, keys []string) (int64, error)

	// Операции по шаблону ("matrix:*" и т.п.). На больших кэшах
	// линейны по числу ключей, применять точечно.
	Keys(ctx context.Context, pattern string) ([]string, error)
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)

	// Stats отдаёт счётчики попаданий и объём кэша.
	Stats(ctx context.Context) (*Stats, error)
	// Clear полностью очищает кэш.
	Clear(ctx context.Context) error
	// Close освобождает ресурсы бэкенда; кэш далее непригоден.
	Close() error
}

// Stats — срез состояния кэша для диагностики и метрик.
type Stats struct {
	Backend      string           // имя бэкенда ("memory", "redis")
	TotalKeys    int64            // число живых ключей
	Hits         int64            // попадания
	Misses       int64            // промахи
	HitRate      float64          // доля попаданий среди всех обращений
	MemoryBytes  int64            // занятая память (байты значений)
	KeysByPrefix map[string]int64 // ключи по префиксу до ":" (если бэкенд считает)
}

// Options — параметры создания кэша. Поля Redis* игнорируются
// memory-бэкендом и наоборот.
type Options struct {
	Backend    string
	DefaultTTL time.Duration // TTL записей, если не задан в Set/MSet

	// Только для памяти
	MaxEntries      int           // предел записей, дальше LRU-вытеснение
	CleanupInterval time.Duration // период фоновой чистки истёкших записей

	// Только для Redis
	RedisAddr     string // host:port
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// DefaultOptions возвращает опции по умолчанию: кэш в памяти
// c TTL 5 минут.
func DefaultOptions() *Options {
	return &Options{
		Backend:         BackendMemory,
		DefaultTTL:      5 * time.Minute,
		MaxEntries:      100000,
		CleanupInterval: time.Minute,
		RedisAddr:       "localhost:6379",
		RedisPoolSize:   10,
	}
}

// FromConfig переводит секцию cache конфигурации сервиса в опции
func FromConfig(cfg *config.CacheConfig) *Options {
	return &Options{
		Backend:       cfg.Driver,
		DefaultTTL:    cfg.DefaultTTL,
		MaxEntries:    cfg.MaxEntries,
		RedisAddr:     cfg.Address(),
		RedisPassword: cfg.Password,
		RedisDB:       cfg.DB,
		RedisPoolSize: 10,
	}
}

// New создаёт кэш по опциям. Неизвестный или пустой бэкенд
// трактуется как memory, чтобы сервис поднимался и без Redis.
func New(opts *Options) (Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if opts.Backend == BackendRedis {
		return NewRedisCache(opts)
	}
	return NewMemoryCache(opts), nil
}

// Package ratelimit - ограничение частоты запросов с бэкендами
// в памяти и Redis. Используется HTTP-middleware планировщика.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// Стандартные ошибки
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrLimiterClosed     = errors.New("limiter is closed")
)

// Limiter интерфейс ограничителя запросов
type Limiter interface {
	// Allow проверяет, разрешён ли один запрос по ключу клиента
	Allow(ctx context.Context, key string) (bool, error)

	// AllowN проверяет, разрешены ли n запросов
	AllowN(ctx context.Context, key string, n int) (bool, error)

	// Wait блокирует до получения разрешения или отмены контекста
	Wait(ctx context.Context, key string) error

	// Reset сбрасывает накопленный счётчик для ключа
	Reset(ctx context.Context, key string) error

	// GetInfo возвращает текущее состояние лимита для ключа
	GetInfo(ctx context.Context, key string) (*LimitInfo, error)

	// Close закрывает лимитер и фоновые задачи
	Close() error
}

// LimitInfo состояние лимита: сколько осталось и когда окно обнулится
type LimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Config конфигурация rate limiter
type Config struct {
	// Requests количество запросов на окно
	Requests int `koanf:"requests"`

	// Window временное окно
	Window time.Duration `koanf:"window"`

	// Strategy стратегия (sliding_window, token_bucket, fixed_window)
	Strategy string `koanf:"strategy"`

	// Backend хранилище (memory, redis)
	Backend string `koanf:"backend"`

	// BurstSize размер burst для token bucket
	BurstSize int `koanf:"burst_size"`

	// CleanupInterval интервал очистки истёкших ключей (memory)
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// Redis настройки Redis
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Requests:        100,
		Window:          time.Minute,
		Strategy:        "sliding_window",
		Backend:         "memory",
		BurstSize:       10,
		CleanupInterval: 5 * time.Minute,
	}
}

// New создаёт лимитер на основе конфигурации. Неизвестный бэкенд
// трактуется как memory.
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "redis":
		return NewRedisLimiter(cfg)
	default:
		return NewMemoryLimiter(cfg), nil
	}
}

// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App       AppConfig       `koanf:"app"`
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Retry     RetryConfig     `koanf:"retry"`
	Routing   RoutingConfig   `koanf:"routing"`
	Solver    SolverConfig    `koanf:"solver"`
	External  ExternalConfig  `koanf:"external"`
	Kafka     KafkaConfig     `koanf:"kafka"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig - настройки CORS
type CORSConfig struct {
	Enabled          bool     `koanf:"enabled"`
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // путь к файлу логов
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // количество бэкапов
	MaxAge     int    `koanf:"max_age"`     // дней
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// DatabaseConfig - настройки базы данных
type DatabaseConfig struct {
	Driver          string        `koanf:"driver"` // postgres
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrationsPath  string        `koanf:"migrations_path"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
	)
}

// CacheConfig - настройки кэширования
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // для in-memory
}

// Address возвращает адрес кэша
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Strategy        string        `koanf:"strategy"`
	Backend         string        `koanf:"backend"`
	BurstSize       int           `koanf:"burst_size"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// RetryConfig конфигурация retry для внешних вызовов
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// RoutingConfig конфигурация построителя матриц расстояний
type RoutingConfig struct {
	// Внешний API маршрутизации (Google Distance Matrix)
	APIKey          string        `koanf:"api_key"`
	APIURL          string        `koanf:"api_url"`
	UseAPIByDefault bool          `koanf:"use_api_by_default"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ElementBudget   int           `koanf:"element_budget"` // origins*destinations на один запрос

	// Retry-политика API
	MaxRetries    int           `koanf:"max_retries"`
	BackoffFactor float64       `koanf:"backoff_factor"`
	RetryDelay    time.Duration `koanf:"retry_delay"`

	// Локальный расчёт
	AverageSpeedKmh float64 `koanf:"average_speed_kmh"`

	// Кэш матриц
	UseCache          bool          `koanf:"use_cache"`
	MatrixCacheExpiry time.Duration `koanf:"matrix_cache_expiry"`
}

// SolverConfig конфигурация VRP-решателя
type SolverConfig struct {
	TimeLimit       time.Duration `koanf:"time_limit"`
	GlobalSpanCoeff int64         `koanf:"global_span_coeff"`
	SlackMinutes    int           `koanf:"slack_minutes"`
	DayHorizonHours int           `koanf:"day_horizon_hours"`
	SpeedKmh        float64       `koanf:"speed_kmh"`
	ResultCacheTTL  time.Duration `koanf:"result_cache_ttl"`
}

// ExternalConfig конфигурация сервиса внешних данных
// (трафик, погода, перекрытия дорог)
type ExternalConfig struct {
	BaseURL string `koanf:"base_url"` // пустая строка - только мок-данные
}

// KafkaConfig конфигурация Kafka-консьюмера заказов
type KafkaConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	GroupID  string   `koanf:"group_id"`
	MinBytes int      `koanf:"min_bytes"`
	MaxBytes int      `koanf:"max_bytes"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Routing.AverageSpeedKmh <= 0 {
		errs = append(errs, fmt.Sprintf("routing.average_speed_kmh must be positive, got %f", c.Routing.AverageSpeedKmh))
	}

	if c.Routing.ElementBudget <= 0 {
		errs = append(errs, fmt.Sprintf("routing.element_budget must be positive, got %d", c.Routing.ElementBudget))
	}

	if c.Routing.MaxRetries < 0 {
		errs = append(errs, "routing.max_retries must be non-negative")
	}

	if c.Solver.TimeLimit <= 0 {
		errs = append(errs, "solver.time_limit must be positive")
	}

	if c.Solver.SpeedKmh <= 0 {
		errs = append(errs, fmt.Sprintf("solver.speed_kmh must be positive, got %f", c.Solver.SpeedKmh))
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, "kafka.topic is required when kafka is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment проверяет режим разработки
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction проверяет продакшн режим
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}

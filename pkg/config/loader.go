package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "FLEETROUTE_"
	configEnvVar = "CONFIG_PATH"
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/fleetrouting/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	// 1. Загружаем значения по умолчанию
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Загружаем из файла конфигурации
	if err := l.loadConfigFile(); err != nil {
		// Файл не обязателен, логируем warning
		fmt.Printf("Warning: %v\n", err)
	}

	// 3. Загружаем из переменных окружения (перезаписывают файл)
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// 4. Устаревшие имена переменных без префикса (GOOGLE_MAPS_API_KEY и т.д.)
	if err := l.loadLegacyEnv(); err != nil {
		return nil, fmt.Errorf("failed to load legacy env: %w", err)
	}

	// 5. Распаковываем в структуру
	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Валидируем
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults загружает значения по умолчанию
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "fleetrouting-service",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// HTTP
		"http.port":             8080,
		"http.read_timeout":     30 * time.Second,
		"http.write_timeout":    60 * time.Second,
		"http.shutdown_timeout": 30 * time.Second,
		// CORS
		"http.cors.enabled":           true,
		"http.cors.allowed_origins":   []string{"*"},
		"http.cors.allowed_methods":   []string{"GET", "POST", "OPTIONS"},
		"http.cors.allowed_headers":   []string{"Content-Type", "Accept", "Origin", "X-Requested-With", "X-Request-Id"},
		"http.cors.allow_credentials": false,
		"http.cors.max_age":           86400,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "fleetrouting",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "fleetrouting-service",
		"tracing.sample_rate":  0.1,

		// Database
		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "fleetrouting",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,

		// Cache
		"cache.enabled":     true,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.db":          0,
		"cache.default_ttl": time.Hour,
		"cache.max_entries": 10000,

		// Rate Limit
		"rate_limit.enabled":          true,
		"rate_limit.requests":         100,
		"rate_limit.window":           time.Minute,
		"rate_limit.strategy":         "sliding_window",
		"rate_limit.backend":          "memory",
		"rate_limit.burst_size":       10,
		"rate_limit.cleanup_interval": 5 * time.Minute,

		// Retry
		"retry.max_attempts":       3,
		"retry.initial_backoff":    100 * time.Millisecond,
		"retry.max_backoff":        10 * time.Second,
		"retry.backoff_multiplier": 2.0,

		// Routing
		"routing.api_key":             "",
		"routing.api_url":             "https://maps.googleapis.com/maps/api/distancematrix/json",
		"routing.use_api_by_default":  false,
		"routing.request_timeout":     10 * time.Second,
		"routing.element_budget":      100,
		"routing.max_retries":         3,
		"routing.backoff_factor":      2.0,
		"routing.retry_delay":         time.Second,
		"routing.average_speed_kmh":   50.0,
		"routing.use_cache":           true,
		"routing.matrix_cache_expiry": 30 * 24 * time.Hour,

		// Solver
		"solver.time_limit":        30 * time.Second,
		"solver.global_span_coeff": 100,
		"solver.slack_minutes":     60,
		"solver.day_horizon_hours": 24,
		"solver.speed_kmh":         60.0,
		"solver.result_cache_ttl":  time.Hour,

		// External data
		"external.base_url": "",

		// Kafka
		"kafka.enabled":   false,
		"kafka.brokers":   []string{"localhost:9092"},
		"kafka.topic":     "orders.created",
		"kafka.group_id":  "fleetrouting-planner",
		"kafka.min_bytes": 1,
		"kafka.max_bytes": 10 * 1024 * 1024,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile загружает конфигурацию из файла
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv загружает конфигурацию из переменных окружения
// Использует умную трансформацию ключей для полей с подчёркиванием
func (l *Loader) loadEnv() error {
	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey string, value string) (string, interface{}) {
		// Убираем префикс и приводим к нижнему регистру
		key := strings.ToLower(strings.TrimPrefix(envKey, l.envPrefix))

		// Маппинг для полей с подчёркиванием в именах
		if mappedKey, ok := envKeyMappings[key]; ok {
			key = mappedKey
		} else {
			// По умолчанию заменяем все подчёркивания на точки
			key = strings.ReplaceAll(key, "_", ".")
		}

		// Для slice-полей разбиваем по запятой
		if isSliceField(key) {
			return key, splitAndTrim(value)
		}

		return key, value
	}), nil)
}

// loadLegacyEnv подхватывает исторические имена переменных, которые
// деплой уже использует и которые не укладываются в общий префикс.
func (l *Loader) loadLegacyEnv() error {
	overrides := map[string]any{}

	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		overrides["routing.api_key"] = v
	}
	if v := os.Getenv("GOOGLE_MAPS_API_URL"); v != "" {
		overrides["routing.api_url"] = v
	}
	if v := os.Getenv("USE_API_BY_DEFAULT"); v != "" {
		overrides["routing.use_api_by_default"] = parseBool(v)
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			overrides["routing.max_retries"] = n
		}
	}
	if v := os.Getenv("BACKOFF_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			overrides["routing.backoff_factor"] = f
		}
	}
	if v := os.Getenv("RETRY_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			overrides["routing.retry_delay"] = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("CACHE_EXPIRY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			overrides["routing.matrix_cache_expiry"] = time.Duration(n) * 24 * time.Hour
		}
	}
	if v := os.Getenv("OPTIMIZATION_RESULT_CACHE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			overrides["solver.result_cache_ttl"] = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("KAFKA_BROKER_URL"); v != "" {
		overrides["kafka.brokers"] = splitAndTrim(v)
	}

	if len(overrides) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(overrides, "."), nil)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// envKeyMappings - маппинг переменных окружения на ключи конфига
// Необходим для полей, содержащих подчёркивания в именах
var envKeyMappings = map[string]string{
	// HTTP CORS
	"http_cors_enabled":           "http.cors.enabled",
	"http_cors_allowed_origins":   "http.cors.allowed_origins",
	"http_cors_allowed_methods":   "http.cors.allowed_methods",
	"http_cors_allowed_headers":   "http.cors.allowed_headers",
	"http_cors_allow_credentials": "http.cors.allow_credentials",
	"http_cors_max_age":           "http.cors.max_age",

	// HTTP
	"http_port":             "http.port",
	"http_read_timeout":     "http.read_timeout",
	"http_write_timeout":    "http.write_timeout",
	"http_shutdown_timeout": "http.shutdown_timeout",

	// Database
	"database_driver":             "database.driver",
	"database_host":               "database.host",
	"database_port":               "database.port",
	"database_database":           "database.database",
	"database_username":           "database.username",
	"database_password":           "database.password",
	"database_ssl_mode":           "database.ssl_mode",
	"database_max_open_conns":     "database.max_open_conns",
	"database_max_idle_conns":     "database.max_idle_conns",
	"database_conn_max_lifetime":  "database.conn_max_lifetime",
	"database_conn_max_idle_time": "database.conn_max_idle_time",
	"database_migrations_path":    "database.migrations_path",
	"database_auto_migrate":       "database.auto_migrate",

	// Cache
	"cache_enabled":     "cache.enabled",
	"cache_driver":      "cache.driver",
	"cache_host":        "cache.host",
	"cache_port":        "cache.port",
	"cache_password":    "cache.password",
	"cache_db":          "cache.db",
	"cache_default_ttl": "cache.default_ttl",
	"cache_max_entries": "cache.max_entries",

	// Rate limit
	"rate_limit_enabled":          "rate_limit.enabled",
	"rate_limit_requests":         "rate_limit.requests",
	"rate_limit_window":           "rate_limit.window",
	"rate_limit_strategy":         "rate_limit.strategy",
	"rate_limit_backend":          "rate_limit.backend",
	"rate_limit_burst_size":       "rate_limit.burst_size",
	"rate_limit_cleanup_interval": "rate_limit.cleanup_interval",
	"rate_limit_redis_addr":       "rate_limit.redis_addr",

	// Retry
	"retry_max_attempts":       "retry.max_attempts",
	"retry_initial_backoff":    "retry.initial_backoff",
	"retry_max_backoff":        "retry.max_backoff",
	"retry_backoff_multiplier": "retry.backoff_multiplier",

	// Log
	"log_level":       "log.level",
	"log_format":      "log.format",
	"log_output":      "log.output",
	"log_file_path":   "log.file_path",
	"log_max_size":    "log.max_size",
	"log_max_backups": "log.max_backups",
	"log_max_age":     "log.max_age",
	"log_compress":    "log.compress",

	// Routing
	"routing_api_key":             "routing.api_key",
	"routing_api_url":             "routing.api_url",
	"routing_use_api_by_default":  "routing.use_api_by_default",
	"routing_request_timeout":     "routing.request_timeout",
	"routing_element_budget":      "routing.element_budget",
	"routing_max_retries":         "routing.max_retries",
	"routing_backoff_factor":      "routing.backoff_factor",
	"routing_retry_delay":         "routing.retry_delay",
	"routing_average_speed_kmh":   "routing.average_speed_kmh",
	"routing_use_cache":           "routing.use_cache",
	"routing_matrix_cache_expiry": "routing.matrix_cache_expiry",

	// Solver
	"solver_time_limit":        "solver.time_limit",
	"solver_global_span_coeff": "solver.global_span_coeff",
	"solver_slack_minutes":     "solver.slack_minutes",
	"solver_day_horizon_hours": "solver.day_horizon_hours",
	"solver_speed_kmh":         "solver.speed_kmh",
	"solver_result_cache_ttl":  "solver.result_cache_ttl",

	// Kafka
	"kafka_enabled":   "kafka.enabled",
	"kafka_brokers":   "kafka.brokers",
	"kafka_topic":     "kafka.topic",
	"kafka_group_id":  "kafka.group_id",
	"kafka_min_bytes": "kafka.min_bytes",
	"kafka_max_bytes": "kafka.max_bytes",
}

// sliceFields - поля, которые должны парситься как слайсы
var sliceFields = map[string]bool{
	"http.cors.allowed_origins": true,
	"http.cors.allowed_methods": true,
	"http.cors.allowed_headers": true,
	"kafka.brokers":             true,
}

func isSliceField(key string) bool {
	return sliceFields[key]
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load - удобная функция для загрузки с дефолтными настройками
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadWithServiceDefaults загружает конфигурацию с переопределением для конкретного сервиса
func LoadWithServiceDefaults(serviceName string, defaultPort int) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.HTTP.Port == 8080 && defaultPort != 0 {
		cfg.HTTP.Port = defaultPort
	}

	if cfg.App.Name == "fleetrouting-service" {
		cfg.App.Name = serviceName
	}

	return cfg, nil
}

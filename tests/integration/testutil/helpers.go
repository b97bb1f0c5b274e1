package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"
	"time"

	"fleetrouting/pkg/config"
)

// Переменные окружения
const (
	EnvIntegrationTests = "INTEGRATION_TESTS"
	EnvPostgresDSN      = "POSTGRES_TEST_DSN"
)

// SkipIfNotIntegration пропускает тест если не integration mode
func SkipIfNotIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv(EnvIntegrationTests) != "1" {
		t.Skip("skipping integration test; set INTEGRATION_TESTS=1 to run")
	}
}

// RequirePostgres проверяет доступность PostgreSQL и возвращает DSN
func RequirePostgres(t *testing.T) string {
	t.Helper()
	SkipIfNotIntegration(t)

	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	return dsn
}

// PostgresConfig возвращает конфигурацию тестовой базы
func PostgresConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:          "postgres",
		Host:            getEnvOrDefault("POSTGRES_HOST", "localhost"),
		Port:            getEnvIntOrDefault("POSTGRES_PORT", 5433),
		Database:        getEnvOrDefault("POSTGRES_DB", "fleetrouting_test"),
		Username:        getEnvOrDefault("POSTGRES_USER", "postgres"),
		Password:        getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
		AutoMigrate:     true,
	}
}

// Context возвращает контекст с таймаутом для тестов
func Context(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Cleanup регистрирует функцию очистки
func Cleanup(t *testing.T, fn func()) {
	t.Helper()
	t.Cleanup(fn)
}

// RandomString генерирует случайную hex строку заданной длины
func RandomString(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)[:n]
}

// UniqueID генерирует уникальный идентификатор для теста
func UniqueID(t *testing.T, prefix string) string {
	t.Helper()
	return fmt.Sprintf("%s-%s", prefix, RandomString(8))
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

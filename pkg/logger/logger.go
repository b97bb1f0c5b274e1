// Package logger - тонкая обёртка над log/slog с ротацией файлов.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log глобальный логгер процесса. До Init пишет в stderr на уровне info,
// чтобы ранние ошибки инициализации не терялись.
var Log = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Config конфигурация логгера
type Config struct {
	Level      string
	Format     string // json, text
	Output     string // stdout, stderr, file
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // дней
	Compress   bool
}

// Init инициализирует логгер с JSON-выводом в stdout
func Init(level string) {
	InitWithConfig(Config{
		Level:  level,
		Format: "json",
		Output: "stdout",
	})
}

// InitWithConfig инициализирует логгер с полной конфигурацией
func InitWithConfig(cfg Config) {
	lvl := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	writer := resolveWriter(cfg)

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	Log = slog.New(handler)
}

// ParseLevel преобразует строковый уровень в slog.Level, по умолчанию info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveWriter выбирает назначение вывода. Для файлового вывода
// используется lumberjack с ротацией; если каталог создать не удалось,
// откатываемся на stdout.
func resolveWriter(cfg Config) io.Writer {
	switch cfg.Output {
	case "stderr":
		return os.Stderr
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = "logs/fleetrouting.log"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	default:
		return os.Stdout
	}
}

// WithContext добавляет контекстные атрибуты
func WithContext(ctx context.Context, args ...any) *slog.Logger {
	return Log.With(args...)
}

// WithRequestID добавляет идентификатор запроса
func WithRequestID(requestID string) *slog.Logger {
	return Log.With("request_id", requestID)
}

// WithService добавляет имя сервиса
func WithService(service string) *slog.Logger {
	return Log.With("service", service)
}

// WithComponent добавляет имя компонента конвейера
func WithComponent(component string) *slog.Logger {
	return Log.With("component", component)
}

// Debug логирует debug сообщение
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

// Info логирует info сообщение
func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

// Warn логирует warning сообщение
func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

// Error логирует error сообщение
func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

// Fatal логирует сообщение и завершает процесс
func Fatal(msg string, args ...any) {
	Log.Error(msg, args...)
	os.Exit(1)
}

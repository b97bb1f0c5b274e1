package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestInit(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		Init(level)
		require.NotNil(t, Log, "Init(%s)", level)
	}
}

func TestInitWithConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"json stdout", Config{Level: "info", Format: "json", Output: "stdout"}},
		{"text stderr", Config{Level: "debug", Format: "text", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitWithConfig(tt.config)
			require.NotNil(t, Log)
		})
	}
}

func TestInitWithConfig_FileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	InitWithConfig(Config{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logPath,
	})
	require.NotNil(t, Log)

	Log.Info("file sink check")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
}

func TestInitWithConfig_FileOutputInvalidDir(t *testing.T) {
	// Недоступный каталог откатывается на stdout
	InitWithConfig(Config{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: "/nonexistent/deeply/nested/dir/test.log",
	})
	require.NotNil(t, Log)
}

func TestLoggingFunctions(t *testing.T) {
	Init("debug")

	Debug("debug message", "key", "value")
	Info("info message", "key", "value")
	Warn("warn message", "key", "value")
	Error("error message", "key", "value")
}

func TestDerivedLoggers(t *testing.T) {
	Init("info")

	assert.NotNil(t, WithContext(context.Background(), "key1", "value1"))
	assert.NotNil(t, WithRequestID("req-123"))
	assert.NotNil(t, WithService("planner-svc"))
	assert.NotNil(t, WithComponent("matrix"))
}

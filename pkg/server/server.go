package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"fleetrouting/pkg/config"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
	"fleetrouting/pkg/ratelimit"
	"fleetrouting/pkg/telemetry"
)

// HTTPServer обёртка над http.Server с graceful shutdown
type HTTPServer struct {
	server      *http.Server
	serviceName string
	config      *config.Config
	telemetry   *telemetry.Provider
	rateLimiter ratelimit.Limiter
	ready       atomic.Bool
}

// ServerOptions дополнительные опции сервера
type ServerOptions struct {
	RateLimiter ratelimit.Limiter
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config, handler http.Handler) *HTTPServer {
	return NewWithOptions(cfg, handler, nil)
}

// NewWithOptions создаёт сервер с дополнительными опциями
func NewWithOptions(cfg *config.Config, handler http.Handler, opts *ServerOptions) *HTTPServer {
	if opts == nil {
		opts = &ServerOptions{}
	}

	rateLimiter := opts.RateLimiter
	if rateLimiter == nil && cfg.RateLimit.Enabled {
		var err error
		rateLimiter, err = ratelimit.New(&ratelimit.Config{
			Requests:        cfg.RateLimit.Requests,
			Window:          cfg.RateLimit.Window,
			Strategy:        cfg.RateLimit.Strategy,
			Backend:         cfg.RateLimit.Backend,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			RedisAddr:       cfg.RateLimit.RedisAddr,
		})
		if err != nil {
			logger.Log.Warn("Failed to create rate limiter, continuing without it", "error", err)
			rateLimiter = nil
		} else {
			logger.Log.Info("Rate limiter initialized",
				"requests", cfg.RateLimit.Requests,
				"window", cfg.RateLimit.Window,
				"strategy", cfg.RateLimit.Strategy,
			)
		}
	}

	// h2c позволяет HTTP/2 без TLS
	h2s := &http2.Server{}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      h2c.NewHandler(handler, h2s),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &HTTPServer{
		server:      srv,
		serviceName: cfg.App.Name,
		config:      cfg,
		rateLimiter: rateLimiter,
	}
}

// RateLimiter возвращает лимитер запросов (nil если выключен)
func (s *HTTPServer) RateLimiter() ratelimit.Limiter {
	return s.rateLimiter
}

// Ready сообщает, готов ли сервер принимать трафик
func (s *HTTPServer) Ready() bool {
	return s.ready.Load()
}

// Run запускает сервер и блокируется до сигнала остановки
func (s *HTTPServer) Run() error {
	ctx := context.Background()

	if s.config.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     s.config.Tracing.Enabled,
			Endpoint:    s.config.Tracing.Endpoint,
			ServiceName: s.config.Tracing.ServiceName,
			Version:     s.config.App.Version,
			Environment: s.config.App.Environment,
			SampleRate:  s.config.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			s.telemetry = tp
			logger.Log.Info("Telemetry initialized",
				"endpoint", s.config.Tracing.Endpoint,
				"sample_rate", s.config.Tracing.SampleRate,
			)
		}
	}

	if s.config.Metrics.Enabled {
		go func() {
			logger.Log.Info("Starting metrics server",
				"port", s.config.Metrics.Port,
				"path", s.config.Metrics.Path,
			)
			if err := metrics.StartMetricsServer(s.config.Metrics.Port); err != nil {
				logger.Log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Log.Info("Starting HTTP server",
			"service", s.serviceName,
			"port", s.config.HTTP.Port,
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
		)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.ready.Store(true)

	if m := metrics.Get(); m != nil {
		m.SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}

	return s.waitForShutdown(errCh)
}

func (s *HTTPServer) waitForShutdown(errCh chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Log.Info("Received shutdown signal", "signal", sig)
	}

	s.ready.Store(false)

	shutdownTimeout := s.config.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Close(); err != nil {
			logger.Log.Warn("Failed to close rate limiter", "error", err)
		}
	}

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Log.Warn("Forcing server stop", "error", err)
		return s.server.Close()
	}

	logger.Log.Info("Server stopped gracefully")
	return nil
}

// Shutdown останавливает сервер gracefully
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.server.Shutdown(ctx)
}

// Close останавливает сервер немедленно
func (s *HTTPServer) Close() error {
	s.ready.Store(false)
	return s.server.Close()
}

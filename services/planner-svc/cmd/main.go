package main

import (
	"context"
	"log"
	"net/http"

	"fleetrouting/pkg/cache"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/database"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
	"fleetrouting/pkg/ratelimit"
	"fleetrouting/pkg/server"
	"fleetrouting/services/planner-svc/internal/consumer"
	"fleetrouting/services/planner-svc/internal/external"
	"fleetrouting/services/planner-svc/internal/handlers"
	"fleetrouting/services/planner-svc/internal/matrix"
	"fleetrouting/services/planner-svc/internal/middleware"
	"fleetrouting/services/planner-svc/internal/service"
	"fleetrouting/services/planner-svc/internal/store"
)

func main() {
	cfg, err := config.LoadWithServiceDefaults("planner-svc", 8080)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	logger.Log = logger.WithService("planner-svc")

	if cfg.Metrics.Enabled {
		metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Кэши: один бэкенд (memory или redis) для матриц и результатов
	backend, err := cache.New(cache.FromConfig(&cfg.Cache))
	if err != nil {
		logger.Log.Warn("Cache backend unavailable, falling back to in-memory", "error", err)
		backend = cache.NewMemoryCache(cache.DefaultOptions())
	}
	defer backend.Close()

	var matrixCache *cache.MatrixCache
	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		matrixCache = cache.NewMatrixCache(backend, cfg.Routing.MatrixCacheExpiry)
		resultCache = cache.NewResultCache(backend, cfg.Solver.ResultCacheTTL)
	}

	builder := matrix.NewBuilder(&cfg.Routing, matrixCache)
	externalSvc := external.NewService(cfg.External.BaseURL, &cfg.Retry)
	optimizer := service.NewOptimizer(cfg, builder, externalSvc, resultCache)
	rerouter := service.NewRerouter(optimizer)

	// Персистентность опциональна: без неё ядро планирования
	// продолжает обслуживать /optimize и /reroute.
	var planner *store.Planner
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Log.Warn("Database unavailable, running stateless", "error", err)
	} else {
		defer db.Close()
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, store.Migrations, store.MigrationsDir); err != nil {
				log.Fatalf("failed to run migrations: %v", err)
			}
		}
		planner = store.NewPlanner(db, optimizer)
	}

	if cfg.Kafka.Enabled {
		if planner == nil {
			logger.Log.Warn("Kafka consumer requires a database, skipping")
		} else {
			orders := consumer.New(&cfg.Kafka, planner.Shipments())
			defer orders.Close()
			go func() {
				if err := orders.Run(ctx); err != nil && ctx.Err() == nil {
					logger.Log.Error("Order consumer stopped", "error", err)
				}
			}()
		}
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(&ratelimit.Config{
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
			limiter = nil
		}
	}

	var srv *server.HTTPServer
	handler := handlers.New(optimizer, rerouter, func() bool {
		return srv != nil && srv.Ready()
	})

	mux := http.NewServeMux()
	handler.Register(mux)

	wrapped := middleware.Chain(mux,
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Metrics(),
		middleware.RateLimit(limiter),
		middleware.CORS(cfg.HTTP.CORS),
	)
	srv = server.NewWithOptions(cfg, wrapped, &server.ServerOptions{RateLimiter: limiter})

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// services/planner-svc/factory.go
package plannersvc

import (
	"net/http"
	"time"

	"fleetrouting/pkg/cache"
	"fleetrouting/pkg/config"
	"fleetrouting/services/planner-svc/internal/handlers"
	"fleetrouting/services/planner-svc/internal/matrix"
	"fleetrouting/services/planner-svc/internal/middleware"
	"fleetrouting/services/planner-svc/internal/service"
)

// NewBenchmarkOptimizer создаёт конвейер планирования для бенчмарков и
// интеграционных тестов: haversine-матрицы, кэш в памяти, короткий
// лимит времени решателя.
func NewBenchmarkOptimizer() *service.Optimizer {
	cfg := &config.Config{
		Routing: config.RoutingConfig{
			AverageSpeedKmh: 50,
			ElementBudget:   100,
		},
		Solver: config.SolverConfig{
			TimeLimit:       500 * time.Millisecond,
			GlobalSpanCoeff: 100,
			SlackMinutes:    60,
			DayHorizonHours: 24,
			SpeedKmh:        60,
			ResultCacheTTL:  time.Hour,
		},
	}

	backend := cache.NewMemoryCache(cache.DefaultOptions())
	results := cache.NewResultCache(backend, cfg.Solver.ResultCacheTTL)
	builder := matrix.NewBuilder(&cfg.Routing, cache.NewMatrixCache(backend, 24*time.Hour))
	return service.NewOptimizer(cfg, builder, nil, results)
}

// NewBenchmarkRerouter создаёт перепланировщик поверх бенчмарк-конвейера.
func NewBenchmarkRerouter() *service.Rerouter {
	return service.NewRerouter(NewBenchmarkOptimizer())
}

// NewBenchmarkHandler собирает HTTP поверхность сервиса поверх
// бенчмарк-конвейера, скрывая внутренние пакеты от внешних тестов.
func NewBenchmarkHandler() http.Handler {
	opt := NewBenchmarkOptimizer()
	h := handlers.New(opt, service.NewRerouter(opt), nil)

	mux := http.NewServeMux()
	h.Register(mux)
	return middleware.Chain(mux,
		middleware.Recovery(),
		middleware.RequestID(),
	)
}

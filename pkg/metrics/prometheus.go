package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	OptimizeOperationsTotal *prometheus.CounterVec
	OptimizeDuration        *prometheus.HistogramVec
	RerouteOperationsTotal  *prometheus.CounterVec
	MatrixBuildsTotal       *prometheus.CounterVec
	MatrixBuildDuration     *prometheus.HistogramVec
	ExternalAPICallsTotal   *prometheus.CounterVec
	CacheOperationsTotal    *prometheus.CounterVec
	ProblemLocationsTotal   *prometheus.HistogramVec
	ProblemDeliveriesTotal  *prometheus.HistogramVec
	UnassignedDeliveries    *prometheus.HistogramVec
	RouteDistanceKm         *prometheus.HistogramVec

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec

	// Трекер активных запросов поверх HTTPRequestsInFlight
	Tracker *RequestTracker
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		// HTTP метрики
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Бизнес-метрики
		OptimizeOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "optimize_operations_total",
				Help:      "Total number of optimization runs",
			},
			[]string{"status"},
		),

		OptimizeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "optimize_duration_seconds",
				Help:      "Duration of optimization runs",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		RerouteOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reroute_operations_total",
				Help:      "Total number of rerouting runs",
			},
			[]string{"reason", "status"},
		),

		MatrixBuildsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_builds_total",
				Help:      "Total number of distance matrix builds",
			},
			[]string{"source", "status"},
		),

		MatrixBuildDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_build_duration_seconds",
				Help:      "Duration of distance matrix builds",
				Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"source"},
		),

		ExternalAPICallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "external_api_calls_total",
				Help:      "Total number of external routing API calls",
			},
			[]string{"api", "status"},
		),

		CacheOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_operations_total",
				Help:      "Total number of cache lookups",
			},
			[]string{"cache", "result"},
		),

		ProblemLocationsTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "problem_locations_total",
				Help:      "Number of locations in processed problems",
				Buckets:   []float64{2, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"operation"},
		),

		ProblemDeliveriesTotal: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "problem_deliveries_total",
				Help:      "Number of deliveries in processed problems",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"operation"},
		),

		UnassignedDeliveries: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "unassigned_deliveries",
				Help:      "Number of deliveries left unassigned per plan",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"operation"},
		),

		RouteDistanceKm: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_distance_km",
				Help:      "Total plan distance in kilometers",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"operation"},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	m.Tracker = NewRequestTracker(m.HTTPRequestsInFlight)

	// Runtime метрики (горутины, память, GC) отдаёт отдельный коллектор
	prometheus.DefaultRegisterer.MustRegister(NewRuntimeCollector(namespace, subsystem))

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("fleetrouting", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest записывает метрики HTTP запроса
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOptimize записывает метрики запуска оптимизации
func (m *Metrics) RecordOptimize(status string, duration time.Duration) {
	m.OptimizeOperationsTotal.WithLabelValues(status).Inc()
	m.OptimizeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordReroute записывает метрики перепланирования
func (m *Metrics) RecordReroute(reason, status string) {
	m.RerouteOperationsTotal.WithLabelValues(reason, status).Inc()
}

// RecordMatrixBuild записывает метрики построения матрицы
func (m *Metrics) RecordMatrixBuild(source string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MatrixBuildsTotal.WithLabelValues(source, status).Inc()
	m.MatrixBuildDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordExternalAPICall записывает вызов внешнего API
func (m *Metrics) RecordExternalAPICall(api, status string) {
	m.ExternalAPICallsTotal.WithLabelValues(api, status).Inc()
}

// RecordCacheLookup записывает результат обращения к кэшу
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheOperationsTotal.WithLabelValues(cache, result).Inc()
}

// RecordProblemSize записывает размер задачи
func (m *Metrics) RecordProblemSize(operation string, locations, deliveries int) {
	m.ProblemLocationsTotal.WithLabelValues(operation).Observe(float64(locations))
	m.ProblemDeliveriesTotal.WithLabelValues(operation).Observe(float64(deliveries))
}

// RecordPlanOutcome записывает итоги плана
func (m *Metrics) RecordPlanOutcome(operation string, unassigned int, totalDistanceKm float64) {
	m.UnassignedDeliveries.WithLabelValues(operation).Observe(float64(unassigned))
	m.RouteDistanceKm.WithLabelValues(operation).Observe(totalDistanceKm)
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}

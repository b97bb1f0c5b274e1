package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func runtimeDesc(namespace, subsystem, name, help string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(namespace, subsystem, name),
		help,
		nil, nil,
	)
}

// RuntimeCollector отдаёт метрики Go runtime (горутины, память, GC)
// при каждом scrape, без фонового опроса
type RuntimeCollector struct {
	goroutines *prometheus.Desc
	memAlloc   *prometheus.Desc
	memTotal   *prometheus.Desc
	memSys     *prometheus.Desc
	gcPause    *prometheus.Desc
	gcRuns     *prometheus.Desc
}

// NewRuntimeCollector создаёт коллектор runtime метрик
func NewRuntimeCollector(namespace, subsystem string) *RuntimeCollector {
	return &RuntimeCollector{
		goroutines: runtimeDesc(namespace, subsystem, "runtime_goroutines", "Number of goroutines"),
		memAlloc:   runtimeDesc(namespace, subsystem, "runtime_memory_alloc_bytes", "Bytes allocated and still in use"),
		memTotal:   runtimeDesc(namespace, subsystem, "runtime_memory_total_alloc_bytes", "Total bytes allocated (even if freed)"),
		memSys:     runtimeDesc(namespace, subsystem, "runtime_memory_sys_bytes", "Bytes obtained from system"),
		gcPause:    runtimeDesc(namespace, subsystem, "runtime_gc_pause_seconds", "Last GC pause duration"),
		gcRuns:     runtimeDesc(namespace, subsystem, "runtime_gc_runs_total", "Total number of completed GC cycles"),
	}
}

// Describe implements prometheus.Collector
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.goroutines
	ch <- c.memAlloc
	ch <- c.memTotal
	ch <- c.memSys
	ch <- c.gcPause
	ch <- c.gcRuns
}

// Collect implements prometheus.Collector
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(runtime.NumGoroutine()))
	ch <- prometheus.MustNewConstMetric(c.memAlloc, prometheus.GaugeValue, float64(stats.Alloc))
	ch <- prometheus.MustNewConstMetric(c.memTotal, prometheus.CounterValue, float64(stats.TotalAlloc))
	ch <- prometheus.MustNewConstMetric(c.memSys, prometheus.GaugeValue, float64(stats.Sys))
	ch <- prometheus.MustNewConstMetric(c.gcRuns, prometheus.CounterValue, float64(stats.NumGC))

	// PauseNs - кольцевой буфер на 256 записей
	if stats.NumGC > 0 {
		last := stats.PauseNs[(stats.NumGC-1)%uint32(len(stats.PauseNs))]
		ch <- prometheus.MustNewConstMetric(c.gcPause, prometheus.GaugeValue, float64(last)/1e9)
	}
}

// RequestTracker считает активные запросы по пути и двигает общий
// in-flight gauge
type RequestTracker struct {
	mu       sync.Mutex
	active   map[string]int
	inFlight prometheus.Gauge
}

// NewRequestTracker создаёт трекер активных запросов
func NewRequestTracker(inFlight prometheus.Gauge) *RequestTracker {
	return &RequestTracker{
		active:   make(map[string]int),
		inFlight: inFlight,
	}
}

// Start отмечает начало запроса
func (t *RequestTracker) Start(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active[path]++
	t.inFlight.Inc()
}

// End отмечает завершение запроса. Лишние End игнорируются,
// чтобы gauge не уходил в минус.
func (t *RequestTracker) End(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active[path] > 0 {
		t.active[path]--
		t.inFlight.Dec()
	}
}

// Timer измеряет длительность операции и пишет её в histogram
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer запускает таймер для histogram с заданными label'ами
func NewTimer(histogram *prometheus.HistogramVec, labels ...string) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram.WithLabelValues(labels...),
	}
}

// ObserveDuration записывает длительность с момента старта
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	t.observer.Observe(duration.Seconds())
	return duration
}

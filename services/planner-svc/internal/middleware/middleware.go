package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Middleware стандартная HTTP обёртка
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке объявления: первый элемент
// оказывается внешним
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// statusRecorder запоминает код ответа для логов и метрик
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Recovery перехватывает паники и возвращает 500 с общим сообщением
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger.Log.Error("Handler panicked",
						"panic", p,
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", RequestIDFromContext(r.Context()),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID присваивает каждому запросу идентификатор. Входящий
// X-Request-ID сохраняется, иначе генерируется новый.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}
			ctx := context.WithValue(r.Context(), requestIDKey, id)
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext возвращает идентификатор запроса, если он есть
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Logging логирует каждый запрос со статусом и длительностью
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logFields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				logFields = append(logFields, "request_id", id)
			}

			if rec.status >= http.StatusInternalServerError {
				logger.Log.Error("Request failed", logFields...)
			} else {
				logger.Log.Info("Request completed", logFields...)
			}
		})
	}
}

// Metrics записывает счётчики и гистограммы HTTP запросов
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			m := metrics.Get()
			m.Tracker.Start(r.URL.Path)
			defer m.Tracker.End(r.URL.Path)

			next.ServeHTTP(rec, r)

			m.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}

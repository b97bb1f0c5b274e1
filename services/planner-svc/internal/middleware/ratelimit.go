package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/ratelimit"
)

// Пути без ограничения частоты
var rateLimitExcluded = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// RateLimit ограничивает частоту запросов по клиенту. При ошибке
// лимитера запрос пропускается (fail open). nil лимитер отключает
// ограничение целиком.
func RateLimit(limiter ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rateLimitExcluded[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Log.Warn("Rate limit check failed", "error", err, "key", key)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				info, infoErr := limiter.GetInfo(r.Context(), key)
				if infoErr != nil {
					info = &ratelimit.LimitInfo{ResetAt: time.Now().Add(time.Minute)}
				}

				logger.Log.Warn("Rate limit exceeded", "key", key, "limit", info.Limit)

				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", info.ResetAt.Format(time.RFC3339))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey извлекает ключ клиента: заголовки прокси, затем адрес
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Первый адрес в списке — исходный клиент
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			return "ip:" + strings.TrimSpace(xff[:idx])
		}
		return "ip:" + xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ip:" + xri
	}

	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		host = host[:idx]
	}
	return "ip:" + host
}

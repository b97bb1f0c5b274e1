package telemetry

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware создаёт HTTP middleware для трейсинга
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := StartSpan(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
			attribute.String("http.user_agent", r.UserAgent()),
		)

		tw := &tracedResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(tw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", tw.status))
		if tw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(tw.status))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	})
}

type tracedResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *tracedResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

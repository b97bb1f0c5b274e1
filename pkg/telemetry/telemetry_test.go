package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func resetGlobal() {
	globalProvider = nil
}

func TestInit_Disabled(t *testing.T) {
	resetGlobal()

	provider, err := Init(context.Background(), Config{
		Enabled:     false,
		ServiceName: "planner",
	})
	require.NoError(t, err)
	require.NotNil(t, provider)

	// Без экспортёра provider всё равно отдаёт рабочий (noop) tracer
	assert.NotNil(t, provider.Tracer())
	assert.Nil(t, provider.tp)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestGet_BeforeInit(t *testing.T) {
	resetGlobal()

	provider := Get()
	require.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer())
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want sdktrace.Sampler
	}{
		{"всё", 1.0, sdktrace.AlwaysSample()},
		{"больше единицы", 2.5, sdktrace.AlwaysSample()},
		{"ничего", 0, sdktrace.NeverSample()},
		{"отрицательная доля", -1, sdktrace.NeverSample()},
		{"половина", 0.5, sdktrace.TraceIDRatioBased(0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want.Description(), samplerFor(tt.rate).Description())
		})
	}
}

func TestStartSpan_NoopSafe(t *testing.T) {
	resetGlobal()

	ctx, span := StartSpan(context.Background(), "solve")
	require.NotNil(t, span)
	defer span.End()

	// Хелперы не должны паниковать на noop-span
	AddEvent(ctx, "matrix-built", attribute.Int("locations", 12))
	SetAttributes(ctx, attribute.String("solver", "heuristic"))
	SetError(ctx, errors.New("no solution"))
	RecordError(ctx, context.DeadlineExceeded)

	assert.NotNil(t, SpanFromContext(ctx))
}

func TestWithAttributes(t *testing.T) {
	assert.NotNil(t, WithAttributes(attribute.String("key", "value")))
}

func TestProvider_Tracer(t *testing.T) {
	p := &Provider{tracer: noop.NewTracerProvider().Tracer("test")}
	assert.NotNil(t, p.Tracer())
}

func TestProblemAttributes(t *testing.T) {
	attrs := ProblemAttributes(10, 3, 20)
	require.Len(t, attrs, 3)

	keys := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		keys[string(a.Key)] = true
	}
	assert.True(t, keys[AttrProblemLocations])
	assert.True(t, keys[AttrProblemVehicles])
	assert.True(t, keys[AttrProblemDeliveries])
}

func TestSpanAttributeHelpers(t *testing.T) {
	assert.Len(t, SolverAttributes("success", 50.5, 25.0, 2), 4)
	assert.Len(t, MatrixAttributes("api", 10, true), 3)
	assert.Len(t, ValidationAttributes(3, false), 2)
}

func TestHTTPMiddleware_PassesThrough(t *testing.T) {
	resetGlobal()

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/optimize", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
)

func googleTestConfig(apiURL string) *config.RoutingConfig {
	return &config.RoutingConfig{
		APIKey:        "test-key",
		APIURL:        apiURL,
		ElementBudget: 100,
		MaxRetries:    2,
		RetryDelay:    time.Millisecond,
		BackoffFactor: 2,
	}
}

func googleLocations(n int) []*domain.Location {
	locs := make([]*domain.Location, n)
	for i := range locs {
		locs[i] = &domain.Location{
			ID:        string(rune('a' + i)),
			Latitude:  55.0 + float64(i)*0.1,
			Longitude: 37.0 + float64(i)*0.1,
		}
	}
	return locs
}

func okResponse(origins, destinations int) googleResponse {
	resp := googleResponse{Status: "OK"}
	for i := 0; i < origins; i++ {
		row := googleRow{}
		for j := 0; j < destinations; j++ {
			row.Elements = append(row.Elements, googleElement{
				Status:   "OK",
				Distance: googleValue{Value: 5000}, // 5 km
				Duration: googleValue{Value: 600},  // 10 min
			})
		}
		resp.Rows = append(resp.Rows, row)
	}
	return resp
}

func TestGoogleClient_BuildMatrix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.NotEmpty(t, r.URL.Query().Get("origins"))

		_ = json.NewEncoder(w).Encode(okResponse(2, 2))
	}))
	defer srv.Close()

	client := NewGoogleClient(googleTestConfig(srv.URL))
	m, err := client.BuildMatrix(context.Background(), googleLocations(2))
	require.NoError(t, err)

	assert.InDelta(t, 5.0, m.Distance[0][1], 1e-9)
	assert.InDelta(t, 10.0, m.Time[0][1], 1e-9)
	// Diagonal stays zero regardless of API payload
	assert.Zero(t, m.Distance[0][0])
}

func TestGoogleClient_ElementFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := okResponse(2, 2)
		resp.Rows[0].Elements[1] = googleElement{Status: "ZERO_RESULTS"}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewGoogleClient(googleTestConfig(srv.URL))
	m, err := client.BuildMatrix(context.Background(), googleLocations(2))
	require.NoError(t, err)

	// Unresolvable element gets MaxSafe substitutes
	assert.Equal(t, domain.MaxSafeDistance, m.Distance[0][1])
	assert.Equal(t, domain.MaxSafeTime, m.Time[0][1])
	// Other elements are untouched
	assert.InDelta(t, 5.0, m.Distance[1][0], 1e-9)
}

func TestGoogleClient_AuthFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(googleResponse{Status: "REQUEST_DENIED", ErrorMessage: "bad key"})
	}))
	defer srv.Close()

	client := NewGoogleClient(googleTestConfig(srv.URL))
	_, err := client.BuildMatrix(context.Background(), googleLocations(2))

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeAPIAuthFailed))
	// Auth errors must not be retried
	assert.Equal(t, int32(1), calls.Load())
}

func TestGoogleClient_RateLimitRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(googleResponse{Status: "OVER_QUERY_LIMIT"})
			return
		}
		_ = json.NewEncoder(w).Encode(okResponse(2, 2))
	}))
	defer srv.Close()

	client := NewGoogleClient(googleTestConfig(srv.URL))
	m, err := client.BuildMatrix(context.Background(), googleLocations(2))

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.InDelta(t, 5.0, m.Distance[0][1], 1e-9)
}

func TestGoogleClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewGoogleClient(googleTestConfig(srv.URL))
	_, err := client.BuildMatrix(context.Background(), googleLocations(2))

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeAPIUnavailable))
	// Initial attempt plus MaxRetries
	assert.Equal(t, int32(3), calls.Load())
}

func TestGoogleClient_Batching(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		origins := len(splitPipe(r.URL.Query().Get("origins")))
		destinations := len(splitPipe(r.URL.Query().Get("destinations")))
		assert.LessOrEqual(t, origins*destinations, 4)
		_ = json.NewEncoder(w).Encode(okResponse(origins, destinations))
	}))
	defer srv.Close()

	cfg := googleTestConfig(srv.URL)
	cfg.ElementBudget = 4

	client := NewGoogleClient(cfg)
	m, err := client.BuildMatrix(context.Background(), googleLocations(5))
	require.NoError(t, err)

	// 5x5 elements with a budget of 4 needs multiple batches
	assert.Greater(t, calls.Load(), int32(1))
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i == j {
				assert.Zero(t, m.Distance[i][j])
			} else {
				assert.InDelta(t, 5.0, m.Distance[i][j], 1e-9)
			}
		}
	}
}

func TestGoogleClient_NoKey(t *testing.T) {
	client := NewGoogleClient(&config.RoutingConfig{})
	_, err := client.BuildMatrix(context.Background(), googleLocations(2))

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeAPIAuthFailed))
}

func splitPipe(s string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
)

func init() {
	logger.Init("error")
}

var testIDs = []string{"depot", "a", "b", "c"}

func TestParseTrafficPayload_Pairs(t *testing.T) {
	payload := &TrafficPayload{
		LocationPairs: [][]string{{"depot", "a"}, {"a", "b"}},
		Factors:       []float64{1.5, 2.0},
	}

	factors, err := ParseTrafficPayload(payload, testIDs)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, factors[domain.PairKey{From: 0, To: 1}], 1e-9)
	assert.InDelta(t, 2.0, factors[domain.PairKey{From: 1, To: 2}], 1e-9)
	assert.Len(t, factors, 2)
}

func TestParseTrafficPayload_Segments(t *testing.T) {
	payload := &TrafficPayload{
		Segments: map[string]float64{"a-b": 1.7, "garbage": 2.0},
	}

	factors, err := ParseTrafficPayload(payload, testIDs)
	require.NoError(t, err)

	assert.InDelta(t, 1.7, factors[domain.PairKey{From: 1, To: 2}], 1e-9)
	assert.Len(t, factors, 1)
}

func TestParseTrafficPayload_LengthMismatch(t *testing.T) {
	payload := &TrafficPayload{
		LocationPairs: [][]string{{"depot", "a"}},
		Factors:       []float64{1.5, 9.9},
	}

	_, err := ParseTrafficPayload(payload, testIDs)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidTrafficData))
}

func TestParseTrafficPayload_UnknownLocationSkipped(t *testing.T) {
	payload := &TrafficPayload{
		LocationPairs: [][]string{{"depot", "nowhere"}, {"depot", "a"}},
		Factors:       []float64{2.0, 1.2},
	}

	factors, err := ParseTrafficPayload(payload, testIDs)
	require.NoError(t, err)
	assert.Len(t, factors, 1)
}

func TestParseTrafficPayload_Empty(t *testing.T) {
	factors, err := ParseTrafficPayload(&TrafficPayload{}, testIDs)
	require.NoError(t, err)
	assert.Empty(t, factors)
}

func TestMockTrafficFactors_Deterministic(t *testing.T) {
	s := NewService("", nil)

	first := s.MockTrafficFactors(testIDs)
	second := s.MockTrafficFactors(testIDs)
	assert.Equal(t, first, second)

	for key, factor := range first {
		assert.NotEqual(t, key.From, key.To)
		assert.GreaterOrEqual(t, factor, 1.0)
		assert.Less(t, factor, 2.0)
	}
}

func TestCalculateWeatherImpact(t *testing.T) {
	assert.InDelta(t, 1.2, CalculateWeatherImpact(WeatherLight), 1e-9)
	assert.InDelta(t, 1.5, CalculateWeatherImpact(WeatherModerate), 1e-9)
	assert.InDelta(t, 1.8, CalculateWeatherImpact(WeatherHeavy), 1e-9)
	assert.InDelta(t, 1.0, CalculateWeatherImpact(WeatherClear), 1e-9)
	assert.InDelta(t, 1.0, CalculateWeatherImpact("snownado"), 1e-9)
}

func TestWeatherPairFactors(t *testing.T) {
	factors := WeatherPairFactors(map[int]float64{1: 1.2, 3: 1.8})

	assert.Len(t, factors, 2)
	assert.InDelta(t, 1.8, factors[domain.PairKey{From: 1, To: 3}], 1e-9)
	assert.InDelta(t, 1.8, factors[domain.PairKey{From: 3, To: 1}], 1e-9)
}

func TestCombineTrafficAndWeather(t *testing.T) {
	traffic := domain.TrafficFactors{
		{From: 0, To: 1}: 1.5,
		{From: 1, To: 2}: 2.0,
	}
	weather := domain.TrafficFactors{
		{From: 0, To: 1}: 1.2, // overlap: multiply
		{From: 2, To: 3}: 1.8, // new cell: copy
	}

	combined := CombineTrafficAndWeather(traffic, weather)

	assert.InDelta(t, 1.8, combined[domain.PairKey{From: 0, To: 1}], 1e-9)
	assert.InDelta(t, 2.0, combined[domain.PairKey{From: 1, To: 2}], 1e-9)
	assert.InDelta(t, 1.8, combined[domain.PairKey{From: 2, To: 3}], 1e-9)
}

func TestGetTrafficData_Backend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/traffic", r.URL.Path)
		_ = json.NewEncoder(w).Encode(TrafficPayload{
			LocationPairs: [][]string{{"depot", "a"}},
			Factors:       []float64{1.4},
		})
	}))
	defer srv.Close()

	s := NewService(srv.URL, &config.RetryConfig{MaxAttempts: 2})
	factors := s.GetTrafficData(context.Background(), testIDs)

	assert.InDelta(t, 1.4, factors[domain.PairKey{From: 0, To: 1}], 1e-9)
	assert.Len(t, factors, 1)
}

func TestGetTrafficData_BackendDownFallsBackToMock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewService(srv.URL, &config.RetryConfig{MaxAttempts: 1})
	factors := s.GetTrafficData(context.Background(), testIDs)

	// The mock answer is deterministic for the same location set
	assert.Equal(t, s.MockTrafficFactors(testIDs), factors)
}

func TestGetRoadblocks_Mock(t *testing.T) {
	s := NewService("", nil)
	blocks := s.GetRoadblocks(context.Background(), testIDs)

	assert.LessOrEqual(t, len(blocks), 3)
	for _, b := range blocks {
		assert.NotEqual(t, b[0], b[1])
	}
}

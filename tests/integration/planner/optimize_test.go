//go:build integration

package planner_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimize_Pipeline(t *testing.T) {
	srv := newTestServer(t)

	var resp planResponse
	status := postJSON(t, srv, "/optimize", testProblem(), &resp)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
	assert.Empty(t, resp.UnassignedDeliveries)
	require.Len(t, resp.Routes, 1)

	route := resp.Routes[0]
	assert.Equal(t, "v1", route.VehicleID)
	require.NotEmpty(t, route.Stops)
	assert.Equal(t, "depot", route.Stops[0])
	assert.Equal(t, "depot", route.Stops[len(route.Stops)-1])

	// Маршрут аннотирован посегментно и покрывает все остановки
	require.Len(t, route.Segments, len(route.Stops)-1)
	for _, seg := range route.Segments {
		assert.NotEmpty(t, seg.Path)
		assert.Positive(t, seg.Distance)
	}
	assert.Positive(t, resp.TotalDistance)
	assert.Positive(t, resp.TotalCost)
}

func TestOptimize_WithTrafficData(t *testing.T) {
	srv := newTestServer(t)

	base := testProblem()
	var clean planResponse
	require.Equal(t, http.StatusOK, postJSON(t, srv, "/optimize", base, &clean))

	// Замедляем все дуги в обе стороны, объехать пробку нельзя
	jammed := testProblem()
	jammed["traffic_data"] = map[string]any{
		"location_pairs": [][]string{
			{"depot", "a"}, {"a", "depot"},
			{"depot", "b"}, {"b", "depot"},
			{"a", "b"}, {"b", "a"},
		},
		"factors": []float64{2.5, 2.5, 2.5, 2.5, 2.5, 2.5},
	}

	var resp planResponse
	status := postJSON(t, srv, "/optimize", jammed, &resp)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
	// Пробки удорожают дуги, и это видно в итоговом расстоянии плана
	assert.Greater(t, resp.TotalDistance, clean.TotalDistance)
}

func TestOptimize_EmptyDeliveries(t *testing.T) {
	srv := newTestServer(t)

	problem := testProblem()
	problem["deliveries"] = []map[string]any{}

	var resp planResponse
	status := postJSON(t, srv, "/optimize", problem, &resp)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.Statistics.Info)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, []string{"depot", "depot"}, resp.Routes[0].Stops)
}

func TestOptimize_ValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	problem := testProblem()
	problem["locations"] = []map[string]any{}

	var resp planResponse
	status := postJSON(t, srv, "/optimize", problem, &resp)

	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.Statistics.Error)
	assert.ElementsMatch(t, []string{"d1", "d2"}, resp.UnassignedDeliveries)
}

func TestOptimize_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Post(srv.URL+"/optimize", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := srv.Client().Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

//go:build integration

package planner_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"fleetrouting/pkg/logger"
	plannersvc "fleetrouting/services/planner-svc"
)

func init() {
	logger.Init("error")
}

// newTestServer поднимает HTTP поверхность сервиса планирования
// in-process: haversine матрицы, кэш в памяти, без внешних API
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(plannersvc.NewBenchmarkHandler())
	t.Cleanup(srv.Close)
	return srv
}

// planResponse ответ /optimize и /reroute
type planResponse struct {
	Status        string  `json:"status"`
	TotalDistance float64 `json:"total_distance"`
	TotalCost     float64 `json:"total_cost"`
	Routes        []struct {
		VehicleID string   `json:"vehicle_id"`
		Stops     []string `json:"stops"`
		Segments  []struct {
			FromLocation string   `json:"from_location"`
			ToLocation   string   `json:"to_location"`
			Path         []string `json:"path"`
			Distance     float64  `json:"distance"`
		} `json:"segments"`
	} `json:"routes"`
	UnassignedDeliveries []string `json:"unassigned_deliveries"`
	Statistics           struct {
		Info          string `json:"info"`
		Error         string `json:"error"`
		ReroutingInfo *struct {
			Reason              string   `json:"reason"`
			CompletedDeliveries []string `json:"completed_deliveries"`
			RemainingDeliveries []string `json:"remaining_deliveries"`
		} `json:"rerouting_info"`
	} `json:"statistics"`
}

// postJSON отправляет запрос и декодирует ответ в out
func postJSON(t *testing.T, srv *httptest.Server, path string, body any, out any) int {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := srv.Client().Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// testProblem задача на три точки: депо и две доставки
func testProblem() map[string]any {
	return map[string]any{
		"locations": []map[string]any{
			{"id": "depot", "latitude": 55.75, "longitude": 37.62, "is_depot": true},
			{"id": "a", "latitude": 55.76, "longitude": 37.62},
			{"id": "b", "latitude": 55.77, "longitude": 37.62},
		},
		"vehicles": []map[string]any{
			{"id": "v1", "capacity": 100, "start_location_id": "depot", "cost_per_km": 2, "fixed_cost": 10},
		},
		"deliveries": []map[string]any{
			{"id": "d1", "location_id": "a", "demand": 10},
			{"id": "d2", "location_id": "b", "demand": 10},
		},
	}
}

package services_benchmark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetrouting/pkg/logger"
	plannersvc "fleetrouting/services/planner-svc"
)

var handler http.Handler

// init поднимает HTTP поверхность сервиса in-process
func init() {
	logger.Init("error")
	handler = plannersvc.NewBenchmarkHandler()
}

// optimizePayload генерирует задачу: depot плюс size точек вдоль меридиана.
// nonce меняет спрос, чтобы каждый запрос имел свой отпечаток и не
// попадал в кэш результатов.
func optimizePayload(size, nonce int) []byte {
	locations := []map[string]any{
		{"id": "depot", "latitude": 55.75, "longitude": 37.62, "is_depot": true},
	}
	deliveries := make([]map[string]any, 0, size)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("loc%d", i)
		locations = append(locations, map[string]any{
			"id":        id,
			"latitude":  55.75 + float64(i+1)*0.01,
			"longitude": 37.62,
		})
		deliveries = append(deliveries, map[string]any{
			"id":          fmt.Sprintf("d%d", i),
			"location_id": id,
			"demand":      float64(1 + (nonce+i)%20),
		})
	}

	payload, err := json.Marshal(map[string]any{
		"locations": locations,
		"vehicles": []map[string]any{
			{"id": "v1", "capacity": 10000, "start_location_id": "depot", "cost_per_km": 2},
			{"id": "v2", "capacity": 10000, "start_location_id": "depot", "cost_per_km": 2},
		},
		"deliveries": deliveries,
	})
	if err != nil {
		panic(err)
	}
	return payload
}

func post(b *testing.B, path string, payload []byte) {
	b.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		b.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func BenchmarkOptimize(b *testing.B) {
	sizes := []int{5, 15, 40}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("deliveries_%d", size), func(b *testing.B) {
			payloads := make([][]byte, 64)
			for i := range payloads {
				payloads[i] = optimizePayload(size, i)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				post(b, "/optimize", payloads[i%len(payloads)])
			}
		})
	}
}

func BenchmarkOptimize_Cached(b *testing.B) {
	payload := optimizePayload(15, 0)
	post(b, "/optimize", payload)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		post(b, "/optimize", payload)
	}
}

func BenchmarkReroute(b *testing.B) {
	base := optimizePayload(10, 0)

	var problem map[string]any
	if err := json.Unmarshal(base, &problem); err != nil {
		b.Fatal(err)
	}

	payload, err := json.Marshal(map[string]any{
		"current_routes": []map[string]any{
			{"vehicle_id": "v1", "stops": []string{"depot", "loc0", "loc1", "depot"}},
		},
		"locations":            problem["locations"],
		"vehicles":             problem["vehicles"],
		"original_deliveries":  problem["deliveries"],
		"completed_deliveries": []string{"d0"},
		"reroute_type":         "traffic",
		"traffic_data": map[string]any{
			"location_pairs": [][]string{{"depot", "loc1"}},
			"factors":        []float64{2.0},
		},
	})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		post(b, "/reroute", payload)
	}
}

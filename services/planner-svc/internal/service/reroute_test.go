package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetrouting/pkg/domain"
)

func newTestRerouter(t *testing.T) *Rerouter {
	t.Helper()
	return NewRerouter(newTestOptimizer(t))
}

func currentPlan() *domain.OptimizationResult {
	return &domain.OptimizationResult{
		Status: domain.StatusSuccess,
		Routes: [][]string{{"depot", "a", "b", "depot"}},
		DetailedRoutes: []*domain.DetailedRoute{
			{VehicleID: "v1", Stops: []string{"depot", "a", "b", "depot"}},
		},
		AssignedVehicles: map[string]int{"v1": 0},
	}
}

func rerouteRequest() *RerouteRequest {
	locations, vehicles, deliveries := testProblem()
	return &RerouteRequest{
		Current:             currentPlan(),
		Locations:           locations,
		Vehicles:            vehicles,
		OriginalDeliveries:  deliveries,
		CompletedDeliveries: []string{"d1"},
	}
}

func TestPrepare_RemainingAndVehicleAdvance(t *testing.T) {
	r := newTestRerouter(t)
	req := rerouteRequest()

	p := r.prepare(req)

	require.Len(t, p.remaining, 1)
	assert.Equal(t, "d2", p.remaining[0].ID)

	// d1 at "a" is done: the vehicle restarts from the next stop "b"
	assert.Equal(t, "b", p.vehicles[0].StartLocationID)

	// Deep copies: originals stay untouched
	assert.Equal(t, "depot", req.Vehicles[0].StartLocationID)
}

func TestPrepare_NoCompleted(t *testing.T) {
	r := newTestRerouter(t)
	req := rerouteRequest()
	req.CompletedDeliveries = nil

	p := r.prepare(req)

	assert.Len(t, p.remaining, 2)
	assert.Equal(t, "depot", p.vehicles[0].StartLocationID)
}

func TestForTraffic(t *testing.T) {
	r := newTestRerouter(t)
	factors := domain.TrafficFactors{{From: 0, To: 1}: 2.5}

	result := r.ForTraffic(context.Background(), rerouteRequest(), factors)

	require.NotNil(t, result)
	assert.True(t, result.IsSuccess())

	info := result.Statistics.ReroutingInfo
	require.NotNil(t, info)
	assert.Equal(t, domain.RerouteReasonTraffic, info.Reason)
	assert.Equal(t, []string{"d1"}, info.CompletedDeliveries)
	assert.Equal(t, []string{"d2"}, info.RemainingDeliveries)
	assert.Equal(t, []string{"a", "depot"}, info.AffectedLocations)

	// Completed work is not replanned
	for _, route := range result.Routes {
		assert.NotContains(t, route, "a")
	}
}

func TestForDelay(t *testing.T) {
	r := newTestRerouter(t)

	result := r.ForDelay(context.Background(), rerouteRequest(), map[string]float64{"b": 20})

	require.NotNil(t, result)
	assert.True(t, result.IsSuccess())

	info := result.Statistics.ReroutingInfo
	require.NotNil(t, info)
	assert.Equal(t, domain.RerouteReasonServiceDelay, info.Reason)
	assert.Equal(t, []string{"b"}, info.AffectedLocations)
	assert.InDelta(t, 20, info.DelayMinutes, 1e-9)
}

func TestForDelay_UnknownLocationIgnored(t *testing.T) {
	r := newTestRerouter(t)

	result := r.ForDelay(context.Background(), rerouteRequest(), map[string]float64{"nowhere": 20})

	require.NotNil(t, result)
	assert.True(t, result.IsSuccess())
}

func TestForRoadblock(t *testing.T) {
	r := newTestRerouter(t)

	result := r.ForRoadblock(context.Background(), rerouteRequest(), [][2]string{{"a", "b"}})

	require.NotNil(t, result)
	assert.True(t, result.IsSuccess())

	info := result.Statistics.ReroutingInfo
	require.NotNil(t, info)
	assert.Equal(t, domain.RerouteReasonRoadblock, info.Reason)
	assert.Equal(t, []string{"a-b"}, info.BlockedSegments)
	// A blocked segment penalizes the pair but never strands the delivery
	assert.Empty(t, result.UnassignedDeliveries)
	// Completed d1 at "a" stays out of the new plan
	for _, route := range result.Routes {
		assert.NotContains(t, route, "a")
	}
}

func TestForRoadblock_AvoidsBlockedPair(t *testing.T) {
	r := newTestRerouter(t)
	locations, _, deliveries := testProblem()
	req := &RerouteRequest{
		Current: &domain.OptimizationResult{
			Status:           domain.StatusSuccess,
			Routes:           [][]string{{"depot", "a", "b", "depot"}},
			AssignedVehicles: map[string]int{"v1": 0},
		},
		Locations: locations,
		Vehicles: []*domain.Vehicle{
			{ID: "v1", Capacity: 100, StartLocationID: "depot", CostPerKm: 2, FixedCost: 10},
			{ID: "v2", Capacity: 100, StartLocationID: "depot", CostPerKm: 2, FixedCost: 10},
		},
		OriginalDeliveries: deliveries,
	}

	result := r.ForRoadblock(context.Background(), req, [][2]string{{"a", "b"}})

	require.NotNil(t, result)
	require.True(t, result.IsSuccess())
	assert.Empty(t, result.UnassignedDeliveries)

	// The new plan never drives the blocked pair back to back
	for _, route := range result.Routes {
		assertNotAdjacent(t, route, "a", "b")
	}
}

// assertNotAdjacent fails when x and y appear consecutively (either order)
// in the stop sequence.
func assertNotAdjacent(t *testing.T, stops []string, x, y string) {
	t.Helper()
	for i := 0; i+1 < len(stops); i++ {
		blocked := (stops[i] == x && stops[i+1] == y) || (stops[i] == y && stops[i+1] == x)
		assert.False(t, blocked, "route %v traverses blocked pair %s-%s", stops, x, y)
	}
}

func TestForRoadblock_UnknownSegmentSkipped(t *testing.T) {
	r := newTestRerouter(t)

	result := r.ForRoadblock(context.Background(), rerouteRequest(), [][2]string{{"ghost", "b"}})

	require.NotNil(t, result)
	assert.True(t, result.IsSuccess())
	assert.Equal(t, []string{"ghost-b"}, result.Statistics.ReroutingInfo.BlockedSegments)
}

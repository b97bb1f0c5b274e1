package annotate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
)

func init() {
	logger.Init("error")
}

func testGraph() *domain.Graph {
	g := domain.NewGraph()
	for _, id := range []string{"depot", "a", "b", "island"} {
		g.AddNode(&domain.Node{ID: id})
	}
	g.AddEdge(&domain.Edge{From: "depot", To: "a", Distance: 2, Time: 3})
	g.AddEdge(&domain.Edge{From: "a", To: "depot", Distance: 2, Time: 3})
	g.AddEdge(&domain.Edge{From: "a", To: "b", Distance: 1, Time: 2})
	g.AddEdge(&domain.Edge{From: "b", To: "a", Distance: 1, Time: 2})
	g.AddEdge(&domain.Edge{From: "b", To: "depot", Distance: 4, Time: 5})
	return g
}

func routeResult(stops ...string) *domain.OptimizationResult {
	return &domain.OptimizationResult{
		Status: domain.StatusSuccess,
		Routes: [][]string{stops},
		DetailedRoutes: []*domain.DetailedRoute{
			{VehicleID: "v1", Stops: stops, TotalDistance: 42},
		},
	}
}

func TestAnnotate_FillsSegments(t *testing.T) {
	a := NewWithGraph(testGraph())
	result := a.Annotate(context.Background(), routeResult("depot", "a", "b", "depot"))

	segs := result.DetailedRoutes[0].Segments
	require.Len(t, segs, 3)

	assert.Equal(t, []string{"depot", "a"}, segs[0].Path)
	assert.InDelta(t, 2, segs[0].Distance, 1e-9)

	assert.Equal(t, []string{"a", "b"}, segs[1].Path)
	assert.InDelta(t, 1, segs[1].Distance, 1e-9)

	// b -> depot direct costs 4, via a costs 3
	assert.Equal(t, []string{"b", "a", "depot"}, segs[2].Path)
	assert.InDelta(t, 3, segs[2].Distance, 1e-9)
}

func TestAnnotate_UnreachablePair(t *testing.T) {
	a := NewWithGraph(testGraph())
	result := a.Annotate(context.Background(), routeResult("island", "depot", "a"))

	segs := result.DetailedRoutes[0].Segments
	require.Len(t, segs, 2)

	assert.NotEmpty(t, segs[0].Error)
	assert.Zero(t, segs[0].Distance)

	// A failed pair never blocks the segments after it
	assert.Empty(t, segs[1].Error)
}

func TestAnnotate_PreservesTotalDistance(t *testing.T) {
	a := NewWithGraph(testGraph())
	result := a.Annotate(context.Background(), routeResult("depot", "a"))

	assert.InDelta(t, 42, result.DetailedRoutes[0].TotalDistance, 1e-9)
}

func TestAnnotate_StopsFromSegments(t *testing.T) {
	result := &domain.OptimizationResult{
		Status: domain.StatusSuccess,
		DetailedRoutes: []*domain.DetailedRoute{{
			VehicleID: "v1",
			Segments: []*domain.RouteSegment{
				{FromLocation: "depot", ToLocation: "a"},
				{FromLocation: "a", ToLocation: "b"},
			},
		}},
	}

	a := NewWithGraph(testGraph())
	a.Annotate(context.Background(), result)

	assert.Equal(t, []string{"depot", "a", "b"}, result.DetailedRoutes[0].Stops)
}

func TestAnnotate_FromMatrix(t *testing.T) {
	m := &domain.Matrix{
		LocationIDs: []string{"depot", "a"},
		Distance: [][]float64{
			{0, 5},
			{5, 0},
		},
		Time: [][]float64{
			{0, 6},
			{6, 0},
		},
	}
	locations := []*domain.Location{
		{ID: "depot", Latitude: 55, Longitude: 37},
		{ID: "a", Latitude: 55.1, Longitude: 37.1},
	}

	a, err := NewWithMatrix(locations, m)
	require.NoError(t, err)

	result := a.Annotate(context.Background(), routeResult("depot", "a", "depot"))
	segs := result.DetailedRoutes[0].Segments
	require.Len(t, segs, 2)
	assert.InDelta(t, 5, segs[0].Distance, 1e-9)
}

func TestAnnotate_SameStop(t *testing.T) {
	a := NewWithGraph(testGraph())
	result := a.Annotate(context.Background(), routeResult("depot", "depot"))

	segs := result.DetailedRoutes[0].Segments
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"depot"}, segs[0].Path)
	assert.Empty(t, segs[0].Error)
}

package annotate

import (
	"context"

	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/services/planner-svc/internal/pathfind"
)

// Annotator enriches detailed routes with node-level shortest paths through
// a road graph. Each successive stop pair becomes a RouteSegment; failures
// are captured per segment so one unreachable pair never aborts the rest of
// the route.
type Annotator struct {
	graph *domain.Graph
}

// NewWithGraph creates an annotator over a prebuilt road graph.
func NewWithGraph(g *domain.Graph) *Annotator {
	return &Annotator{graph: g}
}

// NewWithMatrix creates an annotator by deriving the road graph from a cost
// matrix. Entries at or beyond MaxSafeDistance produce no edge.
func NewWithMatrix(locations []*domain.Location, m *domain.Matrix) (*Annotator, error) {
	g, err := domain.GraphFromMatrix(locations, m)
	if err != nil {
		return nil, err
	}
	return &Annotator{graph: g}, nil
}

// Annotate fills in segments for every detailed route in place and returns
// the same result. The result's total_distance is never modified: segment
// distances are informational.
func (a *Annotator) Annotate(ctx context.Context, result *domain.OptimizationResult) *domain.OptimizationResult {
	if result == nil || a.graph == nil {
		return result
	}

	for _, route := range result.DetailedRoutes {
		a.annotateRoute(ctx, route)
	}
	return result
}

func (a *Annotator) annotateRoute(ctx context.Context, route *domain.DetailedRoute) {
	if route == nil {
		return
	}
	if len(route.Stops) == 0 && len(route.Segments) > 0 {
		route.Stops = stopsFromSegments(route.Segments)
	}
	if len(route.Stops) < 2 {
		return
	}

	segments := make([]*domain.RouteSegment, 0, len(route.Stops)-1)

	// One Dijkstra tree per distinct source serves every pair leaving it.
	trees := make(map[string]*pathfind.Result)

	for i := 0; i+1 < len(route.Stops); i++ {
		from, to := route.Stops[i], route.Stops[i+1]
		segments = append(segments, a.buildSegment(ctx, trees, from, to))
	}
	route.Segments = segments
}

func (a *Annotator) buildSegment(ctx context.Context, trees map[string]*pathfind.Result, from, to string) *domain.RouteSegment {
	seg := &domain.RouteSegment{
		FromLocation: from,
		ToLocation:   to,
		Path:         []string{},
	}
	if from == to {
		seg.Path = []string{from}
		return seg
	}

	tree, ok := trees[from]
	if !ok {
		var err error
		tree, err = pathfind.ShortestPaths(ctx, a.graph, from)
		if err != nil {
			logger.Log.Warn("Route segment annotation failed",
				"from", from,
				"to", to,
				"error", err,
			)
			seg.Error = err.Error()
			return seg
		}
		trees[from] = tree
	}
	if tree.Canceled {
		seg.Error = "path search canceled"
		return seg
	}

	path := tree.PathTo(to)
	if path == nil {
		seg.Error = "no path between locations"
		return seg
	}

	seg.Path = path
	seg.Distance = tree.DistanceTo(to)
	return seg
}

// stopsFromSegments reconstructs a stop list from segment endpoints.
func stopsFromSegments(segments []*domain.RouteSegment) []string {
	stops := make([]string, 0, len(segments)+1)
	for i, seg := range segments {
		if i == 0 {
			stops = append(stops, seg.FromLocation)
		}
		stops = append(stops, seg.ToLocation)
	}
	return stops
}

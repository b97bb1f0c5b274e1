package solver

import (
	"context"
	"errors"
	"time"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
)

// EmptyProblemInfo is reported when a plan is requested with no deliveries.
const EmptyProblemInfo = "Empty problem: direct depot-to-depot routes created"

// Solver runs the vehicle routing engine over a cost matrix.
type Solver struct {
	cfg *config.SolverConfig
}

// New creates a solver with the given configuration.
func New(cfg *config.SolverConfig) *Solver {
	return &Solver{cfg: cfg}
}

// Solve plans routes without time-window constraints. The matrix time values,
// when present, drive the load-balancing span term.
func (s *Solver) Solve(
	ctx context.Context,
	m *domain.Matrix,
	vehicles []*domain.Vehicle,
	deliveries []*domain.Delivery,
	depotIndex int,
) *domain.OptimizationResult {
	return s.run(ctx, m, vehicles, deliveries, depotIndex, nil, false)
}

// SolveWithTimeWindows plans routes honoring per-location time windows and
// service times taken from locations.
func (s *Solver) SolveWithTimeWindows(
	ctx context.Context,
	m *domain.Matrix,
	vehicles []*domain.Vehicle,
	deliveries []*domain.Delivery,
	depotIndex int,
	locations []*domain.Location,
) *domain.OptimizationResult {
	return s.run(ctx, m, vehicles, deliveries, depotIndex, locations, true)
}

func (s *Solver) run(
	ctx context.Context,
	m *domain.Matrix,
	vehicles []*domain.Vehicle,
	deliveries []*domain.Delivery,
	depotIndex int,
	locations []*domain.Location,
	timeWindows bool,
) *domain.OptimizationResult {
	started := time.Now()

	if err := m.Validate(); err != nil {
		return failAll(err.Error(), deliveries)
	}
	if len(vehicles) == 0 {
		return failAll(apperror.ErrEmptyVehicles.Message, deliveries)
	}
	if depotIndex < 0 || depotIndex >= m.Size() {
		return failAll("depot index out of range", deliveries)
	}

	if len(deliveries) == 0 {
		return s.emptyProblem(m, vehicles, depotIndex)
	}

	md, err := buildModel(m, vehicles, deliveries, depotIndex, s.cfg, locations, timeWindows)
	if err != nil {
		logger.Log.Warn("Solver rejected problem encoding", "error", err)
		return failAll(errorMessage(err), deliveries)
	}

	e := newEngine(ctx, md, s.timeLimit())
	e.solve()

	result := s.assemble(m, md, e, deliveries)
	result.Statistics.SolveTimeMs = time.Since(started).Milliseconds()

	logger.Log.Info("Solver finished",
		"status", result.Status,
		"vehicles", len(vehicles),
		"deliveries", len(deliveries),
		"unassigned", len(result.UnassignedDeliveries),
		"duration", time.Since(started),
	)
	return result
}

func (s *Solver) timeLimit() time.Duration {
	if s.cfg.TimeLimit > 0 {
		return s.cfg.TimeLimit
	}
	return 30 * time.Second
}

func (s *Solver) speed() float64 {
	if s.cfg.SpeedKmh > 0 {
		return s.cfg.SpeedKmh
	}
	return 50
}

// emptyProblem returns the trivial plan: one direct start-to-end route per
// vehicle.
func (s *Solver) emptyProblem(m *domain.Matrix, vehicles []*domain.Vehicle, depotIndex int) *domain.OptimizationResult {
	result := &domain.OptimizationResult{
		Status:           domain.StatusSuccess,
		Routes:           [][]string{},
		AssignedVehicles: map[string]int{},
		Statistics:       domain.Statistics{Info: EmptyProblemInfo},
	}

	index := make(map[string]int, m.Size())
	for i, id := range m.LocationIDs {
		index[id] = i
	}

	for _, v := range vehicles {
		start, end := depotIndex, depotIndex
		if idx, ok := index[v.StartLocationID]; ok && v.StartLocationID != "" {
			start = idx
		}
		if idx, ok := index[v.EndLocationID]; ok && v.EndLocationID != "" {
			end = idx
		} else {
			end = start
		}

		stops := []string{m.LocationIDs[start], m.LocationIDs[end]}
		dist := m.Distance[start][end]

		result.Routes = append(result.Routes, stops)
		result.AssignedVehicles[v.ID] = len(result.Routes) - 1
		result.DetailedRoutes = append(result.DetailedRoutes, &domain.DetailedRoute{
			VehicleID:     v.ID,
			Stops:         stops,
			Segments:      []*domain.RouteSegment{},
			TotalDistance: dist,
			TotalTime:     m.Time[start][end],
		})
		result.TotalDistance += dist
	}
	return result
}

// assemble converts the engine state into the domain result.
func (s *Solver) assemble(m *domain.Matrix, md *model, e *engine, deliveries []*domain.Delivery) *domain.OptimizationResult {
	anyAssigned := false
	for _, v := range e.assigned {
		if v >= 0 {
			anyAssigned = true
			break
		}
	}
	if !anyAssigned {
		return failAll(apperror.ErrNoSolution.Message, deliveries)
	}

	result := &domain.OptimizationResult{
		Status:           domain.StatusSuccess,
		Routes:           [][]string{},
		AssignedVehicles: map[string]int{},
	}

	for v, seq := range e.routes {
		if len(seq) == 0 {
			continue
		}
		spec := md.vehicles[v]

		stops := make([]string, 0, len(seq)+2)
		stops = append(stops, m.LocationIDs[spec.start])
		for _, ni := range seq {
			stops = append(stops, m.LocationIDs[md.nodes[ni].loc])
		}
		stops = append(stops, m.LocationIDs[spec.end])

		distKm := float64(e.routeDistance(v, seq)) / domain.DistanceScalingFactor

		var totalTime float64
		if md.time != nil {
			totalTime = float64(e.routeSpan(v, seq)) / domain.TimeScalingFactor
		} else {
			totalTime = distKm / s.speed() * 60
		}

		route := &domain.DetailedRoute{
			VehicleID:     spec.vehicle.ID,
			Stops:         stops,
			Segments:      []*domain.RouteSegment{},
			TotalDistance: distKm,
			TotalTime:     totalTime,
		}

		if md.timeWindows {
			if arrivals, ok := e.simulate(v, seq); ok {
				route.EstimatedArrivalTimes = make(map[string]float64, len(seq))
				for i, ni := range seq {
					id := m.LocationIDs[md.nodes[ni].loc]
					route.EstimatedArrivalTimes[id] = float64(arrivals[i]) / domain.TimeScalingFactor
				}
			}
		}

		result.Routes = append(result.Routes, stops)
		result.DetailedRoutes = append(result.DetailedRoutes, route)
		result.TotalDistance += distKm
		// Vehicle id keys the index of its route in Routes.
		result.AssignedVehicles[spec.vehicle.ID] = len(result.Routes) - 1
	}

	for ni, v := range e.assigned {
		if v < 0 {
			result.UnassignedDeliveries = append(result.UnassignedDeliveries, md.nodes[ni].delivery.ID)
		}
	}
	return result
}

// errorMessage extracts the human-readable message without the code prefix.
func errorMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// failAll builds a failed result with every delivery unassigned.
func failAll(msg string, deliveries []*domain.Delivery) *domain.OptimizationResult {
	result := domain.FailedResult(msg)
	for _, d := range deliveries {
		result.UnassignedDeliveries = append(result.UnassignedDeliveries, d.ID)
	}
	return result
}

package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
	"fleetrouting/pkg/telemetry"
)

// RerouteRequest describes a mid-execution replanning problem. The current
// result and the original delivery set come from the previous plan;
// CompletedDeliveries lists what has already been served.
type RerouteRequest struct {
	Current             *domain.OptimizationResult
	Locations           []*domain.Location
	Vehicles            []*domain.Vehicle
	OriginalDeliveries  []*domain.Delivery
	CompletedDeliveries []string
}

// Rerouter replans the remaining work after traffic changes, service delays
// or roadblocks. Entrypoints never panic outward: unexpected failures come
// back as error results.
type Rerouter struct {
	opt *Optimizer
}

// NewRerouter creates a rerouting service on top of an optimizer.
func NewRerouter(opt *Optimizer) *Rerouter {
	return &Rerouter{opt: opt}
}

// ForTraffic replans the remaining deliveries with updated traffic factors.
func (r *Rerouter) ForTraffic(ctx context.Context, req *RerouteRequest, factors domain.TrafficFactors) *domain.OptimizationResult {
	return r.reroute(ctx, req, domain.RerouteReasonTraffic, func(p *preamble) *OptimizeRequest {
		return &OptimizeRequest{
			Locations:       p.locations,
			Vehicles:        p.vehicles,
			Deliveries:      p.remaining,
			ConsiderTraffic: true,
			TrafficFactors:  factors,
		}
	}, func(info *domain.ReroutingInfo) {
		info.AffectedLocations = affectedLocations(factors, req.Locations)
	})
}

// ForDelay replans with extended service times at the delayed locations.
func (r *Rerouter) ForDelay(ctx context.Context, req *RerouteRequest, delayMinutes map[string]float64) *domain.OptimizationResult {
	return r.reroute(ctx, req, domain.RerouteReasonServiceDelay, func(p *preamble) *OptimizeRequest {
		var total float64
		for _, loc := range p.locations {
			delay, ok := delayMinutes[loc.ID]
			if !ok {
				continue
			}
			loc.ServiceTime += delay
			total += delay
		}
		for id := range delayMinutes {
			if !hasLocation(p.locations, id) {
				logger.Log.Warn("Delay references unknown location", "location", id)
			}
		}
		return &OptimizeRequest{
			Locations:           p.locations,
			Vehicles:            p.vehicles,
			Deliveries:          p.remaining,
			ConsiderTimeWindows: true,
		}
	}, func(info *domain.ReroutingInfo) {
		for id, minutes := range delayMinutes {
			info.AffectedLocations = append(info.AffectedLocations, id)
			info.DelayMinutes += minutes
		}
		sort.Strings(info.AffectedLocations)
	})
}

// ForRoadblock replans with blocked segments made prohibitively expensive in
// both directions.
func (r *Rerouter) ForRoadblock(ctx context.Context, req *RerouteRequest, blocked [][2]string) *domain.OptimizationResult {
	return r.reroute(ctx, req, domain.RerouteReasonRoadblock, func(p *preamble) *OptimizeRequest {
		index := make(map[string]int, len(p.locations))
		for i, loc := range p.locations {
			index[loc.ID] = i
		}

		factors := domain.TrafficFactors{}
		for _, pair := range blocked {
			from, okFrom := index[pair[0]]
			to, okTo := index[pair[1]]
			if !okFrom || !okTo {
				logger.Log.Warn("Blocked segment references unknown location",
					"from", pair[0],
					"to", pair[1],
				)
				continue
			}
			// Both directions become impassable.
			factors[domain.PairKey{From: from, To: to}] = math.Inf(1)
			factors[domain.PairKey{From: to, To: from}] = math.Inf(1)
		}

		return &OptimizeRequest{
			Locations:       p.locations,
			Vehicles:        p.vehicles,
			Deliveries:      p.remaining,
			ConsiderTraffic: true,
			TrafficFactors:  factors,
		}
	}, func(info *domain.ReroutingInfo) {
		for _, pair := range blocked {
			info.BlockedSegments = append(info.BlockedSegments, pair[0]+"-"+pair[1])
		}
	})
}

// preamble is the shared replanning state: deep copies with completed work
// removed and vehicle start positions advanced.
type preamble struct {
	locations []*domain.Location
	vehicles  []*domain.Vehicle
	remaining []*domain.Delivery
}

func (r *Rerouter) reroute(
	ctx context.Context,
	req *RerouteRequest,
	reason string,
	mutate func(*preamble) *OptimizeRequest,
	report func(*domain.ReroutingInfo),
) (result *domain.OptimizationResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.Log.Error("Rerouting panicked", "reason", reason, "panic", p)
			result = errorAll(fmt.Sprintf("internal error: %v", p), req.OriginalDeliveries)
		}
		if result != nil {
			metrics.Get().RecordReroute(reason, result.Status)
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "rerouter.Reroute",
		telemetry.WithAttributes(attribute.String(telemetry.AttrRerouteReason, reason)))
	defer span.End()

	p := r.prepare(req)

	info := &domain.ReroutingInfo{
		Reason:              reason,
		CompletedDeliveries: append([]string(nil), req.CompletedDeliveries...),
	}
	for _, d := range p.remaining {
		info.RemainingDeliveries = append(info.RemainingDeliveries, d.ID)
	}
	if report != nil {
		report(info)
	}

	optimizeReq := mutate(p)
	result, err := r.opt.Optimize(ctx, optimizeReq)
	if err != nil {
		logger.Log.Warn("Rerouting child optimization failed",
			"reason", reason,
			"error", err,
		)
	}

	result.Statistics.ReroutingInfo = info
	return result
}

// prepare computes the remaining delivery set and advances each assigned
// vehicle's start past its last completed stop. Inputs are deep-copied.
func (r *Rerouter) prepare(req *RerouteRequest) *preamble {
	completed := make(map[string]bool, len(req.CompletedDeliveries))
	for _, id := range req.CompletedDeliveries {
		completed[id] = true
	}

	p := &preamble{}
	for _, loc := range req.Locations {
		p.locations = append(p.locations, loc.Clone())
	}
	for _, v := range req.Vehicles {
		p.vehicles = append(p.vehicles, v.Clone())
	}

	completedLocations := make(map[string]bool)
	for _, d := range req.OriginalDeliveries {
		if completed[d.ID] {
			completedLocations[d.LocationID] = true
			continue
		}
		p.remaining = append(p.remaining, d.Clone())
	}

	if req.Current == nil {
		return p
	}

	// Advance each vehicle to the stop after its latest completed one.
	for vi, vehicle := range p.vehicles {
		route := routeForVehicle(req.Current, vehicle.ID, vi)
		if route == nil {
			continue
		}
		last := -1
		for i, stop := range route {
			if completedLocations[stop] {
				last = i
			}
		}
		if last >= 0 && last+1 < len(route) {
			vehicle.StartLocationID = route[last+1]
		}
	}
	return p
}

/// routeForVehicle finds the stop list of a vehicle in the current plan: the
// assigned-vehicles map points at the route index, with detailed routes and
// positional order as fallbacks for partially filled plans.
func routeForVehicle(current *domain.OptimizationResult, vehicleID string, index int) []string {
	if ri, ok := current.AssignedVehicles[vehicleID]; ok && ri >= 0 && ri < len(current.Routes) {
		return current.Routes[ri]
	}
	for _, dr := range current.DetailedRoutes {
		if dr.VehicleID == vehicleID {
			return dr.Stops
		}
	}
	if index < len(current.Routes) {
		return current.Routes[index]
	}
	return nil
}

func affectedLocations(factors domain.TrafficFactors, locations []*domain.Location) []string {
	seen := make(map[int]bool)
	for key := range factors {
		seen[key.From] = true
		seen[key.To] = true
	}
	var ids []string
	for idx := range seen {
		if idx >= 0 && idx < len(locations) {
			ids = append(ids, locations[idx].ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func hasLocation(locations []*domain.Location, id string) bool {
	for _, loc := range locations {
		if loc.ID == id {
			return true
		}
	}
	return false
}

package stats

import (
	"fleetrouting/pkg/domain"
)

// Compute fills cost statistics on a result in place. Route distance is the
// sum of annotated segment distances; cost is fixed_cost plus distance times
// cost_per_km. Routes whose vehicle is not in the supplied list still count
// toward stop and distance totals, but contribute no cost.
func Compute(result *domain.OptimizationResult, vehicles []*domain.Vehicle, deliveries []*domain.Delivery) {
	if result == nil {
		return
	}

	byID := make(map[string]*domain.Vehicle, len(vehicles))
	for _, v := range vehicles {
		byID[v.ID] = v
	}
	claim := newDeliveryClaim(result, deliveries)

	costs := make(map[string]*domain.VehicleCost)
	summary := &domain.StatisticsSummary{
		TotalVehicles: len(vehicles),
	}
	var totalCost float64

	for _, route := range result.DetailedRoutes {
		var routeDistance float64
		for _, seg := range route.Segments {
			routeDistance += seg.Distance
		}
		if len(route.Segments) == 0 {
			routeDistance = route.TotalDistance
		}

		summary.TotalStops += len(route.Stops)
		summary.TotalDistance += routeDistance
		summary.TotalTime += route.TotalTime
		summary.UsedVehicles++

		load := claim.routeLoad(route)

		vehicle, ok := byID[route.VehicleID]
		if !ok {
			continue
		}

		variable := routeDistance * vehicle.CostPerKm
		cost := vehicle.FixedCost + variable
		costs[route.VehicleID] = &domain.VehicleCost{
			Distance:     routeDistance,
			FixedCost:    vehicle.FixedCost,
			VariableCost: variable,
			TotalCost:    cost,
		}
		totalCost += cost

		if vehicle.Capacity > 0 {
			route.CapacityUtilization = load / vehicle.Capacity
		}
	}

	summary.TotalCost = totalCost
	result.TotalCost = totalCost
	result.Statistics.VehicleCosts = costs
	result.Statistics.Summary = summary
}

// deliveryClaim hands each assigned delivery to the first route that visits
// its location, so a location shared by several routes never counts a
// delivery twice.
type deliveryClaim struct {
	byLocation map[string][]*domain.Delivery
}

func newDeliveryClaim(result *domain.OptimizationResult, deliveries []*domain.Delivery) *deliveryClaim {
	unassigned := make(map[string]bool, len(result.UnassignedDeliveries))
	for _, id := range result.UnassignedDeliveries {
		unassigned[id] = true
	}

	c := &deliveryClaim{byLocation: make(map[string][]*domain.Delivery)}
	for _, d := range deliveries {
		if unassigned[d.ID] {
			continue
		}
		c.byLocation[d.LocationID] = append(c.byLocation[d.LocationID], d)
	}
	return c
}

// routeLoad sums the demand served on the route. Pickups count by their
// absolute demand: the space is occupied either way.
func (c *deliveryClaim) routeLoad(route *domain.DetailedRoute) float64 {
	var load float64
	for i, stop := range route.Stops {
		if i == 0 || i == len(route.Stops)-1 {
			continue // depot endpoints carry no demand
		}
		for _, d := range c.byLocation[stop] {
			if d.Demand > 0 {
				load += d.Demand
			}
		}
		delete(c.byLocation, stop)
	}
	return load
}

package solver

import (
	"math"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
)

// node is one task stop: a single delivery (or pickup) placed at a matrix
// location index.
type node struct {
	delivery *domain.Delivery
	loc      int
	demand   int64 // scaled, negative for pickups
	pair     int   // index of the paired node, -1 when unpaired
	isPickup bool
	priority int
}

// vehicleSpec is the integer-scaled view of one vehicle.
type vehicleSpec struct {
	vehicle  *domain.Vehicle
	start    int
	end      int
	capacity int64
	maxDist  int64 // scaled, math.MaxInt64 when unlimited
	maxStops int   // math.MaxInt when unlimited
}

// model is the integer-scaled problem handed to the search engine. All
// distances are scaled by DistanceScalingFactor, demands and capacities by
// CapacityScalingFactor and times by TimeScalingFactor, so the engine works
// on integers only.
type model struct {
	n        int
	dist     [][]int64
	time     [][]int64 // nil when no time dimension is available
	nodes    []node
	vehicles []vehicleSpec

	spanCoeff   int64
	dropPenalty int64 // base penalty per priority unit

	timeWindows bool
	slack       int64
	horizon     int64
	twStart     []int64 // per location, scaled
	twEnd       []int64
	service     []int64
}

func scaleDistance(km float64) int64 {
	return int64(math.Round(km * domain.DistanceScalingFactor))
}

func scaleCapacity(units float64) int64 {
	return int64(math.Round(units * domain.CapacityScalingFactor))
}

func scaleTime(minutes float64) int64 {
	return int64(math.Round(minutes * domain.TimeScalingFactor))
}

// buildModel encodes the domain problem into the integer model. Unknown
// location references fail fast with an INVALID_INPUT error so the caller
// can return a failed result.
func buildModel(
	m *domain.Matrix,
	vehicles []*domain.Vehicle,
	deliveries []*domain.Delivery,
	depotIndex int,
	cfg *config.SolverConfig,
	locations []*domain.Location,
	timeWindows bool,
) (*model, error) {
	n := m.Size()
	index := make(map[string]int, n)
	for i, id := range m.LocationIDs {
		index[id] = i
	}

	md := &model{
		n:         n,
		dist:      make([][]int64, n),
		spanCoeff: cfg.GlobalSpanCoeff,
	}

	var maxArc int64
	for i := 0; i < n; i++ {
		md.dist[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			md.dist[i][j] = scaleDistance(m.Distance[i][j])
			if md.dist[i][j] > maxArc {
				maxArc = md.dist[i][j]
			}
		}
	}

	if len(m.Time) == n {
		md.time = make([][]int64, n)
		for i := 0; i < n; i++ {
			md.time[i] = make([]int64, n)
			for j := 0; j < n; j++ {
				md.time[i][j] = scaleTime(m.Time[i][j])
			}
		}
	}

	// The drop penalty must dominate any achievable routing cost so the
	// engine never prefers dropping a servable delivery.
	md.dropPenalty = (maxArc + 1) * int64(n+1)

	for _, v := range vehicles {
		spec := vehicleSpec{
			vehicle:  v,
			start:    depotIndex,
			end:      depotIndex,
			capacity: scaleCapacity(v.Capacity),
			maxDist:  math.MaxInt64,
			maxStops: math.MaxInt,
		}
		if v.StartLocationID != "" {
			idx, ok := index[v.StartLocationID]
			if !ok {
				return nil, apperror.New(apperror.CodeInvalidInput, "vehicle start location not in matrix").
					WithDetails("vehicle", v.ID).
					WithDetails("location", v.StartLocationID)
			}
			spec.start = idx
		}
		if v.EndLocationID != "" {
			idx, ok := index[v.EndLocationID]
			if !ok {
				return nil, apperror.New(apperror.CodeInvalidInput, "vehicle end location not in matrix").
					WithDetails("vehicle", v.ID).
					WithDetails("location", v.EndLocationID)
			}
			spec.end = idx
		} else {
			spec.end = spec.start
		}
		if v.MaxDistance != nil {
			spec.maxDist = scaleDistance(*v.MaxDistance)
		}
		if v.MaxStops != nil {
			spec.maxStops = *v.MaxStops
		}
		md.vehicles = append(md.vehicles, spec)
	}

	pairPickup := make(map[string]int)
	pairDelivery := make(map[string]int)
	for _, d := range deliveries {
		idx, ok := index[d.LocationID]
		if !ok {
			return nil, apperror.New(apperror.CodeInvalidInput, "delivery location not in matrix").
				WithDetails("delivery", d.ID).
				WithDetails("location", d.LocationID)
		}
		nd := node{
			delivery: d,
			loc:      idx,
			demand:   scaleCapacity(d.SignedDemand()),
			pair:     -1,
			isPickup: d.IsPickup,
			priority: d.EffectivePriority(),
		}
		md.nodes = append(md.nodes, nd)
		if d.PairID != "" {
			if d.IsPickup {
				pairPickup[d.PairID] = len(md.nodes) - 1
			} else {
				pairDelivery[d.PairID] = len(md.nodes) - 1
			}
		}
	}
	for pairID, p := range pairPickup {
		if q, ok := pairDelivery[pairID]; ok {
			md.nodes[p].pair = q
			md.nodes[q].pair = p
		}
	}

	if timeWindows {
		md.timeWindows = true
		md.slack = scaleTime(float64(cfg.SlackMinutes))
		md.horizon = scaleTime(float64(cfg.DayHorizonHours) * 60)
		md.twStart = make([]int64, n)
		md.twEnd = make([]int64, n)
		md.service = make([]int64, n)
		for i := range md.twEnd {
			md.twEnd[i] = md.horizon
		}
		for _, loc := range locations {
			idx, ok := index[loc.ID]
			if !ok {
				continue
			}
			md.service[idx] = scaleTime(loc.ServiceTime)
			if loc.TimeWindowStart != nil {
				md.twStart[idx] = scaleTime(*loc.TimeWindowStart)
			}
			if loc.TimeWindowEnd != nil {
				md.twEnd[idx] = scaleTime(*loc.TimeWindowEnd)
			}
		}
	}

	return md, nil
}

// travel returns the scaled travel time between location indices, deriving
// it from distance when no time matrix is present.
func (m *model) travel(from, to int) int64 {
	if m.time != nil {
		return m.time[from][to]
	}
	return m.dist[from][to]
}

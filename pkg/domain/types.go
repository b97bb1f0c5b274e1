package domain

import "fmt"

// Location is a geographic point visited by routes. Time windows and
// service time are expressed in minutes from the start of the planning day.
type Location struct {
	ID              string   `json:"id"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Address         string   `json:"address,omitempty"`
	IsDepot         bool     `json:"is_depot,omitempty"`
	TimeWindowStart *float64 `json:"time_window_start,omitempty"`
	TimeWindowEnd   *float64 `json:"time_window_end,omitempty"`
	ServiceTime     float64  `json:"service_time,omitempty"`
}

// HasTimeWindow reports whether both window bounds are set.
func (l *Location) HasTimeWindow() bool {
	return l.TimeWindowStart != nil && l.TimeWindowEnd != nil
}

// Clone returns a deep copy of the location.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	if l.TimeWindowStart != nil {
		v := *l.TimeWindowStart
		c.TimeWindowStart = &v
	}
	if l.TimeWindowEnd != nil {
		v := *l.TimeWindowEnd
		c.TimeWindowEnd = &v
	}
	return &c
}

// Vehicle describes a fleet unit available for planning.
type Vehicle struct {
	ID              string   `json:"id"`
	Capacity        float64  `json:"capacity"`
	StartLocationID string   `json:"start_location_id"`
	EndLocationID   string   `json:"end_location_id,omitempty"`
	CostPerKm       float64  `json:"cost_per_km,omitempty"`
	FixedCost       float64  `json:"fixed_cost,omitempty"`
	MaxDistance     *float64 `json:"max_distance,omitempty"`
	MaxStops        *int     `json:"max_stops,omitempty"`
	Skills          []string `json:"skills,omitempty"`
}

// Depot returns the effective end location: EndLocationID when set,
// otherwise the start location (closed route).
func (v *Vehicle) Depot() string {
	if v.EndLocationID != "" {
		return v.EndLocationID
	}
	return v.StartLocationID
}

// Clone returns a deep copy of the vehicle.
func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	c := *v
	if v.MaxDistance != nil {
		d := *v.MaxDistance
		c.MaxDistance = &d
	}
	if v.MaxStops != nil {
		s := *v.MaxStops
		c.MaxStops = &s
	}
	if v.Skills != nil {
		c.Skills = append([]string(nil), v.Skills...)
	}
	return &c
}

// Delivery is a demand placed at a location. A pickup carries negative
// effective demand; PairID links a pickup with its matching delivery so
// the solver keeps them on one vehicle in pickup-first order.
type Delivery struct {
	ID             string   `json:"id"`
	LocationID     string   `json:"location_id"`
	Demand         float64  `json:"demand"`
	Priority       int      `json:"priority,omitempty"`
	IsPickup       bool     `json:"is_pickup,omitempty"`
	PairID         string   `json:"pair_id,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
}

// EffectivePriority returns the clamped priority, defaulting to Normal.
func (d *Delivery) EffectivePriority() int {
	if d.Priority < PriorityLow || d.Priority > PriorityUrgent {
		return DefaultPriority
	}
	return d.Priority
}

// SignedDemand returns the demand with pickup sign applied.
func (d *Delivery) SignedDemand() float64 {
	if d.IsPickup {
		return -d.Demand
	}
	return d.Demand
}

// Clone returns a deep copy of the delivery.
func (d *Delivery) Clone() *Delivery {
	if d == nil {
		return nil
	}
	c := *d
	if d.RequiredSkills != nil {
		c.RequiredSkills = append([]string(nil), d.RequiredSkills...)
	}
	return &c
}

// RouteSegment is one leg of a detailed route with the node-level path
// through the road graph.
type RouteSegment struct {
	FromLocation  string   `json:"from_location"`
	ToLocation    string   `json:"to_location"`
	Path          []string `json:"path"`
	Distance      float64  `json:"distance"`
	EstimatedTime float64  `json:"estimated_time"`
	Error         string   `json:"error,omitempty"`
}

// DetailedRoute is a per-vehicle route with segment annotations.
type DetailedRoute struct {
	VehicleID             string             `json:"vehicle_id"`
	Stops                 []string           `json:"stops"`
	Segments              []*RouteSegment    `json:"segments"`
	TotalDistance         float64            `json:"total_distance"`
	TotalTime             float64            `json:"total_time"`
	CapacityUtilization   float64            `json:"capacity_utilization"`
	EstimatedArrivalTimes map[string]float64 `json:"estimated_arrival_times,omitempty"`
}

// ReroutingInfo documents why and how a plan was recomputed.
type ReroutingInfo struct {
	Reason              string   `json:"reason"`
	CompletedDeliveries []string `json:"completed_deliveries,omitempty"`
	RemainingDeliveries []string `json:"remaining_deliveries,omitempty"`
	AffectedLocations   []string `json:"affected_locations,omitempty"`
	DelayMinutes        float64  `json:"delay_minutes,omitempty"`
	BlockedSegments     []string `json:"blocked_segments,omitempty"`
}

// VehicleCost is a per-vehicle cost breakdown in the statistics block.
type VehicleCost struct {
	Distance     float64 `json:"distance"`
	FixedCost    float64 `json:"fixed_cost"`
	VariableCost float64 `json:"variable_cost"`
	TotalCost    float64 `json:"total_cost"`
}

// StatisticsSummary aggregates the plan.
type StatisticsSummary struct {
	TotalStops    int     `json:"total_stops"`
	TotalDistance float64 `json:"total_distance"`
	TotalTime     float64 `json:"total_time"`
	TotalVehicles int     `json:"total_vehicles"`
	UsedVehicles  int     `json:"used_vehicles"`
	TotalCost     float64 `json:"total_cost"`
}

// Statistics carries diagnostics attached to an optimization result.
type Statistics struct {
	Info          string                  `json:"info,omitempty"`
	Error         string                  `json:"error,omitempty"`
	VehicleCosts  map[string]*VehicleCost `json:"vehicle_costs,omitempty"`
	Summary       *StatisticsSummary      `json:"summary,omitempty"`
	ReroutingInfo *ReroutingInfo          `json:"rerouting_info,omitempty"`
	SolveTimeMs   int64                   `json:"solve_time_ms,omitempty"`
	CacheHit      bool                    `json:"cache_hit,omitempty"`
}

// OptimizationResult is the outcome of a planning run. AssignedVehicles maps
// a vehicle id to the index of its route in Routes.
type OptimizationResult struct {
	Status               string           `json:"status"`
	Routes               [][]string       `json:"routes"`
	DetailedRoutes       []*DetailedRoute `json:"detailed_routes,omitempty"`
	AssignedVehicles     map[string]int   `json:"assigned_vehicles,omitempty"`
	UnassignedDeliveries []string         `json:"unassigned_deliveries,omitempty"`
	TotalDistance        float64          `json:"total_distance"`
	TotalCost            float64          `json:"total_cost"`
	Statistics           Statistics       `json:"statistics"`
}

// IsSuccess reports whether the run produced a usable plan.
func (r *OptimizationResult) IsSuccess() bool {
	return r != nil && r.Status == StatusSuccess
}

// FailedResult builds a failed outcome with the given message.
func FailedResult(msg string) *OptimizationResult {
	return &OptimizationResult{
		Status:     StatusFailed,
		Routes:     [][]string{},
		Statistics: Statistics{Error: msg},
	}
}

// ErrorResult builds an error outcome with the given message.
func ErrorResult(msg string) *OptimizationResult {
	return &OptimizationResult{
		Status:     StatusError,
		Routes:     [][]string{},
		Statistics: Statistics{Error: msg},
	}
}

// Matrix is a square cost matrix aligned with an ordered location list.
type Matrix struct {
	LocationIDs []string    `json:"location_ids"`
	Distance    [][]float64 `json:"distance"`
	Time        [][]float64 `json:"time"`
}

// IndexOf returns the matrix row for a location id, or -1.
func (m *Matrix) IndexOf(id string) int {
	for i, lid := range m.LocationIDs {
		if lid == id {
			return i
		}
	}
	return -1
}

// Size returns the matrix dimension.
func (m *Matrix) Size() int {
	return len(m.LocationIDs)
}

// Validate checks the matrix is square and aligned with its location list.
func (m *Matrix) Validate() error {
	n := len(m.LocationIDs)
	if len(m.Distance) != n || len(m.Time) != n {
		return fmt.Errorf("matrix row count does not match %d locations", n)
	}
	for i := 0; i < n; i++ {
		if len(m.Distance[i]) != n {
			return fmt.Errorf("distance row %d has %d columns, want %d", i, len(m.Distance[i]), n)
		}
		if len(m.Time[i]) != n {
			return fmt.Errorf("time row %d has %d columns, want %d", i, len(m.Time[i]), n)
		}
	}
	return nil
}

// PairKey identifies a directed pair of matrix indices.
type PairKey struct {
	From int
	To   int
}

// String renders the pair as "from-to", matching segment map keys in
// traffic payloads.
func (k PairKey) String() string {
	return fmt.Sprintf("%d-%d", k.From, k.To)
}

// TrafficFactors maps directed index pairs to travel time multipliers.
// Factors are clamped to [1.0, MaxTrafficFactor] when applied.
type TrafficFactors map[PairKey]float64

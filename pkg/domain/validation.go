package domain

import (
	"fmt"

	"fleetrouting/pkg/apperror"
)

// ValidateProblem checks an optimization problem before planning.
// Errors make the problem unsolvable; warnings are advisory and the
// problem may still be planned.
func ValidateProblem(locations []*Location, vehicles []*Vehicle, deliveries []*Delivery) *apperror.ValidationErrors {
	result := apperror.NewValidationErrors()

	if len(locations) == 0 {
		result.Add(apperror.ErrEmptyLocations)
	}
	if len(vehicles) == 0 {
		result.Add(apperror.ErrEmptyVehicles)
	}

	locByID := make(map[string]*Location, len(locations))
	for i, loc := range locations {
		if loc.ID == "" {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("location at index %d has empty id", i), "locations")
			continue
		}
		if _, dup := locByID[loc.ID]; dup {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("duplicate location id %q", loc.ID), "locations")
		}
		locByID[loc.ID] = loc

		if loc.Latitude < -90 || loc.Latitude > 90 {
			result.AddErrorWithField(apperror.CodeInvalidCoordinate,
				fmt.Sprintf("location %q has latitude %f out of range [-90, 90]", loc.ID, loc.Latitude), "locations")
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			result.AddErrorWithField(apperror.CodeInvalidCoordinate,
				fmt.Sprintf("location %q has longitude %f out of range [-180, 180]", loc.ID, loc.Longitude), "locations")
		}
		if loc.ServiceTime < 0 {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("location %q has negative service time", loc.ID), "locations")
		}
		if loc.HasTimeWindow() && *loc.TimeWindowStart > *loc.TimeWindowEnd {
			result.AddErrorWithField(apperror.CodeInvalidTimeWindow,
				fmt.Sprintf("location %q has time window start after end", loc.ID), "locations")
		}
		if (loc.TimeWindowStart == nil) != (loc.TimeWindowEnd == nil) {
			result.AddWarning(apperror.CodeInvalidTimeWindow,
				fmt.Sprintf("location %q has a partial time window, it will be ignored", loc.ID))
		}
	}

	vehByID := make(map[string]bool, len(vehicles))
	for i, v := range vehicles {
		if v.ID == "" {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("vehicle at index %d has empty id", i), "vehicles")
			continue
		}
		if vehByID[v.ID] {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("duplicate vehicle id %q", v.ID), "vehicles")
		}
		vehByID[v.ID] = true

		if v.Capacity <= 0 {
			result.AddErrorWithField(apperror.CodeInvalidCapacity,
				fmt.Sprintf("vehicle %q has non-positive capacity %f", v.ID, v.Capacity), "vehicles")
		}
		if _, ok := locByID[v.StartLocationID]; !ok {
			result.AddErrorWithField(apperror.CodeUnknownLocation,
				fmt.Sprintf("vehicle %q starts at unknown location %q", v.ID, v.StartLocationID), "vehicles")
		}
		if v.EndLocationID != "" {
			if _, ok := locByID[v.EndLocationID]; !ok {
				result.AddErrorWithField(apperror.CodeUnknownLocation,
					fmt.Sprintf("vehicle %q ends at unknown location %q", v.ID, v.EndLocationID), "vehicles")
			}
		}
		if v.MaxDistance != nil && *v.MaxDistance <= 0 {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("vehicle %q has non-positive max distance", v.ID), "vehicles")
		}
		if v.MaxStops != nil && *v.MaxStops <= 0 {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("vehicle %q has non-positive max stops", v.ID), "vehicles")
		}
	}

	delByID := make(map[string]bool, len(deliveries))
	for i, d := range deliveries {
		if d.ID == "" {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("delivery at index %d has empty id", i), "deliveries")
			continue
		}
		if delByID[d.ID] {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("duplicate delivery id %q", d.ID), "deliveries")
		}
		delByID[d.ID] = true

		if _, ok := locByID[d.LocationID]; !ok {
			result.AddErrorWithField(apperror.CodeUnknownLocation,
				fmt.Sprintf("delivery %q references unknown location %q", d.ID, d.LocationID), "deliveries")
		}
		if d.Demand < 0 {
			result.AddErrorWithField(apperror.CodeNegativeDemand,
				fmt.Sprintf("delivery %q has negative demand %f, use is_pickup instead", d.ID, d.Demand), "deliveries")
		}
		if d.Priority != 0 && (d.Priority < PriorityLow || d.Priority > PriorityUrgent) {
			result.AddWarning(apperror.CodeInvalidInput,
				fmt.Sprintf("delivery %q has priority %d outside [1, 4], normal priority will be used", d.ID, d.Priority))
		}
	}

	// Пары pickup-delivery должны сходиться: ровно один забор и одна
	// доставка на pair_id
	pairs := make(map[string][2]int)
	for _, d := range deliveries {
		if d.PairID == "" {
			continue
		}
		counts := pairs[d.PairID]
		if d.IsPickup {
			counts[0]++
		} else {
			counts[1]++
		}
		pairs[d.PairID] = counts
	}
	for pairID, counts := range pairs {
		if counts[0] != 1 || counts[1] != 1 {
			result.AddErrorWithField(apperror.CodeInvalidInput,
				fmt.Sprintf("pair %q must have exactly one pickup and one delivery, got %d and %d",
					pairID, counts[0], counts[1]), "deliveries")
		}
	}

	return result
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/database"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/telemetry"
	"fleetrouting/services/planner-svc/internal/service"
)

// Location id prefixes used when a stored problem is translated into a
// routing problem. One depot per vehicle, one pickup and one delivery
// location per shipment.
const (
	depotPrefix    = "depot:"
	pickupPrefix   = "pickup:"
	deliveryPrefix = "delivery:"
)

// Planner turns pending shipments and available vehicles into persisted
// route assignments.
type Planner struct {
	db          database.DB
	fleet       *PostgresFleetRepository
	shipments   *PostgresShipmentRepository
	assignments *PostgresAssignmentRepository
	opt         *service.Optimizer
}

// NewPlanner creates a planner over the given database and optimizer.
func NewPlanner(db database.DB, opt *service.Optimizer) *Planner {
	return &Planner{
		db:          db,
		fleet:       NewPostgresFleetRepository(db),
		shipments:   NewPostgresShipmentRepository(db),
		assignments: NewPostgresAssignmentRepository(db),
		opt:         opt,
	}
}

// Fleet exposes the vehicle repository.
func (p *Planner) Fleet() *PostgresFleetRepository { return p.fleet }

// Shipments exposes the shipment repository.
func (p *Planner) Shipments() *PostgresShipmentRepository { return p.shipments }

// Assignments exposes the assignment repository.
func (p *Planner) Assignments() *PostgresAssignmentRepository { return p.assignments }

// PlanPending plans routes for all pending shipments over the available
// fleet. Each shipment becomes a pickup+delivery pair. Assignments are
// persisted in one transaction and fully covered shipments move from
// pending to scheduled. Returns the created assignments; nil when there is
// nothing to plan.
func (p *Planner) PlanPending(ctx context.Context) ([]*Assignment, error) {
	ctx, span := telemetry.StartSpan(ctx, "Planner.PlanPending")
	defer span.End()

	pending, err := p.shipments.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		logger.Log.Info("No pending shipments to plan")
		return nil, nil
	}

	vehicles, err := p.fleet.Available(ctx)
	if err != nil {
		return nil, err
	}
	if len(vehicles) == 0 {
		return nil, apperror.New(apperror.CodeEmptyVehicles, "no available vehicles in fleet")
	}

	req := buildOptimizeRequest(pending, vehicles)
	result, err := p.opt.Optimize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("planning optimization failed: %w", err)
	}

	assignments := assignmentsFromResult(result, pending, req.Locations)
	covered := coveredShipments(result, pending)

	err = database.WithTransaction(ctx, p.db, func(tx pgx.Tx) error {
		for _, a := range assignments {
			if err := p.assignments.CreateTx(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, s := range covered {
			if err := p.shipments.TransitionTx(ctx, tx, s.ID, s.Status, ShipmentScheduled); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Pending shipments planned",
		"shipments", len(pending),
		"scheduled", len(covered),
		"assignments", len(assignments),
		"unassigned", len(result.UnassignedDeliveries),
	)
	return assignments, nil
}

// buildOptimizeRequest translates stored rows into a routing problem. The
// first vehicle depot doubles as the matrix depot.
func buildOptimizeRequest(shipments []*Shipment, vehicles []*FleetVehicle) *service.OptimizeRequest {
	req := &service.OptimizeRequest{}

	for i, v := range vehicles {
		depotID := depotPrefix + v.ID
		req.Locations = append(req.Locations, &domain.Location{
			ID:        depotID,
			Latitude:  v.DepotLat,
			Longitude: v.DepotLng,
			IsDepot:   i == 0,
		})
		req.Vehicles = append(req.Vehicles, &domain.Vehicle{
			ID:              v.ID,
			Capacity:        v.Capacity,
			StartLocationID: depotID,
			CostPerKm:       v.CostPerKm,
			FixedCost:       v.FixedCost,
		})
	}

	for _, s := range shipments {
		pickupID := pickupPrefix + s.ID
		deliveryID := deliveryPrefix + s.ID
		req.Locations = append(req.Locations,
			&domain.Location{ID: pickupID, Latitude: s.OriginLat, Longitude: s.OriginLng},
			&domain.Location{ID: deliveryID, Latitude: s.DestinationLat, Longitude: s.DestinationLng},
		)
		req.Deliveries = append(req.Deliveries,
			&domain.Delivery{
				ID:         s.ID + ":pickup",
				LocationID: pickupID,
				Demand:     s.Demand,
				IsPickup:   true,
				PairID:     s.ID,
			},
			&domain.Delivery{
				ID:         s.ID + ":delivery",
				LocationID: deliveryID,
				Demand:     s.Demand,
				PairID:     s.ID,
			},
		)
	}

	return req
}

// assignmentsFromResult converts solved routes into assignment rows.
// Depot stops are skipped; task stops are numbered from one in route order.
func assignmentsFromResult(result *domain.OptimizationResult, shipments []*Shipment, locations []*domain.Location) []*Assignment {
	demand := make(map[string]float64, len(shipments))
	for _, s := range shipments {
		demand[s.ID] = s.Demand
	}
	locByID := make(map[string]*domain.Location, len(locations))
	for _, loc := range locations {
		locByID[loc.ID] = loc
	}

	var assignments []*Assignment
	for _, route := range result.DetailedRoutes {
		a := &Assignment{
			ID:        uuid.New().String(),
			VehicleID: route.VehicleID,
			Status:    AssignmentPlanned,
		}

		seq := 0
		for _, stop := range route.Stops {
			shipmentID, role, ok := parseStop(stop)
			if !ok {
				continue
			}
			seq++
			item := &AssignmentItem{
				AssignmentID: a.ID,
				ShipmentID:   shipmentID,
				Role:         role,
				Sequence:     seq,
			}
			if loc := locByID[stop]; loc != nil {
				item.Lat = loc.Latitude
				item.Lng = loc.Longitude
			}
			if role == RolePickup {
				a.TotalLoad += demand[shipmentID]
			}
			a.Items = append(a.Items, item)
		}

		if len(a.Items) > 0 {
			assignments = append(assignments, a)
		}
	}
	return assignments
}

// coveredShipments returns the shipments whose both legs were assigned.
func coveredShipments(result *domain.OptimizationResult, shipments []*Shipment) []*Shipment {
	dropped := make(map[string]bool, len(result.UnassignedDeliveries))
	for _, id := range result.UnassignedDeliveries {
		// Delivery ids carry the shipment id before the role suffix.
		shipmentID, _, _ := strings.Cut(id, ":")
		dropped[shipmentID] = true
	}

	var covered []*Shipment
	for _, s := range shipments {
		if !dropped[s.ID] {
			covered = append(covered, s)
		}
	}
	return covered
}

// parseStop maps a route stop back to its shipment and role. Depot and
// unknown stops return ok=false.
func parseStop(stop string) (shipmentID, role string, ok bool) {
	switch {
	case strings.HasPrefix(stop, pickupPrefix):
		return strings.TrimPrefix(stop, pickupPrefix), RolePickup, true
	case strings.HasPrefix(stop, deliveryPrefix):
		return strings.TrimPrefix(stop, deliveryPrefix), RoleDelivery, true
	default:
		return "", "", false
	}
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fleetrouting/pkg/database"
	"fleetrouting/pkg/telemetry"
)

// PostgresFleetRepository PostgreSQL реализация парка автомобилей
type PostgresFleetRepository struct {
	db database.DB
}

// NewPostgresFleetRepository создаёт новый репозиторий парка
func NewPostgresFleetRepository(db database.DB) *PostgresFleetRepository {
	return &PostgresFleetRepository{db: db}
}

func (r *PostgresFleetRepository) Create(ctx context.Context, v *FleetVehicle) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresFleetRepository.Create")
	defer span.End()

	query := `
		INSERT INTO fleet_vehicles (id, capacity, depot_lat, depot_lng, cost_per_km, fixed_cost, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if v.Status == "" {
		v.Status = VehicleAvailable
	}

	err := r.db.QueryRow(ctx, query,
		v.ID,
		v.Capacity,
		v.DepotLat,
		v.DepotLng,
		v.CostPerKm,
		v.FixedCost,
		v.Status,
	).Scan(&v.CreatedAt, &v.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	return nil
}

func (r *PostgresFleetRepository) GetByID(ctx context.Context, id string) (*FleetVehicle, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresFleetRepository.GetByID")
	defer span.End()

	query := `
		SELECT id, capacity, depot_lat, depot_lng, cost_per_km, fixed_cost, status, created_at, updated_at
		FROM fleet_vehicles
		WHERE id = $1
	`

	v := &FleetVehicle{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.Capacity,
		&v.DepotLat,
		&v.DepotLng,
		&v.CostPerKm,
		&v.FixedCost,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}

	return v, nil
}

func (r *PostgresFleetRepository) Available(ctx context.Context) ([]*FleetVehicle, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresFleetRepository.Available")
	defer span.End()

	query := `
		SELECT id, capacity, depot_lat, depot_lng, cost_per_km, fixed_cost, status, created_at, updated_at
		FROM fleet_vehicles
		WHERE status = $1
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query, VehicleAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to list available vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*FleetVehicle
	for rows.Next() {
		v := &FleetVehicle{}
		err := rows.Scan(
			&v.ID,
			&v.Capacity,
			&v.DepotLat,
			&v.DepotLng,
			&v.CostPerKm,
			&v.FixedCost,
			&v.Status,
			&v.CreatedAt,
			&v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return vehicles, nil
}

func (r *PostgresFleetRepository) UpdateStatus(ctx context.Context, id, status string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresFleetRepository.UpdateStatus")
	defer span.End()

	query := `UPDATE fleet_vehicles SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update vehicle status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}

	return nil
}

// PostgresShipmentRepository PostgreSQL реализация заказов
type PostgresShipmentRepository struct {
	db database.DB
}

// NewPostgresShipmentRepository создаёт новый репозиторий заказов
func NewPostgresShipmentRepository(db database.DB) *PostgresShipmentRepository {
	return &PostgresShipmentRepository{db: db}
}

func (r *PostgresShipmentRepository) Create(ctx context.Context, s *Shipment) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresShipmentRepository.Create")
	defer span.End()

	query := `
		INSERT INTO shipments (id, origin_lat, origin_lng, destination_lat, destination_lng, demand, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	if s.Status == "" {
		s.Status = ShipmentPending
	}

	err := r.db.QueryRow(ctx, query,
		s.ID,
		s.OriginLat,
		s.OriginLng,
		s.DestinationLat,
		s.DestinationLng,
		s.Demand,
		s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create shipment: %w", err)
	}

	return nil
}

func (r *PostgresShipmentRepository) GetByID(ctx context.Context, id string) (*Shipment, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresShipmentRepository.GetByID")
	defer span.End()

	query := `
		SELECT id, origin_lat, origin_lng, destination_lat, destination_lng, demand, status, created_at, updated_at
		FROM shipments
		WHERE id = $1
	`

	s := &Shipment{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.OriginLat,
		&s.OriginLng,
		&s.DestinationLat,
		&s.DestinationLng,
		&s.Demand,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}

	return s, nil
}

func (r *PostgresShipmentRepository) Pending(ctx context.Context) ([]*Shipment, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresShipmentRepository.Pending")
	defer span.End()

	query := `
		SELECT id, origin_lat, origin_lng, destination_lat, destination_lng, demand, status, created_at, updated_at
		FROM shipments
		WHERE status = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, ShipmentPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending shipments: %w", err)
	}
	defer rows.Close()

	var shipments []*Shipment
	for rows.Next() {
		s := &Shipment{}
		err := rows.Scan(
			&s.ID,
			&s.OriginLat,
			&s.OriginLng,
			&s.DestinationLat,
			&s.DestinationLng,
			&s.Demand,
			&s.Status,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		shipments = append(shipments, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return shipments, nil
}

// Transition переводит заказ в новый статус с проверкой жизненного цикла
func (r *PostgresShipmentRepository) Transition(ctx context.Context, id, next string) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresShipmentRepository.Transition")
	defer span.End()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := ValidateTransition(current.Status, next); err != nil {
		return err
	}

	query := `UPDATE shipments SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`

	result, err := r.db.Exec(ctx, query, id, next, current.Status)
	if err != nil {
		return fmt.Errorf("failed to update shipment status: %w", err)
	}

	// Статус сменился между чтением и записью
	if result.RowsAffected() == 0 {
		return ErrShipmentNotFound
	}

	return nil
}

// TransitionTx переводит заказ в новый статус в рамках транзакции.
// Текущий статус уже известен вызывающему.
func (r *PostgresShipmentRepository) TransitionTx(ctx context.Context, tx pgx.Tx, id, current, next string) error {
	if err := ValidateTransition(current, next); err != nil {
		return err
	}

	query := `UPDATE shipments SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`

	result, err := tx.Exec(ctx, query, id, next, current)
	if err != nil {
		return fmt.Errorf("failed to update shipment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrShipmentNotFound
	}

	return nil
}

// PostgresAssignmentRepository PostgreSQL реализация назначений
type PostgresAssignmentRepository struct {
	db database.DB
}

// NewPostgresAssignmentRepository создаёт новый репозиторий назначений
func NewPostgresAssignmentRepository(db database.DB) *PostgresAssignmentRepository {
	return &PostgresAssignmentRepository{db: db}
}

// CreateTx вставляет назначение вместе с его остановками в рамках транзакции
func (r *PostgresAssignmentRepository) CreateTx(ctx context.Context, tx pgx.Tx, a *Assignment) error {
	query := `
		INSERT INTO assignments (id, vehicle_id, total_load, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	if a.Status == "" {
		a.Status = AssignmentPlanned
	}

	err := tx.QueryRow(ctx, query, a.ID, a.VehicleID, a.TotalLoad, a.Status).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	itemQuery := `
		INSERT INTO assignment_items (assignment_id, shipment_id, role, sequence, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, item := range a.Items {
		item.AssignmentID = a.ID
		_, err := tx.Exec(ctx, itemQuery,
			item.AssignmentID,
			item.ShipmentID,
			item.Role,
			item.Sequence,
			item.Lat,
			item.Lng,
		)
		if err != nil {
			return fmt.Errorf("failed to create assignment item: %w", err)
		}
	}

	return nil
}

func (r *PostgresAssignmentRepository) GetByID(ctx context.Context, id string) (*Assignment, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresAssignmentRepository.GetByID")
	defer span.End()

	query := `
		SELECT id, vehicle_id, total_load, status, created_at
		FROM assignments
		WHERE id = $1
	`

	a := &Assignment{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.VehicleID,
		&a.TotalLoad,
		&a.Status,
		&a.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	items, err := r.items(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Items = items

	return a, nil
}

func (r *PostgresAssignmentRepository) ListByVehicle(ctx context.Context, vehicleID string) ([]*Assignment, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresAssignmentRepository.ListByVehicle")
	defer span.End()

	query := `
		SELECT id, vehicle_id, total_load, status, created_at
		FROM assignments
		WHERE vehicle_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		a := &Assignment{}
		err := rows.Scan(&a.ID, &a.VehicleID, &a.TotalLoad, &a.Status, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return assignments, nil
}

func (r *PostgresAssignmentRepository) items(ctx context.Context, assignmentID string) ([]*AssignmentItem, error) {
	query := `
		SELECT assignment_id, shipment_id, role, sequence, lat, lng
		FROM assignment_items
		WHERE assignment_id = $1
		ORDER BY sequence
	`

	rows, err := r.db.Query(ctx, query, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment items: %w", err)
	}
	defer rows.Close()

	var items []*AssignmentItem
	for rows.Next() {
		item := &AssignmentItem{}
		err := rows.Scan(
			&item.AssignmentID,
			&item.ShipmentID,
			&item.Role,
			&item.Sequence,
			&item.Lat,
			&item.Lng,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

package store

import (
	"context"
	"errors"
	"time"
)

// Стандартные ошибки
var (
	ErrShipmentNotFound   = errors.New("shipment not found")
	ErrVehicleNotFound    = errors.New("vehicle not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// Статусы автомобилей парка
const (
	VehicleAvailable = "available"
	VehicleAssigned  = "assigned"
	VehicleOffline   = "offline"
)

// Статусы заказов на перевозку
const (
	ShipmentPending    = "pending"
	ShipmentScheduled  = "scheduled"
	ShipmentDispatched = "dispatched"
	ShipmentInTransit  = "in_transit"
	ShipmentDelivered  = "delivered"
	ShipmentFailed     = "failed"
)

// Статусы назначений
const (
	AssignmentPlanned   = "planned"
	AssignmentCompleted = "completed"
	AssignmentCancelled = "cancelled"
)

// Роли остановок в назначении
const (
	RolePickup   = "pickup"
	RoleDelivery = "delivery"
)

// FleetVehicle автомобиль парка с домашним депо
type FleetVehicle struct {
	ID        string
	Capacity  float64
	DepotLat  float64
	DepotLng  float64
	CostPerKm float64
	FixedCost float64
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Shipment заказ на перевозку: забор в origin, доставка в destination
type Shipment struct {
	ID             string
	OriginLat      float64
	OriginLng      float64
	DestinationLat float64
	DestinationLng float64
	Demand         float64
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Assignment назначение маршрута автомобилю
type Assignment struct {
	ID        string
	VehicleID string
	TotalLoad float64
	Status    string
	CreatedAt time.Time
	Items     []*AssignmentItem
}

// AssignmentItem одна остановка назначения. Sequence нумерует рабочие
// остановки маршрута с единицы; чистые депо-остановки не попадают в список.
type AssignmentItem struct {
	AssignmentID string
	ShipmentID   string
	Role         string
	Sequence     int
	Lat          float64
	Lng          float64
}

// FleetRepository доступ к автомобилям парка
type FleetRepository interface {
	Create(ctx context.Context, v *FleetVehicle) error
	GetByID(ctx context.Context, id string) (*FleetVehicle, error)
	Available(ctx context.Context) ([]*FleetVehicle, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// ShipmentRepository доступ к заказам
type ShipmentRepository interface {
	Create(ctx context.Context, s *Shipment) error
	GetByID(ctx context.Context, id string) (*Shipment, error)
	Pending(ctx context.Context) ([]*Shipment, error)
	Transition(ctx context.Context, id, next string) error
}

// AssignmentRepository доступ к назначениям
type AssignmentRepository interface {
	GetByID(ctx context.Context, id string) (*Assignment, error)
	ListByVehicle(ctx context.Context, vehicleID string) ([]*Assignment, error)
}

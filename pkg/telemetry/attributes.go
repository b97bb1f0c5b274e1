package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Задача
	AttrProblemLocations  = "problem.locations"
	AttrProblemVehicles   = "problem.vehicles"
	AttrProblemDeliveries = "problem.deliveries"

	// Решатель
	AttrSolverStatus     = "solver.status"
	AttrSolverDistance   = "solver.total_distance"
	AttrSolverCost       = "solver.total_cost"
	AttrSolverUnassigned = "solver.unassigned"

	// Матрица
	AttrMatrixSource = "matrix.source"
	AttrMatrixSize   = "matrix.size"
	AttrMatrixCached = "matrix.cached"

	// Валидация
	AttrValidationErrors = "validation.errors"
	AttrValidationPassed = "validation.passed"

	// Перепланирование
	AttrRerouteReason = "reroute.reason"
)

// ProblemAttributes возвращает атрибуты задачи оптимизации
func ProblemAttributes(locations, vehicles, deliveries int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrProblemLocations, locations),
		attribute.Int(AttrProblemVehicles, vehicles),
		attribute.Int(AttrProblemDeliveries, deliveries),
	}
}

// SolverAttributes возвращает атрибуты результата решателя
func SolverAttributes(status string, totalDistance, totalCost float64, unassigned int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSolverStatus, status),
		attribute.Float64(AttrSolverDistance, totalDistance),
		attribute.Float64(AttrSolverCost, totalCost),
		attribute.Int(AttrSolverUnassigned, unassigned),
	}
}

// MatrixAttributes возвращает атрибуты построения матрицы
func MatrixAttributes(source string, size int, cached bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMatrixSource, source),
		attribute.Int(AttrMatrixSize, size),
		attribute.Bool(AttrMatrixCached, cached),
	}
}

// ValidationAttributes возвращает атрибуты валидации
func ValidationAttributes(errorsCount int, passed bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrValidationErrors, errorsCount),
		attribute.Bool(AttrValidationPassed, passed),
	}
}

package domain

import "math"

// Математические константы
const (
	Epsilon  = 1e-9
	Infinity = math.MaxFloat64
)

// Масштабирующие коэффициенты для целочисленного решателя
const (
	// DistanceScalingFactor переводит километры в целочисленные единицы стоимости
	DistanceScalingFactor = 100
	// CapacityScalingFactor переводит вместимость и спрос в целые числа
	CapacityScalingFactor = 100
	// TimeScalingFactor переводит минуты в секунды для временной размерности
	TimeScalingFactor = 60
)

// Безопасные границы значений матрицы
const (
	// MaxSafeDistance - максимальное безопасное расстояние (км)
	MaxSafeDistance = 1e6
	// MaxSafeTime - максимальное безопасное время (минуты), 24 часа
	MaxSafeTime = 1440.0
	// MaxTrafficFactor - потолок для коэффициентов трафика; +Inf для
	// перекрытых дорог ограничивается этим значением
	MaxTrafficFactor = 1000.0
)

// Приоритеты доставок
const (
	PriorityLow    = 1
	PriorityNormal = 2
	PriorityHigh   = 3
	PriorityUrgent = 4

	DefaultPriority = PriorityNormal
)

// Статусы результата оптимизации
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Причины перепланирования
const (
	RerouteReasonTraffic      = "traffic"
	RerouteReasonServiceDelay = "service_delay"
	RerouteReasonRoadblock    = "roadblock"
)

// FloatEquals сравнивает два float64 с учётом Epsilon
func FloatEquals(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// IsZero проверяет, равно ли значение нулю
func IsZero(v float64) bool {
	return math.Abs(v) < Epsilon
}

// IsPositive проверяет, положительно ли значение
func IsPositive(v float64) bool {
	return v > Epsilon
}

// SanitizeValue приводит значение матрицы к безопасным границам:
// NaN и ±Inf заменяются на MaxSafeDistance, отрицательные на 0,
// значения сверх MaxSafeDistance обрезаются.
func SanitizeValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MaxSafeDistance
	}
	if v < 0 {
		return 0
	}
	if v > MaxSafeDistance {
		return MaxSafeDistance
	}
	return v
}

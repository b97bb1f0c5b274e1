package matrix

import (
	"math"

	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
)

// ApplyTrafficFactors scales the distance and time cells of affected pairs by
// their multiplier. Distance is the solver's arc cost, so traffic directly
// shifts route choice and the reported totals. Factors are clamped to
// [1.0, MaxTrafficFactor]: traffic can only slow travel down. An infinite
// factor marks a blocked road; the pair is pinned to the MaxSafe ceilings so
// the solver and the annotation graph treat it as impassable.
func ApplyTrafficFactors(m *domain.Matrix, factors domain.TrafficFactors) {
	if m == nil || len(factors) == 0 {
		return
	}

	n := m.Size()
	applied := 0
	for key, factor := range factors {
		if key.From < 0 || key.From >= n || key.To < 0 || key.To >= n {
			logger.Log.Warn("Traffic factor references out-of-range pair",
				"from", key.From,
				"to", key.To,
				"size", n,
			)
			continue
		}
		if key.From == key.To {
			continue
		}

		i, j := key.From, key.To
		if math.IsInf(factor, 1) {
			m.Distance[i][j] = domain.MaxSafeDistance
			m.Time[i][j] = domain.MaxSafeTime
			applied++
			continue
		}

		f := clampFactor(factor)
		m.Distance[i][j] = capAt(m.Distance[i][j]*f, domain.MaxSafeDistance)
		m.Time[i][j] = capAt(m.Time[i][j]*f, domain.MaxSafeTime)
		applied++
	}

	if applied > 0 {
		logger.Log.Debug("Traffic factors applied", "pairs", applied)
	}
}

func clampFactor(factor float64) float64 {
	if math.IsNaN(factor) {
		return 1
	}
	if factor > domain.MaxTrafficFactor {
		return domain.MaxTrafficFactor
	}
	if factor < 1 {
		return 1
	}
	return factor
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

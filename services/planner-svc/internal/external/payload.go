package external

import (
	"strings"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
)

// TrafficPayload is the wire shape for traffic data. Two encodings are
// accepted: parallel location_pairs/factors lists, or a segments map keyed
// "from_id-to_id".
type TrafficPayload struct {
	LocationPairs [][]string         `json:"location_pairs,omitempty"`
	Factors       []float64          `json:"factors,omitempty"`
	Segments      map[string]float64 `json:"segments,omitempty"`
}

// Empty reports whether the payload carries no traffic data at all.
func (p *TrafficPayload) Empty() bool {
	return p == nil || (len(p.LocationPairs) == 0 && len(p.Segments) == 0)
}

// ParseTrafficPayload translates a payload into index-keyed factors using
// the given location ordering. Pairs referencing unknown locations are
// skipped with a warning; a pair/factor length mismatch is an error.
func ParseTrafficPayload(p *TrafficPayload, locationIDs []string) (domain.TrafficFactors, error) {
	if p.Empty() {
		return domain.TrafficFactors{}, nil
	}

	index := make(map[string]int, len(locationIDs))
	for i, id := range locationIDs {
		index[id] = i
	}

	factors := domain.TrafficFactors{}

	if len(p.LocationPairs) > 0 {
		if len(p.LocationPairs) != len(p.Factors) {
			return nil, apperror.New(apperror.CodeInvalidTrafficData,
				"location_pairs and factors must have equal length")
		}
		for i, pair := range p.LocationPairs {
			if len(pair) != 2 {
				return nil, apperror.New(apperror.CodeInvalidTrafficData,
					"each location pair must have exactly two ids")
			}
			addPair(factors, index, pair[0], pair[1], p.Factors[i])
		}
	}

	for key, factor := range p.Segments {
		from, to, ok := strings.Cut(key, "-")
		if !ok {
			logger.Log.Warn("Malformed traffic segment key", "key", key)
			continue
		}
		addPair(factors, index, from, to, factor)
	}

	return factors, nil
}

func addPair(factors domain.TrafficFactors, index map[string]int, fromID, toID string, factor float64) {
	from, okFrom := index[fromID]
	to, okTo := index[toID]
	if !okFrom || !okTo {
		logger.Log.Warn("Traffic pair references unknown location",
			"from", fromID,
			"to", toID,
		)
		return
	}
	factors[domain.PairKey{From: from, To: to}] = factor
}

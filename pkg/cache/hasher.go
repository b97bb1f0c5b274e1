package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"fleetrouting/pkg/domain"
)

// LocationSetHash вычисляет хеш набора локаций для ключа кэша матриц.
// Порядок локаций на ключ не влияет.
func LocationSetHash(locationIDs []string) string {
	if len(locationIDs) == 0 {
		return ""
	}

	sorted := append([]string(nil), locationIDs...)
	sort.Strings(sorted)

	var data []byte
	for _, id := range sorted {
		data = append(data, []byte(id)...)
		data = append(data, ';')
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// ProblemFingerprint вычисляет детерминированный отпечаток задачи
// оптимизации. Одинаковые задачи дают одинаковый отпечаток независимо
// от порядка элементов во входных списках.
func ProblemFingerprint(locations []*domain.Location, vehicles []*domain.Vehicle, deliveries []*domain.Delivery) string {
	data := problemToCanonical(locations, vehicles, deliveries)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// problemToCanonical создаёт детерминированное представление задачи
func problemToCanonical(locations []*domain.Location, vehicles []*domain.Vehicle, deliveries []*domain.Delivery) []byte {
	locs := append([]*domain.Location(nil), locations...)
	sort.Slice(locs, func(i, j int) bool { return locs[i].ID < locs[j].ID })

	vehs := append([]*domain.Vehicle(nil), vehicles...)
	sort.Slice(vehs, func(i, j int) bool { return vehs[i].ID < vehs[j].ID })

	dels := append([]*domain.Delivery(nil), deliveries...)
	sort.Slice(dels, func(i, j int) bool { return dels[i].ID < dels[j].ID })

	var result []byte

	for _, l := range locs {
		tws, twe := -1.0, -1.0
		if l.TimeWindowStart != nil {
			tws = *l.TimeWindowStart
		}
		if l.TimeWindowEnd != nil {
			twe = *l.TimeWindowEnd
		}
		result = append(result, []byte(fmt.Sprintf("l:%s:%.6f:%.6f:%t:%.2f:%.2f:%.2f;",
			l.ID, l.Latitude, l.Longitude, l.IsDepot, tws, twe, l.ServiceTime))...)
	}

	for _, v := range vehs {
		maxDist := -1.0
		if v.MaxDistance != nil {
			maxDist = *v.MaxDistance
		}
		maxStops := -1
		if v.MaxStops != nil {
			maxStops = *v.MaxStops
		}
		result = append(result, []byte(fmt.Sprintf("v:%s:%.2f:%s:%s:%.4f:%.4f:%.2f:%d;",
			v.ID, v.Capacity, v.StartLocationID, v.EndLocationID,
			v.CostPerKm, v.FixedCost, maxDist, maxStops))...)
	}

	for _, d := range dels {
		result = append(result, []byte(fmt.Sprintf("d:%s:%s:%.2f:%d:%t:%s;",
			d.ID, d.LocationID, d.Demand, d.EffectivePriority(), d.IsPickup, d.PairID))...)
	}

	return result
}

// BuildMatrixKey строит ключ кэша для матрицы расстояний
func BuildMatrixKey(locationSetHash string) string {
	return fmt.Sprintf("matrix:%s", locationSetHash)
}

// BuildResultKey строит ключ кэша для результата оптимизации
func BuildResultKey(fingerprint string) string {
	return fmt.Sprintf("result:%s", fingerprint)
}

// QuickHash быстрый хеш для произвольных данных
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash короткий хеш (16 символов)
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

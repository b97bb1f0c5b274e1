package external

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/http"
	"time"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
)

// Weather impact multipliers by condition.
const (
	WeatherClear    = "clear"
	WeatherLight    = "light"
	WeatherModerate = "moderate"
	WeatherHeavy    = "heavy"
)

var weatherImpact = map[string]float64{
	WeatherLight:    1.2,
	WeatherModerate: 1.5,
	WeatherHeavy:    1.8,
}

// WeatherData describes current conditions over a location set.
type WeatherData struct {
	Condition         string   `json:"condition"`
	AffectedLocations []string `json:"affected_locations,omitempty"`
}

// Service supplies traffic factors, weather conditions and roadblock pairs.
// When a backend URL is configured it is queried with bounded retries; on
// persistent failure the deterministic mock keeps planning available.
type Service struct {
	baseURL    string
	httpClient *http.Client
	retry      *config.RetryConfig
}

// NewService creates the external data service. An empty baseURL selects
// mock-only operation.
func NewService(baseURL string, retry *config.RetryConfig) *Service {
	return &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      retry,
	}
}

// GetTrafficData returns index-keyed traffic factors for the location set.
func (s *Service) GetTrafficData(ctx context.Context, locationIDs []string) domain.TrafficFactors {
	if s.baseURL != "" {
		var payload TrafficPayload
		if err := s.fetch(ctx, "/traffic", &payload); err == nil {
			factors, perr := ParseTrafficPayload(&payload, locationIDs)
			if perr == nil {
				return factors
			}
			logger.Log.Warn("Traffic backend returned malformed payload", "error", perr)
		}
		logger.Log.Warn("Traffic backend unavailable, using mock data")
	}
	return s.MockTrafficFactors(locationIDs)
}

// GetWeatherData returns the current weather condition for the region.
func (s *Service) GetWeatherData(ctx context.Context, locationIDs []string) *WeatherData {
	if s.baseURL != "" {
		var data WeatherData
		if err := s.fetch(ctx, "/weather", &data); err == nil && data.Condition != "" {
			return &data
		}
		logger.Log.Warn("Weather backend unavailable, using mock data")
	}
	return s.mockWeather(locationIDs)
}

// GetRoadblocks returns currently blocked directed pairs (at most three in
// mock mode).
func (s *Service) GetRoadblocks(ctx context.Context, locationIDs []string) [][2]string {
	if s.baseURL != "" {
		var blocks [][2]string
		if err := s.fetch(ctx, "/roadblocks", &blocks); err == nil {
			return blocks
		}
		logger.Log.Warn("Roadblock backend unavailable, using mock data")
	}
	return s.mockRoadblocks(locationIDs)
}

// CalculateWeatherImpact maps a condition to its travel time multiplier.
// Unknown or clear conditions have no impact.
func CalculateWeatherImpact(condition string) float64 {
	if impact, ok := weatherImpact[condition]; ok {
		return impact
	}
	return 1.0
}

// WeatherPairFactors expands per-location impacts into a pair factor map:
// each directed pair between impacted locations carries the max of its
// endpoint impacts.
func WeatherPairFactors(impacts map[int]float64) domain.TrafficFactors {
	factors := domain.TrafficFactors{}
	for i, fi := range impacts {
		for j, fj := range impacts {
			if i == j {
				continue
			}
			f := fi
			if fj > f {
				f = fj
			}
			factors[domain.PairKey{From: i, To: j}] = f
		}
	}
	return factors
}

// CombineTrafficAndWeather merges two factor maps: overlapping cells
// multiply, cells present on one side only are copied through.
func CombineTrafficAndWeather(traffic, weather domain.TrafficFactors) domain.TrafficFactors {
	combined := domain.TrafficFactors{}
	for k, v := range traffic {
		combined[k] = v
	}
	for k, v := range weather {
		if existing, ok := combined[k]; ok {
			combined[k] = existing * v
		} else {
			combined[k] = v
		}
	}
	return combined
}

// -----------------------------------------------------------------------------
// Deterministic mocks
// -----------------------------------------------------------------------------

// seededRand derives a reproducible generator from the location set, so the
// same fleet snapshot always sees the same mock conditions.
func seededRand(locationIDs []string) *rand.Rand {
	h := fnv.New64a()
	for _, id := range locationIDs {
		_, _ = h.Write([]byte(id))
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// MockTrafficFactors generates factors in [1.0, 2.0) for roughly 30% of the
// directed pairs.
func (s *Service) MockTrafficFactors(locationIDs []string) domain.TrafficFactors {
	rng := seededRand(locationIDs)
	factors := domain.TrafficFactors{}
	n := len(locationIDs)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if rng.Float64() < 0.3 {
				factors[domain.PairKey{From: i, To: j}] = 1.0 + rng.Float64()
			}
		}
	}
	return factors
}

func (s *Service) mockWeather(locationIDs []string) *WeatherData {
	rng := seededRand(locationIDs)
	conditions := []string{WeatherClear, WeatherLight, WeatherModerate, WeatherHeavy}
	data := &WeatherData{Condition: conditions[rng.Intn(len(conditions))]}
	if data.Condition == WeatherClear {
		return data
	}
	for _, id := range locationIDs {
		if rng.Float64() < 0.5 {
			data.AffectedLocations = append(data.AffectedLocations, id)
		}
	}
	return data
}

func (s *Service) mockRoadblocks(locationIDs []string) [][2]string {
	if len(locationIDs) < 2 {
		return nil
	}
	rng := seededRand(locationIDs)
	count := rng.Intn(4) // 0..3
	blocks := make([][2]string, 0, count)
	for len(blocks) < count {
		from := locationIDs[rng.Intn(len(locationIDs))]
		to := locationIDs[rng.Intn(len(locationIDs))]
		if from == to {
			continue
		}
		blocks = append(blocks, [2]string{from, to})
	}
	return blocks
}

// -----------------------------------------------------------------------------
// Backend access
// -----------------------------------------------------------------------------

// fetch queries the backend with the shared retry discipline.
func (s *Service) fetch(ctx context.Context, path string, out any) error {
	attempts := 1
	backoff := time.Second
	maxBackoff := 30 * time.Second
	multiplier := 2.0
	if s.retry != nil {
		if s.retry.MaxAttempts > 0 {
			attempts = s.retry.MaxAttempts
		}
		if s.retry.InitialBackoff > 0 {
			backoff = s.retry.InitialBackoff
		}
		if s.retry.MaxBackoff > 0 {
			maxBackoff = s.retry.MaxBackoff
		}
		if s.retry.BackoffMultiplier > 1 {
			multiplier = s.retry.BackoffMultiplier
		}
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return apperror.Wrap(ctx.Err(), apperror.CodeTimeout, "external data fetch canceled")
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * multiplier)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if lastErr = s.doFetch(ctx, path, out); lastErr == nil {
			metrics.Get().RecordExternalAPICall("external_data", "ok")
			return nil
		}
		metrics.Get().RecordExternalAPICall("external_data", "error")
	}
	return apperror.Wrap(lastErr, apperror.CodeAPIUnavailable, "external data retries exhausted")
}

func (s *Service) doFetch(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("external data backend returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package matrix

import (
	"context"
	"time"

	"fleetrouting/pkg/cache"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
)

// Builder produces distance/time matrices for a set of locations. It prefers
// the external routing API when configured, falls back to the haversine
// computation when the API is unavailable, and persists results in the matrix
// cache keyed by the location set.
type Builder struct {
	cfg    *config.RoutingConfig
	client *GoogleClient
	cache  *cache.MatrixCache
}

// NewBuilder creates a matrix builder. The cache may be nil to disable
// persistence; the API client is created only when a key is configured.
func NewBuilder(cfg *config.RoutingConfig, matrixCache *cache.MatrixCache) *Builder {
	var client *GoogleClient
	if cfg.APIKey != "" {
		client = NewGoogleClient(cfg)
	}
	return &Builder{
		cfg:    cfg,
		client: client,
		cache:  matrixCache,
	}
}

// Build returns a sanitized matrix for the locations. useAPI overrides the
// configured default; the external API is only consulted when a client is
// available.
func (b *Builder) Build(ctx context.Context, locations []*domain.Location, useAPI bool) (*domain.Matrix, error) {
	if len(locations) == 0 {
		// No locations is no work, not a failure
		return &domain.Matrix{
			LocationIDs: []string{},
			Distance:    [][]float64{},
			Time:        [][]float64{},
		}, nil
	}

	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.ID
	}

	if b.cache != nil && b.cfg.UseCache {
		cached, hit, err := b.cache.Get(ctx, ids)
		if err != nil {
			logger.Log.Warn("Matrix cache lookup failed", "error", err)
		}
		metrics.Get().RecordCacheLookup("matrix", hit)
		if hit {
			logger.Log.Debug("Matrix cache hit", "locations", len(ids))
			return cached, nil
		}
	}

	m, source := b.compute(ctx, locations, useAPI)
	Sanitize(m)

	if b.cache != nil && b.cfg.UseCache {
		if err := b.cache.Set(ctx, m); err != nil {
			logger.Log.Warn("Failed to cache matrix", "error", err)
		}
	}

	logger.Log.Info("Distance matrix built",
		"locations", len(ids),
		"source", source,
	)
	return m, nil
}

// compute runs the actual matrix computation and reports the source used.
func (b *Builder) compute(ctx context.Context, locations []*domain.Location, useAPI bool) (*domain.Matrix, string) {
	if useAPI && b.client != nil {
		start := time.Now()
		m, err := b.client.BuildMatrix(ctx, locations)
		metrics.Get().RecordMatrixBuild("api", err == nil, time.Since(start))
		if err == nil {
			return m, "api"
		}
		logger.Log.Warn("Routing API unavailable, falling back to haversine",
			"error", err,
			"locations", len(locations),
		)
	}

	start := time.Now()
	m := BuildHaversineMatrix(locations, b.speed())
	metrics.Get().RecordMatrixBuild("haversine", true, time.Since(start))
	return m, "haversine"
}

func (b *Builder) speed() float64 {
	if b.cfg.AverageSpeedKmh > 0 {
		return b.cfg.AverageSpeedKmh
	}
	return 50
}

// Sanitize clamps matrix values into safe bounds in place: NaN and infinities
// become MaxSafe substitutes, negatives become zero and the diagonal is reset
// to zero.
func Sanitize(m *domain.Matrix) {
	n := m.Size()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				m.Distance[i][j] = 0
				m.Time[i][j] = 0
				continue
			}
			m.Distance[i][j] = domain.SanitizeValue(m.Distance[i][j])
			m.Time[i][j] = sanitizeTime(m.Time[i][j])
		}
	}
}

func sanitizeTime(v float64) float64 {
	v = domain.SanitizeValue(v)
	if v > domain.MaxSafeTime {
		return domain.MaxSafeTime
	}
	return v
}

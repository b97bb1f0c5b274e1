package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/cache"
	"fleetrouting/pkg/config"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/pkg/metrics"
	"fleetrouting/pkg/telemetry"
	"fleetrouting/services/planner-svc/internal/annotate"
	"fleetrouting/services/planner-svc/internal/external"
	"fleetrouting/services/planner-svc/internal/matrix"
	"fleetrouting/services/planner-svc/internal/solver"
	"fleetrouting/services/planner-svc/internal/stats"
)

// OptimizeRequest carries one planning problem through the pipeline.
type OptimizeRequest struct {
	Locations           []*domain.Location
	Vehicles            []*domain.Vehicle
	Deliveries          []*domain.Delivery
	ConsiderTraffic     bool
	ConsiderTimeWindows bool
	UseAPI              bool
	APIKey              string
	TrafficFactors      domain.TrafficFactors
}

// Optimizer drives the planning pipeline: validate, build matrices, apply
// traffic, solve, annotate, compute statistics. Successful results are
// cached by problem fingerprint.
type Optimizer struct {
	cfg      *config.Config
	builder  *matrix.Builder
	solver   *solver.Solver
	external *external.Service
	results  *cache.ResultCache
}

// NewOptimizer wires the pipeline. results and externalSvc may be nil to
// disable result caching and external data enrichment.
func NewOptimizer(cfg *config.Config, builder *matrix.Builder, externalSvc *external.Service, results *cache.ResultCache) *Optimizer {
	return &Optimizer{
		cfg:      cfg,
		builder:  builder,
		solver:   solver.New(&cfg.Solver),
		external: externalSvc,
		results:  results,
	}
}

// Optimize runs the full pipeline. The returned result always describes the
// outcome; a non-nil error additionally classifies failures for the
// transport boundary (validation, no solution, internal). Panics inside the
// pipeline are converted to an error result.
func (o *Optimizer) Optimize(ctx context.Context, req *OptimizeRequest) (result *domain.OptimizationResult, err error) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Optimization pipeline panicked", "panic", r)
			result = errorAll(fmt.Sprintf("internal error: %v", r), req.Deliveries)
			err = apperror.New(apperror.CodeInternal, "optimization failed unexpectedly")
		}
		if result != nil {
			metrics.Get().RecordOptimize(result.Status, time.Since(started))
			metrics.Get().RecordPlanOutcome("optimize", len(result.UnassignedDeliveries), result.TotalDistance)
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "optimizer.Optimize",
		telemetry.WithAttributes(telemetry.ProblemAttributes(len(req.Locations), len(req.Vehicles), len(req.Deliveries))...))
	defer span.End()

	metrics.Get().RecordProblemSize("optimize", len(req.Locations), len(req.Deliveries))

	// 1. Validation.
	if verrs := domain.ValidateProblem(req.Locations, req.Vehicles, req.Deliveries); verrs.HasErrors() {
		telemetry.SetAttributes(ctx, telemetry.ValidationAttributes(len(verrs.Errors), false)...)
		msg := strings.Join(verrs.ErrorMessages(), "; ")
		logger.Log.Warn("Problem validation failed", "errors", msg)
		return errorAll(msg, req.Deliveries),
			apperror.New(apperror.CodeInvalidInput, msg)
	}

	// 2. Result cache.
	fingerprint := o.fingerprint(req)
	if o.results != nil {
		cached, hit, cerr := o.results.Get(ctx, fingerprint)
		if cerr != nil {
			logger.Log.Warn("Result cache lookup failed", "error", cerr)
		}
		metrics.Get().RecordCacheLookup("result", hit)
		if hit {
			cached.Statistics.CacheHit = true
			logger.Log.Info("Optimization served from cache", "fingerprint", fingerprint)
			return cached, nil
		}
	}

	// 3. Matrices.
	m, merr := o.buildMatrix(ctx, req)
	if merr != nil {
		return errorAll(errorMessage(merr), req.Deliveries), merr
	}

	if req.ConsiderTraffic {
		factors := req.TrafficFactors
		if len(factors) == 0 && o.external != nil {
			factors = o.external.GetTrafficData(ctx, m.LocationIDs)
		}
		if len(factors) > 0 {
			matrix.ApplyTrafficFactors(m, factors)
			matrix.Sanitize(m)
		}
	}

	// 4. Depot resolution.
	depot := depotIndex(req.Locations, m)

	// 5. Solve.
	if req.ConsiderTimeWindows {
		result = o.solver.SolveWithTimeWindows(ctx, m, req.Vehicles, req.Deliveries, depot, req.Locations)
	} else {
		result = o.solver.Solve(ctx, m, req.Vehicles, req.Deliveries, depot)
	}

	telemetry.SetAttributes(ctx, telemetry.SolverAttributes(
		result.Status, result.TotalDistance, result.TotalCost, len(result.UnassignedDeliveries))...)

	if !result.IsSuccess() {
		return result, apperror.New(apperror.CodeNoSolution, result.Statistics.Error)
	}

	// 6. Annotate and aggregate.
	annotator, aerr := annotate.NewWithMatrix(req.Locations, m)
	if aerr != nil {
		logger.Log.Warn("Road graph construction failed, skipping annotation", "error", aerr)
	} else {
		annotator.Annotate(ctx, result)
	}
	stats.Compute(result, req.Vehicles, req.Deliveries)

	if o.results != nil {
		if cerr := o.results.Set(ctx, fingerprint, result, o.resultTTL()); cerr != nil {
			logger.Log.Warn("Failed to cache optimization result", "error", cerr)
		}
	}

	logger.Log.Info("Optimization finished",
		"status", result.Status,
		"routes", len(result.Routes),
		"unassigned", len(result.UnassignedDeliveries),
		"total_distance", result.TotalDistance,
		"duration", time.Since(started),
	)
	return result, nil
}

func (o *Optimizer) buildMatrix(ctx context.Context, req *OptimizeRequest) (*domain.Matrix, error) {
	ctx, span := telemetry.StartSpan(ctx, "optimizer.BuildMatrix")
	defer span.End()

	builder := o.builder
	if req.APIKey != "" && req.UseAPI {
		// Per-request key overrides the configured client.
		routing := o.cfg.Routing
		routing.APIKey = req.APIKey
		builder = matrix.NewBuilder(&routing, nil)
	}
	return builder.Build(ctx, req.Locations, req.UseAPI)
}

func (o *Optimizer) resultTTL() time.Duration {
	if o.cfg.Solver.ResultCacheTTL > 0 {
		return o.cfg.Solver.ResultCacheTTL
	}
	return time.Hour
}

// fingerprint extends the canonical problem hash with the pipeline flags and
// the normalized traffic map so distinct requests never collide.
func (o *Optimizer) fingerprint(req *OptimizeRequest) string {
	base := cache.ProblemFingerprint(req.Locations, req.Vehicles, req.Deliveries)

	keys := make([]domain.PairKey, 0, len(req.TrafficFactors))
	for k := range req.TrafficFactors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})

	data := []byte(fmt.Sprintf("%s|traffic:%t|tw:%t|api:%t|", base,
		req.ConsiderTraffic, req.ConsiderTimeWindows, req.UseAPI))
	for _, k := range keys {
		data = append(data, []byte(fmt.Sprintf("%s=%.4f;", k, req.TrafficFactors[k]))...)
	}
	return cache.ShortHash(data)
}

// depotIndex picks the first location flagged as depot, falling back to the
// first matrix row.
func depotIndex(locations []*domain.Location, m *domain.Matrix) int {
	for _, loc := range locations {
		if loc.IsDepot {
			if idx := m.IndexOf(loc.ID); idx >= 0 {
				return idx
			}
		}
	}
	return 0
}

// errorAll builds an error result with every delivery unassigned.
func errorAll(msg string, deliveries []*domain.Delivery) *domain.OptimizationResult {
	result := domain.ErrorResult(msg)
	for _, d := range deliveries {
		result.UnassignedDeliveries = append(result.UnassignedDeliveries, d.ID)
	}
	return result
}

// errorMessage extracts the human-readable message without the code prefix.
func errorMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

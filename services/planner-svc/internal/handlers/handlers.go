package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"fleetrouting/pkg/apperror"
	"fleetrouting/pkg/domain"
	"fleetrouting/pkg/logger"
	"fleetrouting/services/planner-svc/internal/external"
	"fleetrouting/services/planner-svc/internal/service"
)

// Handler exposes the planning pipeline over HTTP.
type Handler struct {
	optimizer *service.Optimizer
	rerouter  *service.Rerouter
	ready     func() bool
}

// New creates the HTTP handler set. ready reports whether the process is
// ready to take traffic; nil means always ready.
func New(optimizer *service.Optimizer, rerouter *service.Rerouter, ready func() bool) *Handler {
	return &Handler{optimizer: optimizer, rerouter: rerouter, ready: ready}
}

// Register mounts the routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /optimize", h.Optimize)
	mux.HandleFunc("POST /reroute", h.Reroute)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
}

// optimizeBody is the POST /optimize request.
type optimizeBody struct {
	Locations           []*domain.Location       `json:"locations"`
	Vehicles            []*domain.Vehicle        `json:"vehicles"`
	Deliveries          []*domain.Delivery       `json:"deliveries"`
	ConsiderTraffic     bool                     `json:"consider_traffic"`
	ConsiderTimeWindows bool                     `json:"consider_time_windows"`
	UseAPI              bool                     `json:"use_api"`
	APIKey              string                   `json:"api_key"`
	TrafficData         *external.TrafficPayload `json:"traffic_data,omitempty"`
}

// rerouteBody is the POST /reroute request.
type rerouteBody struct {
	CurrentRoutes       []*domain.DetailedRoute  `json:"current_routes"`
	Locations           []*domain.Location       `json:"locations"`
	Vehicles            []*domain.Vehicle        `json:"vehicles"`
	OriginalDeliveries  []*domain.Delivery       `json:"original_deliveries"`
	CompletedDeliveries []string                 `json:"completed_deliveries"`
	RerouteType         string                   `json:"reroute_type"`
	TrafficData         *external.TrafficPayload `json:"traffic_data,omitempty"`
	DelayedLocationIDs  []string                 `json:"delayed_location_ids,omitempty"`
	DelayMinutes        float64                  `json:"delay_minutes,omitempty"`
	BlockedSegments     [][2]string              `json:"blocked_segments,omitempty"`
}

// planResponse is the outward projection of an OptimizationResult: the
// detailed routes are published under the plain "routes" name.
type planResponse struct {
	Status               string                  `json:"status"`
	Routes               []*domain.DetailedRoute `json:"routes"`
	TotalDistance        float64                 `json:"total_distance"`
	TotalCost            float64                 `json:"total_cost"`
	AssignedVehicles     map[string]int          `json:"assigned_vehicles,omitempty"`
	UnassignedDeliveries []string                `json:"unassigned_deliveries,omitempty"`
	Statistics           domain.Statistics       `json:"statistics"`
}

func projectResult(result *domain.OptimizationResult) *planResponse {
	routes := result.DetailedRoutes
	if routes == nil {
		routes = []*domain.DetailedRoute{}
	}
	return &planResponse{
		Status:               result.Status,
		Routes:               routes,
		TotalDistance:        result.TotalDistance,
		TotalCost:            result.TotalCost,
		AssignedVehicles:     result.AssignedVehicles,
		UnassignedDeliveries: result.UnassignedDeliveries,
		Statistics:           result.Statistics,
	}
}

// Optimize handles POST /optimize.
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var body optimizeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := &service.OptimizeRequest{
		Locations:           body.Locations,
		Vehicles:            body.Vehicles,
		Deliveries:          body.Deliveries,
		ConsiderTraffic:     body.ConsiderTraffic,
		ConsiderTimeWindows: body.ConsiderTimeWindows,
		UseAPI:              body.UseAPI,
		APIKey:              body.APIKey,
	}

	if body.TrafficData != nil && !body.TrafficData.Empty() {
		factors, err := external.ParseTrafficPayload(body.TrafficData, locationIDs(body.Locations))
		if err != nil {
			writeError(w, apperror.HTTPStatus(err), errorMessage(err))
			return
		}
		req.TrafficFactors = factors
		req.ConsiderTraffic = true
	}

	result, err := h.optimizer.Optimize(r.Context(), req)
	writeResult(w, result, err)
}

// Reroute handles POST /reroute.
func (h *Handler) Reroute(w http.ResponseWriter, r *http.Request) {
	var body rerouteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := &service.RerouteRequest{
		Current:             &domain.OptimizationResult{DetailedRoutes: body.CurrentRoutes},
		Locations:           body.Locations,
		Vehicles:            body.Vehicles,
		OriginalDeliveries:  body.OriginalDeliveries,
		CompletedDeliveries: body.CompletedDeliveries,
	}

	var result *domain.OptimizationResult
	switch body.RerouteType {
	case "traffic":
		var factors domain.TrafficFactors
		if body.TrafficData != nil && !body.TrafficData.Empty() {
			var err error
			factors, err = external.ParseTrafficPayload(body.TrafficData, locationIDs(body.Locations))
			if err != nil {
				writeError(w, apperror.HTTPStatus(err), errorMessage(err))
				return
			}
		}
		result = h.rerouter.ForTraffic(r.Context(), req, factors)

	case "delay":
		delays := make(map[string]float64, len(body.DelayedLocationIDs))
		for _, id := range body.DelayedLocationIDs {
			delays[id] = body.DelayMinutes
		}
		result = h.rerouter.ForDelay(r.Context(), req, delays)

	case "roadblock":
		result = h.rerouter.ForRoadblock(r.Context(), req, body.BlockedSegments)

	default:
		writeError(w, http.StatusBadRequest, "reroute_type must be one of traffic, delay, roadblock")
		return
	}

	status := rerouteStatus(result)
	if status >= http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}
	writeJSON(w, status, projectResult(result))
}

// rerouteStatus classifies a reroute outcome: the rerouter never returns
// an error, so the status code is derived from the result itself.
func rerouteStatus(result *domain.OptimizationResult) int {
	if result.IsSuccess() {
		return http.StatusOK
	}
	if strings.HasPrefix(result.Statistics.Error, "internal error") {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready.
func (h *Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil && !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeResult maps a pipeline outcome to an HTTP response. The body always
// carries the result projection; the error only selects the status code.
// Internal failures are reported with a generic message.
func writeResult(w http.ResponseWriter, result *domain.OptimizationResult, err error) {
	status := http.StatusOK
	if err != nil {
		status = apperror.HTTPStatus(err)
	}

	if status >= http.StatusInternalServerError {
		writeError(w, status, "internal server error")
		return
	}

	writeJSON(w, status, projectResult(result))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func locationIDs(locations []*domain.Location) []string {
	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.ID
	}
	return ids
}

func errorMessage(err error) string {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

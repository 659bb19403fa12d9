package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kiranshivaraju/objcounter/internal/api/response"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// NewStartMonitoringHandler returns an http.HandlerFunc for POST /api/performance/start.
// The body is optional; total_images defaults to 1.
func NewStartMonitoringHandler(mon PerformanceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := models.StartMonitoringRequest{TotalImages: 1}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.TotalImages < 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "total_images must be non-negative", nil)
			return
		}

		id := mon.Start(req.TotalImages)
		response.JSON(w, models.StartMonitoringResponse{
			Success:     true,
			Message:     "Performance monitoring started",
			TotalImages: req.TotalImages,
			SessionID:   id.String(),
		})
	}
}

// NewStopMonitoringHandler returns an http.HandlerFunc for POST /api/performance/stop.
func NewStopMonitoringHandler(mon PerformanceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := mon.Stop()
		response.JSON(w, models.StopMonitoringResponse{
			Success: true,
			Message: "Performance monitoring stopped",
			Summary: summary,
		})
	}
}

// NewMetricsHandler returns an http.HandlerFunc for GET /api/performance/metrics.
func NewMetricsHandler(mon PerformanceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics, err := mon.Current(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "METRICS_UNAVAILABLE",
				"Could not collect performance metrics", nil)
			return
		}
		response.JSON(w, metrics)
	}
}

// NewUpdateStageHandler returns an http.HandlerFunc for POST /api/performance/update-stage.
func NewUpdateStageHandler(mon PerformanceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.UpdateStageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "JSON data required", nil)
			return
		}
		if req.Stage == "" {
			req.Stage = "unknown"
		}
		if req.ImageIndex != nil && *req.ImageIndex < 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "image_index must be non-negative", nil)
			return
		}

		mon.UpdateStage(r.Context(), req.Stage, req.ImageIndex)
		response.JSON(w, models.UpdateStageResponse{
			Success:    true,
			Stage:      req.Stage,
			ImageIndex: req.ImageIndex,
		})
	}
}

// NewSummaryHandler returns an http.HandlerFunc for GET /api/performance/summary.
func NewSummaryHandler(mon PerformanceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, mon.Summary())
	}
}

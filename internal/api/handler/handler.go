// Package handler implements the HTTP endpoints of the object counter API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/objcounter/internal/api/response"
	"github.com/kiranshivaraju/objcounter/internal/counting"
	"github.com/kiranshivaraju/objcounter/internal/detector"
	"github.com/kiranshivaraju/objcounter/internal/monitor"
	"github.com/kiranshivaraju/objcounter/internal/store"
	"github.com/kiranshivaraju/objcounter/internal/upload"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// Counter defines the counting operations the handlers depend on.
type Counter interface {
	CountAll(ctx context.Context, p counting.CountParams) (*models.CountResponse, error)
	Count(ctx context.Context, p counting.CountParams) (*models.TypeCountResponse, error)
	ObjectTypes(ctx context.Context) ([]*models.ObjectType, error)
	Correct(ctx context.Context, id int64, corrected int, objectType string) (*models.Result, error)
	Results(ctx context.Context, filter store.ResultFilter) ([]*models.Result, int, error)
	Result(ctx context.Context, id int64) (*models.ResultDetail, error)
	Delete(ctx context.Context, id int64) error
	BulkDelete(ctx context.Context, ids []int64) (*store.BulkDeleteResult, []string, error)
}

// PerformanceMonitor defines the telemetry operations the handlers depend on.
type PerformanceMonitor interface {
	Start(totalImages int) uuid.UUID
	Stop() models.PerformanceSummary
	UpdateStage(ctx context.Context, stage string, imageIndex *int)
	Current(ctx context.Context) (models.PerformanceMetrics, error)
	Summary() models.PerformanceSummary
}

var (
	_ Counter            = (*counting.Service)(nil)
	_ PerformanceMonitor = (*monitor.Monitor)(nil)
)

// writeServiceError maps a service error to its HTTP status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	var unknownType *counting.UnknownObjectTypeError
	switch {
	case errors.As(err, &unknownType):
		response.Error(w, http.StatusBadRequest, "INVALID_OBJECT_TYPE", "Invalid object type: "+unknownType.Name,
			map[string]any{"available_types": unknownType.Available})
	case errors.Is(err, counting.ErrObjectTypeRequired):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No object_type specified", nil)
	case errors.Is(err, upload.ErrNoFilename):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No image file selected", nil)
	case errors.Is(err, upload.ErrInvalidType):
		response.Error(w, http.StatusBadRequest, "INVALID_FILE_TYPE", "Invalid file type",
			map[string]any{"allowed_types": upload.AllowedExtensions})
	case errors.Is(err, upload.ErrTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Image exceeds the maximum upload size", nil)
	case errors.Is(err, upload.ErrNotAnImage):
		response.Error(w, http.StatusBadRequest, "INVALID_IMAGE", "File is not a readable image", nil)
	case errors.Is(err, upload.ErrInvalidName):
		response.Error(w, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename", nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Result not found", nil)
	case errors.Is(err, store.ErrNoObjectTypes):
		response.Error(w, http.StatusServiceUnavailable, "NO_OBJECT_TYPES", "No object types configured", nil)
	case errors.Is(err, detector.ErrDetectionTimeout):
		response.Error(w, http.StatusGatewayTimeout, "DETECTION_TIMEOUT",
			"Object detection took too long and was cancelled", nil)
	case errors.Is(err, detector.ErrDetectorUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "DETECTOR_UNAVAILABLE",
			"The detection pipeline is not available", nil)
	case errors.Is(err, detector.ErrInvalidResponse):
		response.Error(w, http.StatusBadGateway, "DETECTOR_INVALID_RESPONSE",
			"The detection pipeline returned an invalid response", nil)
	default:
		slog.Error("request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

// resultID parses the {id} path parameter.
func resultID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

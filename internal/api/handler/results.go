package handler

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/objcounter/internal/api/response"
	"github.com/kiranshivaraju/objcounter/internal/store"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

type correctionBody struct {
	ResultID       *int64       `json:"result_id"`
	CorrectedCount *json.Number `json:"corrected_count"`
	ObjectType     string       `json:"object_type"`
}

// nonNegativeInt validates a JSON number as a count.
func nonNegativeInt(n json.Number) (int, bool) {
	v, err := strconv.ParseInt(n.String(), 10, 32)
	if err != nil || v < 0 {
		return 0, false
	}
	return int(v), true
}

// NewCorrectHandler returns an http.HandlerFunc for PUT /api/correct.
func NewCorrectHandler(svc Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req correctionBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "JSON data required", nil)
			return
		}
		if req.ResultID == nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "result_id is required", nil)
			return
		}
		if req.CorrectedCount == nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "corrected_count is required", nil)
			return
		}
		corrected, ok := nonNegativeInt(*req.CorrectedCount)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"corrected_count must be a non-negative integer", nil)
			return
		}

		res, err := svc.Correct(r.Context(), *req.ResultID, corrected, req.ObjectType)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, correctionResponse(res, "Correction saved successfully"))
	}
}

// NewFeedbackHandler returns an http.HandlerFunc for PUT /api/results/{id}/feedback.
func NewFeedbackHandler(svc Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := resultID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid result id", nil)
			return
		}

		var req correctionBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No data provided", nil)
			return
		}
		if req.CorrectedCount == nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "corrected_count is required", nil)
			return
		}
		corrected, ok := nonNegativeInt(*req.CorrectedCount)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"corrected_count must be a non-negative integer", nil)
			return
		}

		res, err := svc.Correct(r.Context(), id, corrected, req.ObjectType)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, correctionResponse(res, "Feedback updated successfully"))
	}
}

func correctionResponse(res *models.Result, msg string) models.CorrectionResponse {
	out := models.CorrectionResponse{
		Success:        true,
		Message:        msg,
		ResultID:       res.ID,
		ObjectType:     res.ObjectType,
		PredictedCount: res.PredictedCount,
		UpdatedAt:      res.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if res.CorrectedCount != nil {
		out.CorrectedCount = *res.CorrectedCount
	}
	return out
}

// NewListResultsHandler returns an http.HandlerFunc for GET /api/results.
// Unparseable page and per_page values fall back to their defaults.
func NewListResultsHandler(svc Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		perPage, _ := strconv.Atoi(q.Get("per_page"))
		page, perPage = store.NormalizePage(page, perPage)

		results, total, err := svc.Results(r.Context(), store.ResultFilter{
			ObjectType: q.Get("object_type"),
			Page:       page,
			PerPage:    perPage,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if results == nil {
			results = []*models.Result{}
		}

		response.JSON(w, models.ResultsPage{
			Success:    true,
			Results:    results,
			Pagination: response.NewPagination(page, perPage, total),
		})
	}
}

// NewGetResultHandler returns an http.HandlerFunc for GET /api/results/{id}.
func NewGetResultHandler(svc Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := resultID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid result id", nil)
			return
		}
		detail, err := svc.Result(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, models.ResultDetailResponse{Success: true, Result: detail})
	}
}

// NewDeleteResultHandler returns an http.HandlerFunc for DELETE /api/results/{id}.
func NewDeleteResultHandler(svc Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := resultID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid result id", nil)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		response.JSON(w, map[string]any{
			"success":           true,
			"message":           "Result deleted successfully",
			"deleted_result_id": id,
		})
	}
}

// NewBulkDeleteHandler returns an http.HandlerFunc for DELETE /api/results/bulk-delete.
// IDs may be sent as JSON numbers or numeric strings.
func NewBulkDeleteHandler(svc Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResultIDs any `json:"result_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No data provided", nil)
			return
		}

		ids, msg := parseIDs(req.ResultIDs)
		if msg != "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", msg, nil)
			return
		}

		res, files, err := svc.BulkDelete(r.Context(), ids)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		failures := make([]models.BulkDeleteFailure, 0, len(res.Failures))
		for _, f := range res.Failures {
			failures = append(failures, models.BulkDeleteFailure{ID: f.ID, Reason: f.Reason})
		}
		deleted := res.Deleted
		if deleted == nil {
			deleted = []int64{}
		}

		message := fmt.Sprintf("Successfully deleted %d results", len(deleted))
		if len(failures) > 0 {
			message += fmt.Sprintf(", %d failures", len(failures))
		}

		response.JSON(w, models.BulkDeleteResponse{
			Success:          true,
			Message:          message,
			DeletedCount:     len(deleted),
			DeletedResultIDs: deleted,
			DeletedFiles:     files,
			FailedCount:      len(failures),
			Failures:         failures,
		})
	}
}

// parseIDs validates the result_ids payload, returning a user-facing message on failure.
func parseIDs(raw any) ([]int64, string) {
	if raw == nil {
		return nil, "No result IDs provided"
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, "result_ids must be a list"
	}
	if len(list) == 0 {
		return nil, "No result IDs provided"
	}

	ids := make([]int64, 0, len(list))
	for _, v := range list {
		switch n := v.(type) {
		case float64:
			if n != math.Trunc(n) {
				return nil, "All result IDs must be integers"
			}
			ids = append(ids, int64(n))
		case string:
			id, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, "All result IDs must be integers"
			}
			ids = append(ids, id)
		default:
			return nil, "All result IDs must be integers"
		}
	}
	return ids, ""
}

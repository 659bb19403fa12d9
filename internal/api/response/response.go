package response

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/kiranshivaraju/objcounter/pkg/models"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// NewPagination derives page count and navigation flags. perPage must be positive.
func NewPagination(page, perPage, total int) models.Pagination {
	pages := int(math.Ceil(float64(total) / float64(perPage)))
	return models.Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

// JSONStatus writes data with an explicit status, for bodies that keep their
// own shape on failure.
func JSONStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, data)
}

// Error writes {"error": message, "code": code}.
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorBody{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

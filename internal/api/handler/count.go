package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/objcounter/internal/api/response"
	"github.com/kiranshivaraju/objcounter/internal/counting"
	"github.com/kiranshivaraju/objcounter/pkg/models"
)

// multipartOverhead is the allowance for form fields and part headers on top
// of the image itself.
const multipartOverhead = 1 << 20

// NewCountAllHandler returns an http.HandlerFunc for POST /api/count-all.
// The image arrives as the multipart part "image"; "prompt" and
// "description" are optional form fields.
func NewCountAllHandler(svc Counter, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := readUpload(w, r, maxUploadBytes)
		if !ok {
			return
		}
		params.Prompt = r.FormValue("prompt")

		result, err := svc.CountAll(r.Context(), params)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.JSON(w, result)
	}
}

// NewCountHandler returns an http.HandlerFunc for POST /api/count, which
// counts one object type named by the "object_type" form field.
func NewCountHandler(svc Counter, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := readUpload(w, r, maxUploadBytes)
		if !ok {
			return
		}
		params.ObjectType = strings.TrimSpace(r.FormValue("object_type"))
		if params.ObjectType == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No object_type specified", nil)
			return
		}

		result, err := svc.Count(r.Context(), params)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.JSON(w, result)
	}
}

// readUpload parses the multipart body and reads the "image" part. On
// failure it writes the error response and returns false.
func readUpload(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) (counting.CountParams, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"Image exceeds the maximum upload size", nil)
			return counting.CountParams{}, false
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No image file provided", nil)
		return counting.CountParams{}, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No image file provided", nil)
		return counting.CountParams{}, false
	}
	defer file.Close()

	if header.Filename == "" {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No image file selected", nil)
		return counting.CountParams{}, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read image file", nil)
		return counting.CountParams{}, false
	}

	return counting.CountParams{
		Filename:    header.Filename,
		Image:       data,
		Description: r.FormValue("description"),
	}, true
}

// NewObjectTypesHandler returns an http.HandlerFunc for GET /api/object-types.
func NewObjectTypesHandler(svc Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		types, err := svc.ObjectTypes(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if types == nil {
			types = []*models.ObjectType{}
		}
		response.JSON(w, models.ObjectTypesResponse{Success: true, ObjectTypes: types})
	}
}

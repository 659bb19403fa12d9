package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/objcounter/internal/api/response"
	"github.com/kiranshivaraju/objcounter/internal/upload"
)

// NewUploadsHandler returns an http.HandlerFunc for GET /uploads/{filename}.
func NewUploadsHandler(uploads *upload.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := uploads.Resolve(chi.URLParam(r, "filename"))
		switch {
		case errors.Is(err, upload.ErrInvalidName):
			response.Error(w, http.StatusForbidden, "ACCESS_DENIED", "Access denied", nil)
			return
		case errors.Is(err, upload.ErrFileNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "File not found", nil)
			return
		case err != nil:
			writeServiceError(w, err)
			return
		}
		http.ServeFile(w, r, path)
	}
}

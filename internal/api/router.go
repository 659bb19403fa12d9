package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/objcounter/internal/api/middleware"
	"github.com/kiranshivaraju/objcounter/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler      http.HandlerFunc
	ObjectTypesHandler http.HandlerFunc
	CountHandler       http.HandlerFunc
	CountAllHandler    http.HandlerFunc
	CorrectHandler     http.HandlerFunc
	ListResults        http.HandlerFunc
	GetResult          http.HandlerFunc
	FeedbackHandler    http.HandlerFunc
	DeleteResult       http.HandlerFunc
	BulkDelete         http.HandlerFunc
	UploadsHandler     http.HandlerFunc

	StartMonitoring http.HandlerFunc
	StopMonitoring  http.HandlerFunc
	Metrics         http.HandlerFunc
	UpdateStage     http.HandlerFunc
	Summary         http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.ClientIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Health stays outside the rate limit so probes never see 429.
	r.Get("/health", orNotImplemented(deps.HealthHandler))
	r.Get("/uploads/{filename}", orNotImplemented(deps.UploadsHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Get("/api/object-types", orNotImplemented(deps.ObjectTypesHandler))
		r.Post("/api/count", orNotImplemented(deps.CountHandler))
		r.Post("/api/count-all", orNotImplemented(deps.CountAllHandler))
		r.Put("/api/correct", orNotImplemented(deps.CorrectHandler))

		r.Get("/api/results", orNotImplemented(deps.ListResults))
		r.Delete("/api/results/bulk-delete", orNotImplemented(deps.BulkDelete))
		r.Get("/api/results/{id}", orNotImplemented(deps.GetResult))
		r.Delete("/api/results/{id}", orNotImplemented(deps.DeleteResult))
		r.Put("/api/results/{id}/feedback", orNotImplemented(deps.FeedbackHandler))

		r.Route("/api/performance", func(r chi.Router) {
			r.Post("/start", orNotImplemented(deps.StartMonitoring))
			r.Post("/stop", orNotImplemented(deps.StopMonitoring))
			r.Get("/metrics", orNotImplemented(deps.Metrics))
			r.Post("/update-stage", orNotImplemented(deps.UpdateStage))
			r.Get("/summary", orNotImplemented(deps.Summary))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}

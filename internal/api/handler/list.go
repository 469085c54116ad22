package handler

import (
	"context"
	"log/slog"
	"net/http"

	mw "github.com/kiranshivaraju/crashbot/internal/api/middleware"
	"github.com/kiranshivaraju/crashbot/internal/api/response"
	"github.com/kiranshivaraju/crashbot/pkg/models"
)

// IncidentLister defines the projection the listing handler serves.
type IncidentLister interface {
	CurrentIncidents(ctx context.Context) (*models.Incidents, error)
}

// RequestCounter records listing requests.
type RequestCounter interface {
	IncListRequests(ctx context.Context, path string)
}

// NewListHandler returns an http.HandlerFunc for GET /list. The body is the
// bare {"open": [...], "closed": [...]} object.
func NewListHandler(lister IncidentLister, counter RequestCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counter.IncListRequests(r.Context(), r.URL.Path)

		incidents, err := lister.CurrentIncidents(r.Context())
		if err != nil {
			requestID, _ := mw.GetRequestID(r.Context())
			slog.Error("listing incidents failed", "error", err, "request_id", requestID)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to list incidents", nil)
			return
		}

		response.Raw(w, http.StatusOK, incidents)
	}
}

// Ping answers liveness probes.
func Ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

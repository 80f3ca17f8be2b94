package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/blockwatch/blockwatch/internal/api"
	"github.com/blockwatch/blockwatch/internal/database"
	"github.com/blockwatch/blockwatch/internal/services"
)

// ObservationRecorder stores an observation and runs its rules pass
type ObservationRecorder interface {
	Record(ctx context.Context, in services.ObservationInput) (*services.RecordResult, error)
}

// FindingLister pages through stored alerts and recommendations
type FindingLister interface {
	ListAlerts(ctx context.Context, f database.FindingFilter, offset, limit int) ([]database.Alert, int64, error)
	ListRecommendations(ctx context.Context, f database.FindingFilter, offset, limit int) ([]database.Recommendation, int64, error)
}

// ObservationHandler serves observation intake and the alert and recommendation lists
type ObservationHandler struct {
	recorder ObservationRecorder
	findings FindingLister
}

// NewObservationHandler creates a new observation handler
func NewObservationHandler(recorder ObservationRecorder, findings FindingLister) *ObservationHandler {
	return &ObservationHandler{recorder: recorder, findings: findings}
}

// SetupRoutes configures the observation API routes
func (h *ObservationHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/observations", h.handleCreateObservation)
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/recommendations", h.handleListRecommendations)
}

// handleCreateObservation handles POST /api/observations
func (h *ObservationHandler) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	var req api.CreateObservationRequest
	if !api.Bind(w, r, &req) {
		return
	}

	res, err := h.recorder.Record(r.Context(), req.ToObservationInput())
	switch {
	case errors.Is(err, services.ErrInvalidIdentity):
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_identity", services.ErrInvalidIdentity.Error())
		return
	case errors.Is(err, services.ErrMissingSubmitter):
		api.RespondValidationError(w, map[string]string{"submittedBy": "is required"})
		return
	case errors.Is(err, services.ErrSiteNotFound):
		api.RespondErrorWithCode(w, http.StatusNotFound, "site_not_found", err.Error())
		return
	case err != nil:
		api.RespondInternalError(w, "record observation", err)
		return
	}

	api.RespondJSON(w, http.StatusCreated, api.RecordResultToResponse(res))
}

// handleListAlerts handles GET /api/alerts
func (h *ObservationHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := api.ParseFindingFilter(r)
	if err := checkStatus(filter.Status, string(database.AlertStatusActive), string(database.AlertStatusResolved)); err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	page := api.ParsePagination(r)

	alerts, total, err := h.findings.ListAlerts(r.Context(), filter, page.Offset(), page.PerPage)
	if err != nil {
		api.RespondInternalError(w, "list alerts", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, page.Paginated(api.AlertsToItems(alerts), total))
}

// handleListRecommendations handles GET /api/recommendations
func (h *ObservationHandler) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	filter := api.ParseFindingFilter(r)
	if err := checkStatus(filter.Status, string(database.RecommendationStatusPending), string(database.RecommendationStatusResolved)); err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	page := api.ParsePagination(r)

	recs, total, err := h.findings.ListRecommendations(r.Context(), filter, page.Offset(), page.PerPage)
	if err != nil {
		api.RespondInternalError(w, "list recommendations", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, page.Paginated(api.RecommendationsToItems(recs), total))
}

func checkStatus(status string, allowed ...string) error {
	if status == "" {
		return nil
	}
	for _, a := range allowed {
		if status == a {
			return nil
		}
	}
	return fmt.Errorf("status must be one of %v", allowed)
}

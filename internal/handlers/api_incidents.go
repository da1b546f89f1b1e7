package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/triagehub/triagehub/internal/api"
	"github.com/triagehub/triagehub/internal/middleware"
	"github.com/triagehub/triagehub/internal/services"
)

// handleListIncidents handles GET /api/incidents with status, min_score and
// search filters.
func (h *APIHandler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)

	filter := services.IncidentFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("min_score"); v != "" {
		if score, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinScore = score
		}
	}

	incidents, total, err := h.incidentService.List(filter, params)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incidents")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: incidents,
		Pagination: api.PaginationMeta{
			Page:       params.Page,
			PerPage:    params.PerPage,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	})
}

// handleHighPriority handles GET /api/incidents/high-priority. The default
// threshold of 70 can be overridden with ?threshold=.
func (h *APIHandler) handleHighPriority(w http.ResponseWriter, r *http.Request) {
	threshold := 70.0
	if v := r.URL.Query().Get("threshold"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			threshold = t
		}
	}

	incidents, err := h.incidentService.HighPriority(threshold)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get high-priority incidents")
		return
	}
	api.RespondJSON(w, http.StatusOK, incidents)
}

// handleGetIncident handles GET /api/incidents/{uuid}.
func (h *APIHandler) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.incidentService.Get(r.PathValue("uuid"))
	if errors.Is(err, services.ErrNotFound) {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incident")
		return
	}
	api.RespondJSON(w, http.StatusOK, incident)
}

// handleUpdateIncident handles PATCH /api/incidents/{uuid}.
func (h *APIHandler) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	var req api.IncidentUpdateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	incident, err := h.incidentService.Update(r.PathValue("uuid"), req, user, r.RemoteAddr)
	if errors.Is(err, services.ErrNotFound) {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}
	if errors.Is(err, services.ErrInvalidStatus) {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to update incident")
		return
	}

	h.hub.NotifyIncident(incident)
	api.RespondJSON(w, http.StatusOK, incident)
}

// handleMergeIncident handles POST /api/incidents/{uuid}/merge.
func (h *APIHandler) handleMergeIncident(w http.ResponseWriter, r *http.Request) {
	var req api.MergeIncidentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SourceIncidentID == 0 {
		api.RespondError(w, http.StatusBadRequest, "source_incident_id is required")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	incident, err := h.incidentService.Merge(r.PathValue("uuid"), req.SourceIncidentID, req.Reason, user, r.RemoteAddr)
	if errors.Is(err, services.ErrNotFound) {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.hub.NotifyIncident(incident)
	api.RespondJSON(w, http.StatusOK, incident)
}

// handleIncidentReport handles GET /api/incidents/{uuid}/report, returning
// a Markdown document.
func (h *APIHandler) handleIncidentReport(w http.ResponseWriter, r *http.Request) {
	incident, err := h.incidentService.Get(r.PathValue("uuid"))
	if errors.Is(err, services.ErrNotFound) {
		api.RespondError(w, http.StatusNotFound, "Incident not found")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incident")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	report := services.BuildIncidentReport(h.db, incident, user, r.RemoteAddr)

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(report))
}

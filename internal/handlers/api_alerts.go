package handlers

import (
	"errors"
	"net/http"

	"github.com/triagehub/triagehub/internal/api"
	"github.com/triagehub/triagehub/internal/services"
)

// handleListAlerts handles GET /api/alerts with optional source and
// severity filters.
func (h *APIHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	source := r.URL.Query().Get("source")
	severity := r.URL.Query().Get("severity")

	rows, total, err := h.incidentService.ListAlerts(source, severity, params)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get alerts")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: rows,
		Pagination: api.PaginationMeta{
			Page:       params.Page,
			PerPage:    params.PerPage,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	})
}

// handleGetAlert handles GET /api/alerts/{id}.
func (h *APIHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.incidentService.GetAlert(r.PathValue("id"))
	if errors.Is(err, services.ErrNotFound) {
		api.RespondError(w, http.StatusNotFound, "Alert not found")
		return
	}
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// Package handlers exposes the REST and websocket API.
package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/triagehub/triagehub/internal/api"
	"github.com/triagehub/triagehub/internal/metrics"
	"github.com/triagehub/triagehub/internal/middleware"
	"github.com/triagehub/triagehub/internal/services"
)

// Version is the reported application version.
const Version = "1.0.0"

// APIHandler handles all API endpoints.
type APIHandler struct {
	db              *gorm.DB
	importService   *services.ImportService
	incidentService *services.IncidentService
	auth            *middleware.JWTAuthMiddleware
	hub             *WSHub
	demoDataDir     string
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(db *gorm.DB, importService *services.ImportService, incidentService *services.IncidentService, auth *middleware.JWTAuthMiddleware, hub *WSHub, demoDataDir string) *APIHandler {
	return &APIHandler{
		db:              db,
		importService:   importService,
		incidentService: incidentService,
		auth:            auth,
		hub:             hub,
		demoDataDir:     demoDataDir,
	}
}

// SetupRoutes registers all API routes.
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Auth
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)

	// Dashboard
	mux.HandleFunc("GET /api/stats", h.handleStats)
	mux.HandleFunc("GET /api/health", h.handleHealth)

	// Alerts and ingestion
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/alerts/{id}", h.handleGetAlert)
	mux.HandleFunc("POST /api/alerts/import", h.handleImportJSON)
	mux.HandleFunc("POST /api/upload", h.handleUpload)
	mux.HandleFunc("POST /api/seed", h.handleSeed)
	mux.HandleFunc("POST /api/recorrelate", h.handleRecorrelate)

	// Incidents
	mux.HandleFunc("GET /api/incidents", h.handleListIncidents)
	mux.HandleFunc("GET /api/incidents/high-priority", h.handleHighPriority)
	mux.HandleFunc("GET /api/incidents/{uuid}", h.handleGetIncident)
	mux.HandleFunc("PATCH /api/incidents/{uuid}", h.handleUpdateIncident)
	mux.HandleFunc("POST /api/incidents/{uuid}/merge", h.handleMergeIncident)
	mux.HandleFunc("GET /api/incidents/{uuid}/report", h.handleIncidentReport)

	// Audit trail
	mux.HandleFunc("GET /api/audit-log", h.handleAuditLog)

	// Live incident feed
	mux.HandleFunc("GET /api/ws/incidents", h.handleIncidentWS)

	// Prometheus exposition
	mux.Handle("GET /metrics", metrics.Handler())
}

// handleHealth handles GET /api/health.
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "unavailable"
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	api.RespondJSON(w, status, api.HealthResponse{
		Status:   "ok",
		Database: dbStatus,
		Version:  Version,
	})
}

// handleStats handles GET /api/stats.
func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.incidentService.Stats()
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleAuditLog handles GET /api/audit-log.
func (h *APIHandler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	params := api.ParsePagination(r)
	entries, total, err := services.ListAuditLog(h.db, params.PerPage, params.Offset())
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to load audit log")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data: entries,
		Pagination: api.PaginationMeta{
			Page:       params.Page,
			PerPage:    params.PerPage,
			Total:      total,
			TotalPages: params.TotalPages(total),
		},
	})
}

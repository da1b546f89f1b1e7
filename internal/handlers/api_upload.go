package handlers

import (
	"errors"
	"net/http"

	"github.com/triagehub/triagehub/internal/alerts"
	"github.com/triagehub/triagehub/internal/api"
	"github.com/triagehub/triagehub/internal/ingest"
	"github.com/triagehub/triagehub/internal/middleware"
	"github.com/triagehub/triagehub/internal/services"
)

// maxUploadSize caps uploaded alert files at 25 MB.
const maxUploadSize = 25 << 20

// handleImportJSON handles POST /api/alerts/import: a JSON array of raw
// alert records in the request body, with an optional ?source= hint.
func (h *APIHandler) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	records, err := ingest.DecodeJSON(r.Body)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.runImport(w, r, records, r.URL.Query().Get("source"))
}

// handleUpload handles POST /api/upload: a multipart form with a "file"
// field holding a JSON or CSV export, with an optional "source" field.
func (h *APIHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	records, err := ingest.Decode(file, header.Filename)
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.runImport(w, r, records, r.FormValue("source"))
}

// handleSeed handles POST /api/seed: loads the bundled demo data set.
func (h *APIHandler) handleSeed(w http.ResponseWriter, r *http.Request) {
	if h.demoDataDir == "" {
		api.RespondError(w, http.StatusNotFound, "No demo data directory configured")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	summary, err := services.SeedDemoData(h.importService, h.demoDataDir, user, r.RemoteAddr)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	api.RespondJSON(w, http.StatusOK, summary)
}

// handleRecorrelate handles POST /api/recorrelate: a full rebuild of all
// incidents from the stored alert corpus.
func (h *APIHandler) handleRecorrelate(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	summary, err := h.importService.Recorrelate(user, r.RemoteAddr)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Recorrelation failed")
		return
	}

	h.broadcastTouched()
	api.RespondJSON(w, http.StatusOK, summary)
}

// runImport feeds decoded records through the pipeline and writes the
// import summary. A batch where every record was rejected still returns
// 200: rejection is a per-record outcome, not a request failure.
func (h *APIHandler) runImport(w http.ResponseWriter, r *http.Request, records []alerts.RawRecord, sourceHint string) {
	if len(records) == 0 {
		api.RespondError(w, http.StatusBadRequest, "No records in upload")
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	summary, err := h.importService.ImportRecords(records, sourceHint, user, r.RemoteAddr)
	if err != nil {
		var structural *ingest.StructuralError
		if errors.As(err, &structural) {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	api.RespondJSON(w, http.StatusOK, summary)
}

// broadcastTouched pushes the current open incident list to websocket
// subscribers after a bulk rebuild, where per-incident notifications from
// the import pipeline do not apply.
func (h *APIHandler) broadcastTouched() {
	incidents, err := h.incidentService.HighPriority(0)
	if err != nil {
		return
	}
	for i := range incidents {
		h.hub.NotifyIncident(&incidents[i])
	}
}

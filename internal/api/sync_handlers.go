package api

import (
	"net/http"
)

// SyncStatus handles GET /api/v1/sync/status. Polled by the front-end
// connectivity indicator.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.data.Status(r.Context()))
}

// ForceSync handles POST /api/v1/sync/force. Runs one pass immediately;
// a pass already in progress (or offline state) comes back with Skipped
// set rather than an error.
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.data.ForceSync(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Sync pass failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearData handles DELETE /api/v1/data. Removes all local records and
// queued mutations for the business. Used on logout/reset.
func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessID(w, r)
	if !ok {
		return
	}

	if err := h.data.ClearAllData(r.Context(), businessID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListSessions returns every known customer's current booking snapshot.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Snapshots())
}

// GetSessionAudit returns the transition history of one booking session.
func (h *Handlers) GetSessionAudit(w http.ResponseWriter, r *http.Request) {
	if h.trail == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Audit trail not configured")
		return
	}

	sessionID := chi.URLParam(r, "id")
	entries, err := h.trail.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load audit trail")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListCategories returns the service categories for the browse screen.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.directory.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// ListSubServices returns the sub-services of one category.
func (h *Handlers) ListSubServices(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "id")
	subs, err := h.directory.ListSubServices(r.Context(), categoryID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// ListWorkers returns the worker candidates offering one sub-service.
func (h *Handlers) ListWorkers(w http.ResponseWriter, r *http.Request) {
	subServiceID := chi.URLParam(r, "id")
	workers, err := h.directory.ListWorkers(r.Context(), subServiceID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

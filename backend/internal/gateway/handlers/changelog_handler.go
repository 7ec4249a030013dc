package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nafes-passport/backend/internal/changelog"
	"nafes-passport/backend/internal/gateway/util"
)

// ChangeLogHandler exposes the audit history and restore endpoints.
type ChangeLogHandler struct {
	Logs *changelog.Service
}

// ListChangeLogs handles GET /api/changelog?limit=N. Entries come back
// newest first, capped at 100.
func (h *ChangeLogHandler) ListChangeLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			util.WriteJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := h.Logs.ListRecent(r.Context(), limit)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entries": entries,
	})
}

// RestoreSnapshot handles POST /api/changelog/{id}/restore. The entry's
// stored snapshot becomes the current student record again.
func (h *ChangeLogHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := h.Logs.Restore(r.Context(), id)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"student": st,
	})
}

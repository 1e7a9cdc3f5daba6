package httpapi

import (
	"net/http"
	"strconv"
)

// handleListAudit returns the most recent audit entries, newest first.
func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := a.auth.RecentAudit(r.Context(), limit)
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

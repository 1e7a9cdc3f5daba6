package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"formdeck.io/internal/auth"
)

type createPermissionRequest struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

func (a *API) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	perm, err := a.auth.CreatePermission(r.Context(), req.Key, req.Description)
	if err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "PERMISSION_CREATE", "permission", perm.ID, map[string]any{"key": perm.Key}) {
		return
	}
	writeJSON(w, http.StatusCreated, perm)
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.auth.ListPermissions(r.Context())
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perms)
}

func (a *API) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := a.auth.GetPermission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

type updatePermissionRequest struct {
	Key         *string `json:"key"`
	Description *string `json:"description"`
}

func (a *API) handleUpdatePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updatePermissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	perm, err := a.auth.UpdatePermission(r.Context(), id, auth.PermissionUpdate{
		Key:         req.Key,
		Description: req.Description,
	})
	if err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "PERMISSION_UPDATE", "permission", perm.ID, nil) {
		return
	}
	writeJSON(w, http.StatusOK, perm)
}

func (a *API) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.auth.DeletePermission(r.Context(), id); err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "PERMISSION_DELETE", "permission", id, nil) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

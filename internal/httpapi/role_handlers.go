package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"formdeck.io/internal/auth"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role, err := a.auth.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "ROLE_CREATE", "role", role.ID, map[string]any{"name": role.Name}) {
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.auth.ListRoles(r.Context())
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	role, err := a.auth.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role, err := a.auth.UpdateRole(r.Context(), id, auth.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "ROLE_UPDATE", "role", role.ID, nil) {
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.auth.DeleteRole(r.Context(), id); err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "ROLE_DELETE", "role", id, nil) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleAttachPermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	permID := chi.URLParam(r, "permID")

	if err := a.auth.AttachPermission(r.Context(), roleID, permID); err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "PERMISSION_ATTACH", "role", roleID, map[string]any{"permission_id": permID}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleDetachPermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "id")
	permID := chi.URLParam(r, "permID")

	if err := a.auth.DetachPermission(r.Context(), roleID, permID); err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "PERMISSION_DETACH", "role", roleID, map[string]any{"permission_id": permID}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

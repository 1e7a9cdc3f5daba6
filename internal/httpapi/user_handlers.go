package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"formdeck.io/internal/audit"
	"formdeck.io/internal/auth"
)

// recordAudit persists an audit row for a mutating request and mirrors it
// to the log stream. A failed write fails the request so the trail never
// silently loses entries.
func (a *API) recordAudit(w http.ResponseWriter, r *http.Request, action, entity, entityID string, payload map[string]any) bool {
	entry := auth.AuditEntry{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		IP:       clientIP(r),
		Payload:  payload,
	}
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		entry.ActorID = principal.User.ID
		entry.ActorEmail = principal.User.Email
	}
	if err := a.auth.RecordAudit(r.Context(), &entry); err != nil {
		translateError(w, r, err)
		return false
	}
	audit.LogEvent(r.Context(), action, map[string]any{
		"entity":    entity,
		"entity_id": entityID,
	})
	return true
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	IsActive *bool  `json:"is_active"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	user, err := a.auth.CreateUser(r.Context(), req.Email, req.Name, req.Password, active)
	if err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "USER_CREATE", "user", user.ID, map[string]any{"email": user.Email}) {
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.UpdateUser(r.Context(), id, auth.UserUpdate{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		translateError(w, r, err)
		return
	}

	payload := map[string]any{}
	if req.Name != nil {
		payload["name"] = *req.Name
	}
	if req.IsActive != nil {
		payload["is_active"] = *req.IsActive
	}
	if !a.recordAudit(w, r, "USER_UPDATE", "user", user.ID, payload) {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.auth.DeleteUser(r.Context(), id); err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "USER_DELETE", "user", id, nil) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	roleID := chi.URLParam(r, "roleID")

	if err := a.auth.AssignRole(r.Context(), userID, roleID); err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "ROLE_ASSIGN", "user", userID, map[string]any{"role_id": roleID}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	roleID := chi.URLParam(r, "roleID")

	if err := a.auth.RevokeRole(r.Context(), userID, roleID); err != nil {
		translateError(w, r, err)
		return
	}
	if !a.recordAudit(w, r, "ROLE_REVOKE", "user", userID, map[string]any{"role_id": roleID}) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

package httpapi

import (
	"errors"
	"net/http"
	"time"

	"formdeck.io/internal/audit"
	"formdeck.io/internal/auth"
	"formdeck.io/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	User             auth.User `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, user, err := a.auth.Login(r.Context(), req.Email, req.Password, auth.ClientInfo{
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.CountAuthFailure("invalid_credentials")
			audit.LogEvent(r.Context(), "login_failed", map[string]any{"email": req.Email})
			writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if errors.Is(err, auth.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		translateError(w, r, err)
		return
	}

	audit.LogEvent(r.Context(), "login", map[string]any{"user_id": user.ID, "email": user.Email})
	writeJSON(w, http.StatusOK, loginResponse{
		Access:           pair.Access,
		Refresh:          pair.Refresh,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	access, exp, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "refresh token is required")
		case errors.Is(err, auth.ErrRefreshTokenExpired):
			obs.CountAuthFailure("refresh_expired")
			writeError(w, r, http.StatusUnauthorized, "Refresh token expired")
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			obs.CountAuthFailure("refresh_invalid")
			writeError(w, r, http.StatusUnauthorized, "Invalid refresh token")
		default:
			translateError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access":            access,
		"access_expires_at": exp,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// handleLogout revokes the refresh token. Unknown and already revoked
// tokens are treated as success so retries stay clean.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		translateError(w, r, err)
		return
	}

	audit.LogEvent(r.Context(), "logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

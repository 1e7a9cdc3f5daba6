package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"formdeck.io/internal/auth"
	"formdeck.io/internal/obs"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

// requireAuth is the access guard: it validates the bearer token, rejects
// disabled users via a live lookup, and attaches the principal to the
// request context. Expired tokens get a distinct message so clients know a
// refresh may help.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.CountAuthFailure("missing_token")
			writeError(w, r, http.StatusUnauthorized, "Missing token")
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				obs.CountAuthFailure("expired_token")
				writeError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrUserDisabled):
				obs.CountAuthFailure("user_disabled")
				writeError(w, r, http.StatusUnauthorized, "User disabled")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
				obs.CountAuthFailure("invalid_token")
				writeError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission is the permission guard. It must run after requireAuth;
// all listed keys are required. The set is recomputed from the store on
// every request so role changes apply immediately.
func (a *API) requirePermission(keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if err := a.auth.Require(r.Context(), principal.User.ID, keys...); err != nil {
				if errors.Is(err, auth.ErrForbidden) {
					obs.CountAuthFailure("forbidden")
					writeError(w, r, http.StatusForbidden, "Forbidden")
					return
				}
				writeError(w, r, http.StatusInternalServerError, "authorization error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// Package httpapi exposes the REST surface over the access-control service.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"formdeck.io/internal/auth"
	"formdeck.io/internal/obs"
)

// ReadyProbe answers readiness checks, pinging the database when one is
// configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	auth       *auth.Service
	readyProbe ReadyProbe
	version    string

	maxBodyBytes int64
	rateBurst    int
	ratePerSec   int
}

// Option tweaks API construction.
type Option func(*API)

// WithRateLimit overrides the per-IP token bucket parameters.
func WithRateLimit(burst, perSec int) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSec > 0 {
			a.ratePerSec = perSec
		}
	}
}

// New constructs the API.
func New(svc *auth.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		auth:         svc,
		readyProbe:   rp,
		version:      version,
		maxBodyBytes: 1 << 20,
		rateBurst:    20,
		ratePerSec:   10,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler assembles the router and the middleware chain.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(SecurityHeaders)
	r.Use(CORS)
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, a.maxBodyBytes) })
	r.Use(func(next http.Handler) http.Handler { return RateLimit(next, a.rateBurst, a.ratePerSec) })

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Post("/auth/login", a.handleLogin)
	r.Post("/auth/refresh", a.handleRefresh)
	r.Post("/auth/logout", a.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth)

		r.With(a.requirePermission(auth.PermUsersCreate)).Post("/users", a.handleCreateUser)
		r.With(a.requirePermission(auth.PermUsersRead)).Get("/users", a.handleListUsers)
		r.With(a.requirePermission(auth.PermUsersRead)).Get("/users/{id}", a.handleGetUser)
		r.With(a.requirePermission(auth.PermUsersUpdate)).Patch("/users/{id}", a.handleUpdateUser)
		r.With(a.requirePermission(auth.PermUsersDelete)).Delete("/users/{id}", a.handleDeleteUser)
		r.With(a.requirePermission(auth.PermRolesUpdate)).Post("/users/{id}/roles/{roleID}", a.handleAssignRole)
		r.With(a.requirePermission(auth.PermRolesUpdate)).Delete("/users/{id}/roles/{roleID}", a.handleRevokeRole)

		r.With(a.requirePermission(auth.PermRolesCreate)).Post("/roles", a.handleCreateRole)
		r.With(a.requirePermission(auth.PermRolesRead)).Get("/roles", a.handleListRoles)
		r.With(a.requirePermission(auth.PermRolesRead)).Get("/roles/{id}", a.handleGetRole)
		r.With(a.requirePermission(auth.PermRolesUpdate)).Patch("/roles/{id}", a.handleUpdateRole)
		r.With(a.requirePermission(auth.PermRolesDelete)).Delete("/roles/{id}", a.handleDeleteRole)
		r.With(a.requirePermission(auth.PermRolesUpdate)).Post("/roles/{id}/permissions/{permID}", a.handleAttachPermission)
		r.With(a.requirePermission(auth.PermRolesUpdate)).Delete("/roles/{id}/permissions/{permID}", a.handleDetachPermission)

		r.With(a.requirePermission(auth.PermPermissionsCreate)).Post("/permissions", a.handleCreatePermission)
		r.With(a.requirePermission(auth.PermPermissionsRead)).Get("/permissions", a.handleListPermissions)
		r.With(a.requirePermission(auth.PermPermissionsRead)).Get("/permissions/{id}", a.handleGetPermission)
		r.With(a.requirePermission(auth.PermPermissionsUpdate)).Patch("/permissions/{id}", a.handleUpdatePermission)
		r.With(a.requirePermission(auth.PermPermissionsDelete)).Delete("/permissions/{id}", a.handleDeletePermission)

		r.With(a.requirePermission(auth.PermAuditRead)).Get("/audit", a.handleListAudit)
	})

	return obs.Instrument(r)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "formdeck-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

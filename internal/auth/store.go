package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations the access-control core needs.
// Implementations map uniqueness violations to ErrConflict, missing rows to
// ErrNotFound, and broken references to ErrNotFound as well.
type Store interface {
	CreateUser(ctx context.Context, email, name, passwordHash string, isActive bool) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error)
	DeleteUser(ctx context.Context, id string) error

	CreateRole(ctx context.Context, name, description string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	DeleteRole(ctx context.Context, id string) error

	CreatePermission(ctx context.Context, key, description string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id string) (Permission, error)
	UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error)
	DeletePermission(ctx context.Context, id string) error
	EnsurePermissions(ctx context.Context, perms []Permission) error

	// AssignRole and AttachPermission are idempotent upserts; repeating an
	// existing pair is not an error.
	AssignRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
	AttachPermission(ctx context.Context, roleID, permissionID string) error
	DetachPermission(ctx context.Context, roleID, permissionID string) error

	// UserPermissionKeys walks user_roles -> role_permissions -> permissions
	// and returns the distinct keys.
	UserPermissionKeys(ctx context.Context, userID string) ([]string, error)

	CreateRefreshToken(ctx context.Context, tok *RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (RefreshToken, error)
	// RevokeRefreshToken stamps every ledger row matching the token; revoking
	// an unknown or already-revoked token is a no-op, not an error.
	RevokeRefreshToken(ctx context.Context, token string, at time.Time) error

	CreateSession(ctx context.Context, s *Session) error

	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

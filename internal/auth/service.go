package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"formdeck.io/internal/ids"
)

// ClientInfo carries the request metadata recorded alongside tokens,
// sessions and audit rows.
type ClientInfo struct {
	UserAgent string
	IP        string
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	Access           string
	Refresh          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service provides authentication, permission resolution and the
// administrative operations over users, roles and permissions.
type Service struct {
	store  Store
	issuer *TokenIssuer
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the access-control service.
func NewService(store Store, issuer *TokenIssuer, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if issuer == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	s := &Service{store: store, issuer: issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureBuiltins makes sure the predefined permission catalog exists.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.EnsurePermissions(ctx, BuiltinPermissions)
}

// Login verifies credentials, issues an access/refresh pair, records the
// refresh token in the ledger and a session row for observability.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (TokenPair, User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return TokenPair{}, User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(password) < 6 {
		return TokenPair{}, User{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, User{}, ErrInvalidCredentials
		}
		return TokenPair{}, User{}, err
	}
	if !user.IsActive {
		return TokenPair{}, User{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, User{}, ErrInvalidCredentials
	}

	access, accessExp, err := s.issuer.IssueAccess(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	refresh, refreshExp, err := s.issuer.IssueRefresh(user.ID, user.Email)
	if err != nil {
		return TokenPair{}, User{}, err
	}

	now := s.now().UTC()
	rec := &RefreshToken{
		ID:        ids.New(),
		UserID:    user.ID,
		Token:     refresh,
		UserAgent: client.UserAgent,
		IP:        client.IP,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	}
	if err := s.store.CreateRefreshToken(ctx, rec); err != nil {
		return TokenPair{}, User{}, err
	}
	session := &Session{
		ID:        ids.New(),
		UserID:    user.ID,
		UserAgent: client.UserAgent,
		IP:        client.IP,
		CreatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return TokenPair{}, User{}, err
	}

	return TokenPair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, user, nil
}

// Refresh exchanges a refresh token for a new access token. The ledger row is
// consulted first (revocation, then ledger expiry), the signature after. The
// refresh token itself is deliberately not rotated.
func (s *Service) Refresh(ctx context.Context, token string) (string, time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", time.Time{}, fmt.Errorf("%w: refreshToken is required", ErrInvalidInput)
	}
	rec, err := s.store.FindRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, ErrInvalidRefreshToken
		}
		return "", time.Time{}, err
	}
	if rec.RevokedAt != nil {
		return "", time.Time{}, ErrInvalidRefreshToken
	}
	if s.now().After(rec.ExpiresAt) {
		return "", time.Time{}, ErrRefreshTokenExpired
	}
	claims, err := s.issuer.VerifyRefresh(token)
	if err != nil {
		return "", time.Time{}, ErrInvalidRefreshToken
	}
	return s.issuer.IssueAccess(claims.Subject, claims.Email)
}

// Logout revokes every ledger row matching the token. Logging out an unknown
// or already-revoked token still succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.store.RevokeRefreshToken(ctx, token, s.now().UTC())
}

// ResolvePermissions computes the effective permission set for a user: the
// union of keys reachable through every assigned role. Recomputed on every
// call, no cache.
func (s *Service) ResolvePermissions(ctx context.Context, userID string) (map[string]struct{}, error) {
	keys, err := s.store.UserPermissionKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// Authenticate is the access guard: it validates the bearer token and
// rejects missing or disabled users with a live lookup so deactivation takes
// effect immediately, unexpired tokens notwithstanding.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	if strings.TrimSpace(token) == "" {
		return Principal{}, ErrMissingToken
	}
	claims, err := s.issuer.VerifyAccess(token)
	if err != nil {
		return Principal{}, err
	}
	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrUserDisabled
		}
		return Principal{}, err
	}
	if !user.IsActive {
		return Principal{}, ErrUserDisabled
	}
	perms, err := s.ResolvePermissions(ctx, user.ID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{User: user, Permissions: perms}, nil
}

// Require is the permission guard: all listed keys must be present in the
// freshly resolved set, otherwise ErrForbidden.
func (s *Service) Require(ctx context.Context, userID string, keys ...string) error {
	perms, err := s.ResolvePermissions(ctx, userID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, ok := perms[key]; !ok {
			return ErrForbidden
		}
	}
	return nil
}

// CreateUser validates input, hashes the password and persists the user.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, isActive bool) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return User{}, fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidInput)
	}
	if len(password) < 6 {
		return User{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, email, name, hash, isActive)
}

// ListUsers returns all users, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// GetUser fetches one user by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, id)
}

// UpdateUser applies a partial update.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if len(name) < 2 {
			return User{}, fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidInput)
		}
		upd.Name = &name
	}
	return s.store.UpdateUser(ctx, id, upd)
}

// DeleteUser hard-deletes a user; joins, refresh tokens and sessions cascade.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.DeleteUser(ctx, id)
}

// CreateRole validates and persists a role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return Role{}, fmt.Errorf("%w: role name must be at least 2 characters", ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, name, strings.TrimSpace(description))
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches one role by id.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, id)
}

// UpdateRole applies a partial update.
func (s *Service) UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if len(name) < 2 {
			return Role{}, fmt.Errorf("%w: role name must be at least 2 characters", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return s.store.UpdateRole(ctx, id, upd)
}

// DeleteRole hard-deletes a role; its join rows cascade.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, id)
}

// CreatePermission validates and persists a permission.
func (s *Service) CreatePermission(ctx context.Context, key, description string) (Permission, error) {
	key = strings.TrimSpace(key)
	if len(key) < 3 {
		return Permission{}, fmt.Errorf("%w: permission key must be at least 3 characters", ErrInvalidInput)
	}
	return s.store.CreatePermission(ctx, key, strings.TrimSpace(description))
}

// ListPermissions returns the full catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// GetPermission fetches one permission by id.
func (s *Service) GetPermission(ctx context.Context, id string) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	return s.store.GetPermission(ctx, id)
}

// UpdatePermission applies a partial update.
func (s *Service) UpdatePermission(ctx context.Context, id string, upd PermissionUpdate) (Permission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	if upd.Key != nil {
		key := strings.TrimSpace(*upd.Key)
		if len(key) < 3 {
			return Permission{}, fmt.Errorf("%w: permission key must be at least 3 characters", ErrInvalidInput)
		}
		upd.Key = &key
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return s.store.UpdatePermission(ctx, id, upd)
}

// DeletePermission hard-deletes a permission.
func (s *Service) DeletePermission(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: permission id is required", ErrInvalidInput)
	}
	return s.store.DeletePermission(ctx, id)
}

// AssignRole links a role to a user; repeating an existing link succeeds.
func (s *Service) AssignRole(ctx context.Context, userID, roleID string) error {
	userID, roleID = strings.TrimSpace(userID), strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	return s.store.AssignRole(ctx, userID, roleID)
}

// RevokeRole removes a user-role link.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID string) error {
	userID, roleID = strings.TrimSpace(userID), strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	return s.store.RevokeRole(ctx, userID, roleID)
}

// AttachPermission links a permission to a role; repeats succeed.
func (s *Service) AttachPermission(ctx context.Context, roleID, permissionID string) error {
	roleID, permissionID = strings.TrimSpace(roleID), strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return fmt.Errorf("%w: role id and permission id are required", ErrInvalidInput)
	}
	return s.store.AttachPermission(ctx, roleID, permissionID)
}

// DetachPermission removes a role-permission link.
func (s *Service) DetachPermission(ctx context.Context, roleID, permissionID string) error {
	roleID, permissionID = strings.TrimSpace(roleID), strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return fmt.Errorf("%w: role id and permission id are required", ErrInvalidInput)
	}
	return s.store.DetachPermission(ctx, roleID, permissionID)
}

// RecordAudit appends one immutable row. A write failure propagates to the
// caller and fails the triggering request.
func (s *Service) RecordAudit(ctx context.Context, entry *AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: audit entry is required", ErrInvalidInput)
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	return s.store.AppendAudit(ctx, entry)
}

// RecentAudit returns the newest entries, newest first.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.store.ListAudit(ctx, limit)
}

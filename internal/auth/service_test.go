package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"formdeck.io/internal/auth"
	"formdeck.io/internal/store/memory"
)

type testEnv struct {
	svc   *auth.Service
	store *memory.Store
	now   *time.Time
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	now := time.Now().UTC()
	clock := func() time.Time { return now }

	issuer, err := auth.NewTokenIssuer("access-secret-1", "refresh-secret-2", auth.WithClock(clock))
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	store := memory.New()
	svc, err := auth.NewService(store, issuer, auth.WithServiceClock(clock))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return testEnv{svc: svc, store: store, now: &now}
}

func (e testEnv) createUser(t *testing.T, email, password string, active bool) auth.User {
	t.Helper()
	u, err := e.svc.CreateUser(context.Background(), email, "Test User", password, active)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestLoginIssuesPairAndRecordsLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com", "secret1", true)

	pair, user, err := env.svc.Login(ctx, "Alice@Example.com", "secret1", auth.ClientInfo{UserAgent: "test", IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("unexpected user email: %s", user.Email)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if pair.Access == pair.Refresh {
		t.Fatalf("access and refresh must differ")
	}

	rec, err := env.store.FindRefreshToken(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("refresh token not recorded: %v", err)
	}
	if rec.UserID != user.ID || rec.UserAgent != "test" || rec.IP != "10.0.0.1" {
		t.Fatalf("unexpected ledger row: %+v", rec)
	}
	if env.store.SessionCount() != 1 {
		t.Fatalf("expected one session row, got %d", env.store.SessionCount())
	}
}

func TestLoginRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com", "secret1", true)
	env.createUser(t, "bob@example.com", "secret2", false)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown user", "nobody@example.com", "secret1"},
		{"wrong password", "alice@example.com", "wrongpass"},
		{"inactive user", "bob@example.com", "secret2"},
	}
	for _, tc := range cases {
		_, _, err := env.svc.Login(ctx, tc.email, tc.password, auth.ClientInfo{})
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestLoginInputValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com", "secret1", true)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "secret1"},
		{"malformed email", "not-an-email", "secret1"},
		{"empty password", "alice@example.com", ""},
		{"short password", "alice@example.com", "nope"},
	}
	for _, tc := range cases {
		_, _, err := env.svc.Login(ctx, tc.email, tc.password, auth.ClientInfo{})
		if !errors.Is(err, auth.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestRefreshWithoutRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com", "secret1", true)

	pair, _, err := env.svc.Login(ctx, "alice@example.com", "secret1", auth.ClientInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	access, exp, err := env.svc.Refresh(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if access == "" || !exp.After(*env.now) {
		t.Fatalf("expected a fresh access token, got %q exp %v", access, exp)
	}

	// The same refresh token stays valid until expiry or revocation.
	if _, _, err := env.svc.Refresh(ctx, pair.Refresh); err != nil {
		t.Fatalf("second Refresh with the same token: %v", err)
	}
}

func TestRefreshRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com", "secret1", true)

	pair, _, err := env.svc.Login(ctx, "alice@example.com", "secret1", auth.ClientInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, _, err := env.svc.Refresh(ctx, ""); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty token, got %v", err)
	}
	if _, _, err := env.svc.Refresh(ctx, "unknown-token"); !errors.Is(err, auth.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for unknown token, got %v", err)
	}

	// Past the ledger expiry the row wins over the signature.
	*env.now = env.now.Add(8 * 24 * time.Hour)
	if _, _, err := env.svc.Refresh(ctx, pair.Refresh); !errors.Is(err, auth.ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
}

func TestLogoutRevokesAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice@example.com", "secret1", true)

	pair, _, err := env.svc.Login(ctx, "alice@example.com", "secret1", auth.ClientInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := env.svc.Logout(ctx, pair.Refresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := env.svc.Refresh(ctx, pair.Refresh); !errors.Is(err, auth.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after logout, got %v", err)
	}

	// Repeating and logging out unknown tokens still succeeds.
	if err := env.svc.Logout(ctx, pair.Refresh); err != nil {
		t.Fatalf("repeated Logout: %v", err)
	}
	if err := env.svc.Logout(ctx, "never-issued"); err != nil {
		t.Fatalf("Logout of unknown token: %v", err)
	}
	if err := env.svc.Logout(ctx, ""); err != nil {
		t.Fatalf("Logout of empty token: %v", err)
	}
}

func TestAuthenticateGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice@example.com", "secret1", true)

	pair, _, err := env.svc.Login(ctx, "alice@example.com", "secret1", auth.ClientInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	principal, err := env.svc.Authenticate(ctx, pair.Access)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.User.ID != user.ID {
		t.Fatalf("unexpected principal: %+v", principal.User)
	}

	if _, err := env.svc.Authenticate(ctx, ""); !errors.Is(err, auth.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := env.svc.Authenticate(ctx, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	*env.now = env.now.Add(16 * time.Minute)
	if _, err := env.svc.Authenticate(ctx, pair.Access); !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestAuthenticateDisabledUserRejectedLive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice@example.com", "secret1", true)

	pair, _, err := env.svc.Login(ctx, "alice@example.com", "secret1", auth.ClientInfo{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	inactive := false
	if _, err := env.svc.UpdateUser(ctx, user.ID, auth.UserUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	// The token has not expired, yet the live lookup must reject.
	if _, err := env.svc.Authenticate(ctx, pair.Access); !errors.Is(err, auth.ErrUserDisabled) {
		t.Fatalf("expected ErrUserDisabled for deactivated user, got %v", err)
	}

	if err := env.store.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := env.svc.Authenticate(ctx, pair.Access); !errors.Is(err, auth.ErrUserDisabled) {
		t.Fatalf("expected ErrUserDisabled for deleted user, got %v", err)
	}
}

func TestEffectivePermissionsAreUnionAndLive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice@example.com", "secret1", true)

	viewer, err := env.svc.CreateRole(ctx, "viewer", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	editor, err := env.svc.CreateRole(ctx, "editor", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	read, err := env.svc.CreatePermission(ctx, "users.read", "")
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	update, err := env.svc.CreatePermission(ctx, "users.update", "")
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}

	// Both roles carry users.read; only editor carries users.update.
	for _, link := range [][2]string{{viewer.ID, read.ID}, {editor.ID, read.ID}, {editor.ID, update.ID}} {
		if err := env.svc.AttachPermission(ctx, link[0], link[1]); err != nil {
			t.Fatalf("AttachPermission: %v", err)
		}
	}

	if err := env.svc.Require(ctx, user.ID, "users.read"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden before any role, got %v", err)
	}

	if err := env.svc.AssignRole(ctx, user.ID, viewer.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := env.svc.Require(ctx, user.ID, "users.read"); err != nil {
		t.Fatalf("expected users.read after viewer role: %v", err)
	}
	if err := env.svc.Require(ctx, user.ID, "users.read", "users.update"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden while missing users.update, got %v", err)
	}

	if err := env.svc.AssignRole(ctx, user.ID, editor.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := env.svc.Require(ctx, user.ID, "users.read", "users.update"); err != nil {
		t.Fatalf("expected full set after editor role: %v", err)
	}

	perms, err := env.svc.ResolvePermissions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ResolvePermissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("expected union of 2 keys, got %v", perms)
	}

	// Revoking a role shrinks the set immediately.
	if err := env.svc.RevokeRole(ctx, user.ID, editor.ID); err != nil {
		t.Fatalf("RevokeRole: %v", err)
	}
	if err := env.svc.Require(ctx, user.ID, "users.update"); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden after revoke, got %v", err)
	}
	if err := env.svc.Require(ctx, user.ID, "users.read"); err != nil {
		t.Fatalf("users.read must survive via viewer: %v", err)
	}
}

func TestAssignRoleIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice@example.com", "secret1", true)
	role, err := env.svc.CreateRole(ctx, "viewer", "")
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := env.svc.AssignRole(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := env.svc.AssignRole(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("repeated AssignRole must succeed: %v", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		userName string
		password string
	}{
		{"bad email", "not-an-email", "Alice", "secret1"},
		{"empty email", "", "Alice", "secret1"},
		{"short name", "a@b.io", "A", "secret1"},
		{"short password", "a@b.io", "Alice", "12345"},
	}
	for _, tc := range cases {
		if _, err := env.svc.CreateUser(ctx, tc.email, tc.userName, tc.password, true); !errors.Is(err, auth.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}

	u := env.createUser(t, "Alice@B.IO", "secret1", true)
	if u.Email != "alice@b.io" {
		t.Fatalf("expected lowercased email, got %s", u.Email)
	}
	if u.PasswordHash == "secret1" {
		t.Fatalf("plaintext password must never be stored")
	}

	if _, err := env.svc.CreateUser(ctx, "alice@b.io", "Alice", "secret1", true); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestRecordAuditFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := &auth.AuditEntry{ActorID: "user-1", ActorEmail: "a@b.io", Action: "USER_CREATE", Entity: "user"}
	if err := env.svc.RecordAudit(ctx, entry); err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Fatalf("expected filled id and timestamp, got %+v", entry)
	}

	env.store.FailAudit(errors.New("disk full"))
	if err := env.svc.RecordAudit(ctx, &auth.AuditEntry{ActorID: "user-1", Action: "USER_DELETE", Entity: "user"}); err == nil {
		t.Fatalf("expected audit write failure to propagate")
	}
}

func TestRecentAuditNewestFirstAndClamped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &auth.AuditEntry{ActorID: "user-1", ActorEmail: "a@b.io", Action: "USER_UPDATE", Entity: "user"}
		if err := env.svc.RecordAudit(ctx, entry); err != nil {
			t.Fatalf("RecordAudit: %v", err)
		}
	}

	entries, err := env.svc.RecentAudit(ctx, 2)
	if err != nil {
		t.Fatalf("RecentAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	// Oversized limits are clamped rather than rejected.
	if _, err := env.svc.RecentAudit(ctx, 10000); err != nil {
		t.Fatalf("RecentAudit with large limit: %v", err)
	}
}

func TestEnsureBuiltins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins: %v", err)
	}
	// Running twice must not duplicate.
	if err := env.svc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("EnsureBuiltins repeat: %v", err)
	}
	perms, err := env.svc.ListPermissions(ctx)
	if err != nil {
		t.Fatalf("ListPermissions: %v", err)
	}
	if len(perms) != len(auth.BuiltinPermissions) {
		t.Fatalf("expected %d builtin permissions, got %d", len(auth.BuiltinPermissions), len(perms))
	}
}

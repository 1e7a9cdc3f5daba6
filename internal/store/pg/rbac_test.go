package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"formdeck.io/internal/auth"
)

func TestCreateRoleDuplicateName(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`insert into roles`).
		WithArgs(sqlmock.AnyArg(), "ADMIN", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.CreateRole(context.Background(), "ADMIN", "")
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAssignRoleMapsForeignKeyViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`insert into user_roles`).
		WithArgs("ghost", "r1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	if err := store.AssignRole(context.Background(), "ghost", "r1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for broken reference, got %v", err)
	}
}

func TestAssignRoleIdempotentUpsert(t *testing.T) {
	store, mock := newMockStore(t)

	// The on-conflict clause makes a repeat a zero-row no-op.
	mock.ExpectExec(`insert into user_roles`).
		WithArgs("u1", "r1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.AssignRole(context.Background(), "u1", "r1"); err != nil {
		t.Fatalf("repeated AssignRole: %v", err)
	}
}

func TestRevokeRoleMissingLink(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`delete from user_roles`).
		WithArgs("u1", "r1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.RevokeRole(context.Background(), "u1", "r1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserPermissionKeys(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"key"}).
		AddRow("users.read").
		AddRow("users.update")
	mock.ExpectQuery(`select distinct p.key`).
		WithArgs("u1").
		WillReturnRows(rows)

	keys, err := store.UserPermissionKeys(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserPermissionKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "users.read" || keys[1] != "users.update" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestEnsurePermissionsInsertsEach(t *testing.T) {
	store, mock := newMockStore(t)

	perms := []auth.Permission{
		{Key: "users.read", Description: "Read users"},
		{Key: "users.update", Description: "Update users"},
	}
	for range perms {
		mock.ExpectExec(`insert into permissions`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	if err := store.EnsurePermissions(context.Background(), perms); err != nil {
		t.Fatalf("EnsurePermissions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListRolesScansNullDescription(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
		AddRow("r1", "ADMIN", nil, now, now).
		AddRow("r2", "viewer", "read only", now, now)
	mock.ExpectQuery(`select id, name, description, created_at, updated_at`).
		WillReturnRows(rows)

	roles, err := store.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[0].Description != "" || roles[1].Description != "read only" {
		t.Fatalf("unexpected descriptions: %+v", roles)
	}
}

package pg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"formdeck.io/internal/auth"
)

func TestAppendAuditSerializesPayload(t *testing.T) {
	store, mock := newMockStore(t)

	entry := &auth.AuditEntry{
		ActorID:    "u1",
		ActorEmail: "admin@example.com",
		Action:     "USER_UPDATE",
		Entity:     "user",
		EntityID:   "u2",
		Payload:    map[string]any{"name": "New Name"},
	}
	mock.ExpectExec(`insert into audit_log`).
		WithArgs(sqlmock.AnyArg(), "u1", "admin@example.com", "USER_UPDATE", "user",
			sqlmock.AnyArg(), sqlmock.AnyArg(), []byte(`{"name":"New Name"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.AppendAudit(context.Background(), entry); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListAuditDecodesPayload(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_email", "action", "entity", "entity_id", "ip", "payload", "created_at"}).
		AddRow("a2", "u1", "admin@example.com", "USER_DELETE", "user", "u3", nil, nil, now).
		AddRow("a1", "u1", "admin@example.com", "USER_UPDATE", "user", "u2", "10.0.0.1", []byte(`{"name":"New Name"}`), now.Add(-time.Minute))
	mock.ExpectQuery(`select .* from audit_log`).
		WithArgs(50).
		WillReturnRows(rows)

	entries, err := store.ListAudit(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "USER_DELETE" || entries[0].Payload != nil {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Payload["name"] != "New Name" {
		t.Fatalf("payload did not decode: %+v", entries[1].Payload)
	}
	if entries[1].IP != "10.0.0.1" {
		t.Fatalf("unexpected ip: %s", entries[1].IP)
	}
}

package pg

import (
	"context"
	"database/sql"
	"encoding/json"

	"formdeck.io/internal/auth"
	"formdeck.io/internal/ids"
)

func (s *Store) AppendAudit(ctx context.Context, entry *auth.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	var payload []byte
	if len(entry.Payload) > 0 {
		var err error
		payload, err = json.Marshal(entry.Payload)
		if err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, actor_id, actor_email, action, entity, entity_id, ip, payload)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ActorID, entry.ActorEmail, entry.Action, entry.Entity,
		nullIfEmpty(entry.EntityID), nullIfEmpty(entry.IP), payload)
	return err
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]auth.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, actor_id, actor_email, action, entity, entity_id, ip, payload, created_at
		from audit_log
		order by created_at desc
		limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []auth.AuditEntry
	for rows.Next() {
		var (
			e            auth.AuditEntry
			entityID, ip sql.NullString
			payload      []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorEmail, &e.Action, &e.Entity, &entityID, &ip, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.EntityID = entityID.String
		e.IP = ip.String
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

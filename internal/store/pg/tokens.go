package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"formdeck.io/internal/auth"
	"formdeck.io/internal/ids"
)

func (s *Store) CreateRefreshToken(ctx context.Context, tok *auth.RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, user_id, token, user_agent, ip, expires_at)
		values ($1, $2, $3, $4, $5, $6)`,
		tok.ID, tok.UserID, tok.Token, nullIfEmpty(tok.UserAgent), nullIfEmpty(tok.IP), tok.ExpiresAt)
	return mapConstraintErr(err)
}

func (s *Store) FindRefreshToken(ctx context.Context, token string) (auth.RefreshToken, error) {
	var (
		tok     auth.RefreshToken
		ua, ip  sql.NullString
		revoked sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token, user_agent, ip, expires_at, revoked_at, created_at
		from refresh_tokens
		where token = $1`, token).
		Scan(&tok.ID, &tok.UserID, &tok.Token, &ua, &ip, &tok.ExpiresAt, &revoked, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.RefreshToken{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.RefreshToken{}, err
	}
	tok.UserAgent = ua.String
	tok.IP = ip.String
	if revoked.Valid {
		t := revoked.Time
		tok.RevokedAt = &t
	}
	return tok, nil
}

// RevokeRefreshToken stamps every row matching the token. Zero affected rows
// is not an error: logout is idempotent.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update refresh_tokens
		set revoked_at = $2
		where token = $1 and revoked_at is null`,
		token, at)
	return err
}

func (s *Store) CreateSession(ctx context.Context, sess *auth.Session) error {
	if sess.ID == "" {
		sess.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, user_agent, ip)
		values ($1, $2, $3, $4)`,
		sess.ID, sess.UserID, nullIfEmpty(sess.UserAgent), nullIfEmpty(sess.IP))
	return mapConstraintErr(err)
}

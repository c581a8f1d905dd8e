// Package sessions provides a PostgreSQL-backed repository for the sessions
// created by email-code logins.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the session. CreatedAt doubles as the initial last_activity.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO auth.sessions (id, user_id, token, device_info, created_at, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.Token, s.DeviceInfo, s.CreatedAt, s.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Touch updates last_activity only; the expiry window is left as is.
func (r *PostgresRepository) Touch(ctx context.Context, token string, now time.Time) (string, error) {
	query := `
		UPDATE auth.sessions SET last_activity = $2
		WHERE token = $1 AND expires_at > $2
		RETURNING user_id
	`
	return r.returningUserID(r.db.QueryRowContext(ctx, query, token, now))
}

// Refresh updates last_activity and slides expires_at.
func (r *PostgresRepository) Refresh(ctx context.Context, token string, now, expiresAt time.Time) (string, error) {
	query := `
		UPDATE auth.sessions SET last_activity = $2, expires_at = $3
		WHERE token = $1 AND expires_at > $2
		RETURNING user_id
	`
	return r.returningUserID(r.db.QueryRowContext(ctx, query, token, now, expiresAt))
}

func (r *PostgresRepository) returningUserID(row *sql.Row) (string, error) {
	var userID string
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}

// Delete removes the session with the given token. Idempotent.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM auth.sessions
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired purges sessions whose expiry is not after now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM auth.sessions
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

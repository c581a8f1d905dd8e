package verificationcodes

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.VerificationCode) error {
	query := `
		INSERT INTO auth.verification_codes (id, email, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Email, c.Code, c.CreatedAt, c.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume relies on the outer "AND NOT used" so that two racing callers
// cannot both flip the same row: the loser's UPDATE matches nothing.
func (r *PostgresRepository) Consume(ctx context.Context, email, code string, now time.Time) (string, error) {
	query := `
		UPDATE auth.verification_codes SET used = TRUE
		WHERE id = (
			SELECT id FROM auth.verification_codes
			WHERE email = $1 AND code = $2 AND NOT used AND expires_at > $3
			ORDER BY created_at DESC
			LIMIT 1
		) AND NOT used
		RETURNING id
	`

	var id string
	if err := r.db.QueryRowContext(ctx, query, email, code, now).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

package conversations

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

func (r *PostgresRepository) Create(ctx context.Context, c *models.Conversation) error {
	query := `
		INSERT INTO app.conversations (id, user_id, title, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.Title, models.StatusActive, c.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id, userID string, now time.Time) error {
	query := `
		UPDATE app.conversations SET updated_at = $3
		WHERE id = $1 AND user_id = $2 AND status = 'active'
	`
	return r.expectOne(r.db.ExecContext(ctx, query, id, userID, now))
}

func (r *PostgresRepository) Bump(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE app.conversations SET updated_at = $2
		WHERE id = $1
	`
	return r.expectOne(r.db.ExecContext(ctx, query, id, now))
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id, userID string, now time.Time) error {
	query := `
		UPDATE app.conversations SET status = 'deleted', updated_at = $3
		WHERE id = $1 AND user_id = $2
	`
	return r.expectOne(r.db.ExecContext(ctx, query, id, userID, now))
}

func (r *PostgresRepository) expectOne(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, status, created_at, updated_at
		FROM app.conversations
		WHERE id = $1 AND user_id = $2 AND status = 'active'
	`

	c := &models.Conversation{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&c.ID, &c.UserID, &c.Title, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	query := `
		SELECT id, user_id, title, status, created_at, updated_at
		FROM app.conversations
		WHERE user_id = $1 AND status = 'active'
		ORDER BY updated_at DESC
		LIMIT $2
	`

	// LIMIT NULL is "no limit" in PostgreSQL.
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := r.db.QueryContext(ctx, query, userID, lim)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

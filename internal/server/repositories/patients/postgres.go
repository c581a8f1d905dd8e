package patients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.Patient) error {
	query := `
		INSERT INTO app.patients (user_id, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET full_name = EXCLUDED.full_name, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, p.UserID, p.FullName, p.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Patient, error) {
	query := `
		SELECT user_id, full_name, created_at, updated_at FROM app.patients
		WHERE user_id = $1
	`

	p := &models.Patient{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

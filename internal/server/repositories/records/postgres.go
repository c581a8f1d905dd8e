package records

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

func (r *PostgresRepository) Create(ctx context.Context, rec *models.MedicalRecord) error {
	query := `
		INSERT INTO app.medical_records (id, user_id, record_title, record_type, record_date, content, source_filename, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var source sql.NullString
	if rec.SourceFilename != "" {
		source = sql.NullString{String: rec.SourceFilename, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Title, rec.Type, rec.Date, rec.Content, source, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.MedicalRecord, error) {
	query := `
		SELECT id, user_id, record_title, record_type, record_date, content, source_filename, created_at
		FROM app.medical_records
		WHERE user_id = $1
		ORDER BY record_date DESC, created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.MedicalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id, userID string) (*models.MedicalRecord, error) {
	query := `
		SELECT id, user_id, record_title, record_type, record_date, content, source_filename, created_at
		FROM app.medical_records
		WHERE id = $1 AND user_id = $2
	`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) HasAny(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM app.medical_records WHERE user_id = $1)
	`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.MedicalRecord, error) {
	rec := &models.MedicalRecord{}
	var source sql.NullString
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.Title, &rec.Type, &rec.Date, &rec.Content, &source, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.SourceFilename = source.String
	return rec, nil
}

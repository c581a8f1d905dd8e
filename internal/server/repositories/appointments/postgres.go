package appointments

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

const selectColumns = `id, user_id, doctor_name, appointment_date, appointment_time, appointment_at_utc,
		       appointment_type, location, notes, status`

func (r *PostgresRepository) Create(ctx context.Context, a *models.Appointment) error {
	query := `
		INSERT INTO app.appointments (id, user_id, doctor_name, appointment_date, appointment_time,
		                              appointment_at_utc, appointment_type, location, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var at sql.NullTime
	if a.AtUTC != nil {
		at = sql.NullTime{Time: *a.AtUTC, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.DoctorName, a.Date, nullable(a.Time), at,
		nullable(a.Type), nullable(a.Location), nullable(a.Notes), a.Status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM app.appointments
		WHERE user_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC NULLS LAST
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, userID string) (*models.Appointment, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM app.appointments
		WHERE user_id = $1
		ORDER BY appointment_at_utc DESC NULLS LAST, appointment_date DESC
		LIMIT 1
	`

	a, err := scanAppointment(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) ExistsWithDoctor(ctx context.Context, userID, doctor string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM app.appointments WHERE user_id = $1 AND doctor_name = $2)
	`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID, doctor).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(s scanner) (*models.Appointment, error) {
	a := &models.Appointment{}
	var (
		tm, typ, loc, notes sql.NullString
		at                  sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.DoctorName, &a.Date, &tm, &at, &typ, &loc, &notes, &a.Status); err != nil {
		return nil, err
	}
	a.Time, a.Type, a.Location, a.Notes = tm.String, typ.String, loc.String, notes.String
	if at.Valid {
		t := at.Time
		a.AtUTC = &t
	}
	return a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

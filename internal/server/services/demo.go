package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
)

// Demo account content.
const (
	DemoPatientName = "John Doe"
	DemoDoctor      = "Dr. Smith"
)

// DemoSeeder fills a demo account with a patient profile and one upcoming
// appointment so the dashboard and chat have something to show.
type DemoSeeder struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
}

func NewDemoSeeder(db *sql.DB, m repomanager.RepositoryManager) *DemoSeeder {
	return &DemoSeeder{db: db, repomanager: m, now: time.Now}
}

// Seed is idempotent: the profile is upserted, and the appointment is added
// only when the user has none with the demo doctor yet.
func (d *DemoSeeder) Seed(ctx context.Context, userID string) error {
	now := d.now().UTC()

	return dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := d.repomanager.Patients(tx).Upsert(ctx, &models.Patient{
			UserID:    userID,
			FullName:  DemoPatientName,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("error upserting demo patient: %w", err)
		}

		repo := d.repomanager.Appointments(tx)

		exists, err := repo.ExistsWithDoctor(ctx, userID, DemoDoctor)
		if err != nil {
			return fmt.Errorf("error checking demo appointment: %w", err)
		}
		if exists {
			return nil
		}

		day := now.AddDate(0, 0, 7)
		at := time.Date(day.Year(), day.Month(), day.Day(), 14, 0, 0, 0, time.UTC)

		err = repo.Create(ctx, &models.Appointment{
			ID:         uuid.NewString(),
			UserID:     userID,
			DoctorName: DemoDoctor,
			Date:       time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Time:       "14:00",
			AtUTC:      &at,
			Type:       "Annual Physical",
			Location:   "Main Clinic, Room 203",
			Status:     "scheduled",
		})
		if err != nil {
			return fmt.Errorf("error creating demo appointment: %w", err)
		}
		return nil
	})
}

// SeedAccount seeds the account registered under email, creating the account
// first when it does not exist. It returns the account's user id.
func (d *DemoSeeder) SeedAccount(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if !common.IsValidEmail(email) {
		return "", fmt.Errorf("%w: invalid email address", common.ErrorInvalidInput)
	}

	users := d.repomanager.Users(d.db)

	var userID string
	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		userID = u.ID
	case errors.Is(err, common.ErrorNotFound):
		newID, err := common.NewOpaqueID()
		if err != nil {
			return "", err
		}
		userID, err = users.UpsertLogin(ctx, email, newID, d.now().UTC())
		if err != nil {
			return "", fmt.Errorf("error creating demo account: %w", err)
		}
	default:
		return "", fmt.Errorf("error looking up demo account: %w", err)
	}

	if err := d.Seed(ctx, userID); err != nil {
		return "", err
	}
	return userID, nil
}

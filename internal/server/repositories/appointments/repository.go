// Package appointments declares the repository for patient appointments.
package appointments

import (
	"context"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Appointment) error
	// ListByUser returns appointments, latest date and time first.
	ListByUser(ctx context.Context, userID string) ([]models.Appointment, error)
	// Latest returns the most recent appointment, past or future.
	Latest(ctx context.Context, userID string) (*models.Appointment, error)
	ExistsWithDoctor(ctx context.Context, userID, doctor string) (bool, error)
}

// Package records declares the repository for medical records.
package records

import (
	"context"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.MedicalRecord) error
	// ListByUser returns the user's records, most recent record date first.
	ListByUser(ctx context.Context, userID string) ([]models.MedicalRecord, error)
	Get(ctx context.Context, id, userID string) (*models.MedicalRecord, error)
	HasAny(ctx context.Context, userID string) (bool, error)
}

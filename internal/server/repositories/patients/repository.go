// Package patients declares the repository for patient profiles.
package patients

import (
	"context"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, p *models.Patient) error
	Get(ctx context.Context, userID string) (*models.Patient, error)
}

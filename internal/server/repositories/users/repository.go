// Package users declares the repository for portal accounts (auth.users).
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type Repository interface {
	// UpsertLogin returns the id of the user with exactly this email, creating
	// it with newID when absent, and stamps last_login with now either way.
	UpsertLogin(ctx context.Context, email, newID string, now time.Time) (string, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

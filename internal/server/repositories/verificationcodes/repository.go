// Package verificationcodes declares the repository for one-time login codes.
package verificationcodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.VerificationCode) error

	// Consume atomically marks the most recent unused, unexpired code matching
	// email and code as used and returns its id. When nothing matches, or a
	// concurrent caller won the race, it returns common.ErrorNotFound.
	Consume(ctx context.Context, email, code string, now time.Time) (string, error)
}

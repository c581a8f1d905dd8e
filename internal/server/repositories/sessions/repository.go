// Package sessions declares the repository for bearer sessions (auth.sessions).
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

// Repository defines how sessions are issued, validated and revoked.
type Repository interface {
	// Create stores a new session row.
	Create(ctx context.Context, s *models.Session) error

	// Touch stamps last_activity on the unexpired session with this token and
	// returns its user id. Implementations return common.ErrorNotFound when no
	// unexpired session matches.
	Touch(ctx context.Context, token string, now time.Time) (string, error)

	// Refresh behaves like Touch and also moves expires_at to expiresAt.
	Refresh(ctx context.Context, token string, now, expiresAt time.Time) (string, error)

	// Delete removes the session with this token. Deleting a missing token is
	// not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes sessions that expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

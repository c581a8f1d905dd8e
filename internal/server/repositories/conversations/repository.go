// Package conversations declares the repository for chat conversations.
// Every method taking a caller-supplied id is scoped to the owning user and
// reports common.ErrorNotFound when the row is missing or not owned.
package conversations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Conversation) error

	// Touch bumps updated_at on an active conversation owned by userID.
	Touch(ctx context.Context, id, userID string, now time.Time) error

	// Bump bumps updated_at by id alone; callers must have checked ownership.
	Bump(ctx context.Context, id string, now time.Time) error

	Get(ctx context.Context, id, userID string) (*models.Conversation, error)

	// ListByUser returns active conversations, most recently updated first.
	// A limit <= 0 means no limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Conversation, error)

	// SoftDelete marks the conversation deleted. Repeating it succeeds.
	SoftDelete(ctx context.Context, id, userID string, now time.Time) error
}

// Package messages declares the repository for chat messages. Messages are
// never hard-deleted; deletion flips their status.
package messages

import (
	"context"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Message) error

	// ListByConversation returns active messages in ascending time order.
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)

	// SoftDelete marks one message deleted when its conversation belongs to
	// userID, otherwise common.ErrorNotFound.
	SoftDelete(ctx context.Context, messageID, userID string) error

	// SoftDeleteAll marks every message of the conversation deleted and
	// returns how many were still active.
	SoftDeleteAll(ctx context.Context, conversationID string) (int64, error)
}

// Package httpapi exposes the portal over a JSON HTTP API. Handlers depend
// on the narrow service interfaces below; identity is resolved once by the
// session middleware and handed to each handler as an explicit user id.
package httpapi

import (
	"context"

	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/services"
)

type AuthService interface {
	IssueVerificationCode(ctx context.Context, email string) (string, error)
	VerifyCode(ctx context.Context, email, code, device string) (userID, token string, err error)
	ValidateToken(ctx context.Context, token string, refresh bool) (string, error)
	RevokeSession(ctx context.Context, token string) error
}

type ChatService interface {
	SendMessage(ctx context.Context, userID string, req services.TurnRequest) (*services.Turn, error)
	GetConversation(ctx context.Context, conversationID, userID string) (*services.ConversationView, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]models.Conversation, error)
	SoftDeleteConversation(ctx context.Context, conversationID, userID string) error
	SoftDeleteMessage(ctx context.Context, messageID, userID string) error
	ClearConversation(ctx context.Context, conversationID, userID string) (int64, error)
}

type RecordService interface {
	List(ctx context.Context, userID string) ([]models.MedicalRecord, error)
	OpenPDF(ctx context.Context, userID, recordID string) (*services.PDF, error)
}

type DashboardService interface {
	Get(ctx context.Context, userID string) (*services.Dashboard, error)
}

// Pinger reports database readiness. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

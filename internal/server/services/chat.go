package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/llm"
	"github.com/dmitrijs2005/patientportal/internal/server/metrics"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
	"github.com/dmitrijs2005/patientportal/internal/server/repositories/repomanager"
)

// ApologyReply is shown to the patient when the assistant could not answer.
const ApologyReply = "I apologize, but I was unable to generate a response. Please try again."

const titleRunes = 50

// TurnRequest is one patient message submitted to the chat.
type TurnRequest struct {
	ConversationID string
	Message        string
	LocalDateTime  string
	Timezone       string
}

// Turn is the outcome of a chat exchange. Title is set only when the turn
// started a new conversation. AIMessageID is empty when no reply was stored.
type Turn struct {
	ConversationID string
	Title          string
	UserMessageID  string
	AIMessageID    string
	Reply          string
}

// ConversationView is a conversation with its visible messages.
type ConversationView struct {
	Conversation models.Conversation
	Messages     []models.Message
}

type ChatService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	llm         llm.Client
	metrics     *metrics.Metrics
	log         logging.Logger
	now         func() time.Time
}

func NewChatService(db *sql.DB, m repomanager.RepositoryManager, client llm.Client, mt *metrics.Metrics, log logging.Logger) *ChatService {
	if log == nil {
		log = logging.Nop()
	}
	return &ChatService{
		db:          db,
		repomanager: m,
		llm:         client,
		metrics:     mt,
		log:         log,
		now:         time.Now,
	}
}

// ConversationTitle derives a title from the first message: at most 50
// characters, with an ellipsis when shortened.
func ConversationTitle(message string) string {
	return truncate(strings.TrimSpace(message), titleRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

// StartOrTouchConversation creates a conversation when conversationID is
// empty, otherwise bumps the existing one. A conversation the user does not
// own, or has deleted, is common.ErrorNotFound.
func (s *ChatService) StartOrTouchConversation(ctx context.Context, userID, conversationID, firstMessage string) (string, error) {
	repo := s.repomanager.Conversations(s.db)
	now := s.now()

	if conversationID != "" {
		if err := repo.Touch(ctx, conversationID, userID, now); err != nil {
			return "", fmt.Errorf("error touching conversation: %w", err)
		}
		return conversationID, nil
	}

	c := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     ConversationTitle(firstMessage),
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, c); err != nil {
		return "", fmt.Errorf("error creating conversation: %w", err)
	}
	return c.ID, nil
}

// AppendMessage stores a message and bumps the conversation's updated_at.
// Callers must have checked ownership of the conversation.
func (s *ChatService) AppendMessage(ctx context.Context, conversationID string, role models.Role, body string) (*models.Message, error) {
	now := s.now()
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Body:           body,
		Status:         models.StatusActive,
		CreatedAt:      now,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Messages(tx).Create(ctx, msg); err != nil {
			return fmt.Errorf("error storing message: %w", err)
		}
		if err := s.repomanager.Conversations(tx).Bump(ctx, conversationID, now); err != nil {
			return fmt.Errorf("error bumping conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the visible messages of an owned, active conversation.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if _, err := s.repomanager.Conversations(s.db).Get(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.repomanager.Messages(s.db).ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return msgs, nil
}

func (s *ChatService) GetConversation(ctx context.Context, conversationID, userID string) (*ConversationView, error) {
	c, err := s.repomanager.Conversations(s.db).Get(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repomanager.Messages(s.db).ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	return &ConversationView{Conversation: *c, Messages: msgs}, nil
}

// ListConversations returns the user's active conversations, most recently
// updated first. A limit <= 0 returns all of them.
func (s *ChatService) ListConversations(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	list, err := s.repomanager.Conversations(s.db).ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing conversations: %w", err)
	}
	return list, nil
}

func (s *ChatService) SoftDeleteConversation(ctx context.Context, conversationID, userID string) error {
	return s.repomanager.Conversations(s.db).SoftDelete(ctx, conversationID, userID, s.now())
}

func (s *ChatService) SoftDeleteMessage(ctx context.Context, messageID, userID string) error {
	return s.repomanager.Messages(s.db).SoftDelete(ctx, messageID, userID)
}

// ClearConversation hides every message of an owned, active conversation and
// reports how many were still visible.
func (s *ChatService) ClearConversation(ctx context.Context, conversationID, userID string) (int64, error) {
	if _, err := s.repomanager.Conversations(s.db).Get(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	n, err := s.repomanager.Messages(s.db).SoftDeleteAll(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("error clearing conversation: %w", err)
	}
	return n, nil
}

// SendMessage runs one chat exchange: the patient message is stored, the
// prompt is assembled from the patient's records, appointments and the
// conversation, and the assistant reply is stored.
//
// When the model fails the returned Turn still carries the conversation, the
// stored patient message and ApologyReply, together with an error wrapping
// common.ErrorUpstream. No assistant message is stored in that case.
func (s *ChatService) SendMessage(ctx context.Context, userID string, req TurnRequest) (*Turn, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", common.ErrorInvalidInput)
	}

	convID, err := s.StartOrTouchConversation(ctx, userID, req.ConversationID, text)
	if err != nil {
		return nil, err
	}

	turn := &Turn{ConversationID: convID}
	if req.ConversationID == "" {
		turn.Title = ConversationTitle(text)
	}

	userMsg, err := s.AppendMessage(ctx, convID, models.RolePatient, text)
	if err != nil {
		return nil, err
	}
	turn.UserMessageID = userMsg.ID

	in, err := s.gatherContext(ctx, userID, convID, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := s.llm.Complete(ctx, BuildSystemPrompt(in), toLLMMessages(in.History))
	s.metrics.LLMCall(err == nil, time.Since(start))
	if err != nil {
		s.log.Error(ctx, "chat completion failed", "conversation_id", convID, "error", err)
		turn.Reply = ApologyReply
		return turn, fmt.Errorf("%w: %w", common.ErrorUpstream, err)
	}

	aiMsg, err := s.AppendMessage(ctx, convID, models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	turn.AIMessageID = aiMsg.ID
	turn.Reply = reply

	return turn, nil
}

func (s *ChatService) gatherContext(ctx context.Context, userID, conversationID string, req TurnRequest) (PromptInput, error) {
	records, err := s.repomanager.Records(s.db).ListByUser(ctx, userID)
	if err != nil {
		return PromptInput{}, fmt.Errorf("error loading records: %w", err)
	}
	appts, err := s.repomanager.Appointments(s.db).ListByUser(ctx, userID)
	if err != nil {
		return PromptInput{}, fmt.Errorf("error loading appointments: %w", err)
	}
	history, err := s.repomanager.Messages(s.db).ListByConversation(ctx, conversationID)
	if err != nil {
		return PromptInput{}, fmt.Errorf("error loading history: %w", err)
	}

	return PromptInput{
		Now:           s.now(),
		LocalDateTime: req.LocalDateTime,
		Timezone:      req.Timezone,
		Records:       records,
		Appointments:  appts,
		History:       history,
	}, nil
}

func toLLMMessages(history []models.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: m.Body})
	}
	return out
}

package messages

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/dbx"
	"github.com/dmitrijs2005/patientportal/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO app.chat_messages (id, conversation_id, role, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, m.ID, m.ConversationID, m.Role, m.Body, models.StatusActive, m.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, role, message, status, created_at
		FROM app.chat_messages
		WHERE conversation_id = $1 AND status = 'active'
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Body, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// SoftDelete joins through the conversation so the owner check and the
// update are one statement. Deleting an already deleted message succeeds.
func (r *PostgresRepository) SoftDelete(ctx context.Context, messageID, userID string) error {
	query := `
		UPDATE app.chat_messages AS m SET status = 'deleted'
		FROM app.conversations AS c
		WHERE m.id = $1 AND m.conversation_id = c.id AND c.user_id = $2 AND c.status = 'active'
	`

	res, err := r.db.ExecContext(ctx, query, messageID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SoftDeleteAll(ctx context.Context, conversationID string) (int64, error) {
	query := `
		UPDATE app.chat_messages SET status = 'deleted'
		WHERE conversation_id = $1 AND status = 'active'
	`

	res, err := r.db.ExecContext(ctx, query, conversationID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

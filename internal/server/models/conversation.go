package models

import "time"

type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role identifies the author of a chat message.
type Role string

const (
	RolePatient   Role = "patient"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Body           string
	Status         Status
	CreatedAt      time.Time
}

package model

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one line of the conversation transcript. IsSystem and
// ShowRetry are display annotations computed client-side; they are never
// sent to or received from the server.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	IsSystem  bool      `json:"-"`
	ShowRetry bool      `json:"-"`
}

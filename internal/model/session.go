package model

import "time"

// ConversationSession is the client-side cache of a server-owned
// conversation. It is created server-side on first contact and mutated
// only via server push; the client never computes phase transitions.
type ConversationSession struct {
	ID          string            `json:"id"`
	Phase       Phase             `json:"phase"`
	Archived    bool              `json:"archived"`
	CompanyName string            `json:"company_name,omitempty"`
	CompanyMeta map[string]string `json:"company_meta,omitempty"`
	Messages    []ChatMessage     `json:"messages"`
	Facts       []string          `json:"facts,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

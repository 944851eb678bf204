package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/compliance-assistant/client/internal/model"
)

const cacheKeyConversations = "conversations.list"

// ConversationSummary is one row of the conversation listing.
type ConversationSummary struct {
	ID          string      `json:"id"`
	Phase       model.Phase `json:"phase"`
	CompanyName string      `json:"company_name,omitempty"`
	Archived    bool        `json:"archived"`
	UpdatedAt   string      `json:"updated_at"`
}

// ListConversations returns all conversations for the account. Results
// are cached briefly; mutations invalidate the cache.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	if cached, ok := c.cache.Get(cacheKeyConversations); ok {
		return cached.([]ConversationSummary), nil
	}

	var result struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &result); err != nil {
		return nil, err
	}
	c.cache.SetDefault(cacheKeyConversations, result.Conversations)
	return result.Conversations, nil
}

// GetConversation fetches a full conversation including its message
// history, used when resuming a session.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.ConversationSession, error) {
	var session model.ConversationSession
	err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &session)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ArchiveConversation marks a conversation archived.
func (c *Client) ArchiveConversation(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(id)+"/archive", nil, nil)
	if err == nil {
		c.cache.Delete(cacheKeyConversations)
	}
	return err
}

// DeleteConversation permanently removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(id), nil, nil)
	if err == nil {
		c.cache.Delete(cacheKeyConversations)
	}
	return err
}

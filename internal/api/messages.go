// ABOUTME: Message operations for recording and listing conversation turns.
// ABOUTME: The streaming generation path lives in stream.go, not here.

package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

// ListMessages returns the recorded turns of a conversation in backend
// order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]entity.Message, error) {
	query := url.Values{"conversation_id": {conversationID}}
	payload, err := c.getJSON(ctx, "/agents/messages", query)
	if err != nil {
		return nil, err
	}
	return c.norm.Messages(payload), nil
}

// CreateMessage records a turn against a conversation and returns the
// persisted entity. Role and content round-trip through defaults when
// the backend responds with only an identity.
func (c *Client) CreateMessage(ctx context.Context, conversationID string, role entity.Role, content string) (entity.Message, error) {
	body := map[string]string{
		"conversation_id": conversationID,
		"role":            string(role),
		"content":         content,
	}
	payload, err := c.postJSON(ctx, "/agents/messages", body)
	if err != nil {
		return entity.Message{}, err
	}
	defaults := entity.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	msg, err := c.norm.Message(payload, defaults)
	if err != nil {
		return entity.Message{}, fmt.Errorf("message response: %w", err)
	}
	return msg, nil
}

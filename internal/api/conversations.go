// ABOUTME: Conversation operations against the agents service.
// ABOUTME: Creation tolerates the wrapped and minimal response shapes older backends return.

package api

import (
	"context"
	"fmt"
	"time"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

// CreateConversation opens a new conversation with the given title. The
// backend may answer with a full record, a wrapped one, or just an
// identity; whatever arrives is normalized, with the requested title
// filling any gap. An unusable response is an error so no half-created
// conversation leaks to the caller.
func (c *Client) CreateConversation(ctx context.Context, title string) (entity.Conversation, error) {
	payload, err := c.postJSON(ctx, "/agents/conversations", map[string]string{"title": title})
	if err != nil {
		return entity.Conversation{}, err
	}
	defaults := entity.Conversation{
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	conv, err := c.norm.Conversation(payload, defaults)
	if err != nil {
		return entity.Conversation{}, fmt.Errorf("conversation response: %w", err)
	}
	return conv, nil
}

// ListConversations returns the conversations the backend knows about.
// Unrecognizable payloads yield an empty slice.
func (c *Client) ListConversations(ctx context.Context) ([]entity.Conversation, error) {
	payload, err := c.getJSON(ctx, "/agents/conversations", nil)
	if err != nil {
		return nil, err
	}
	return c.norm.Conversations(payload), nil
}

// ABOUTME: One-shot retrieval queries outside any conversation.
// ABOUTME: Salvages the answer text even when the response carries no persisted identity.

package api

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

// QueryResult pairs the recorded query with the retrieved chunks that
// grounded its answer.
type QueryResult struct {
	Query   entity.Query
	Sources []entity.Source
}

// RunQuery asks the retrieval pipeline a one-shot question. Shape
// problems in the response never fail the call: a record without
// identity degrades to a locally identified one so the answer stays
// usable. Transport failures still propagate.
func (c *Client) RunQuery(ctx context.Context, text string) (QueryResult, error) {
	params := url.Values{"q": {text}}
	payload, err := c.getJSON(ctx, "/query", params)
	if err != nil {
		return QueryResult{}, err
	}

	var result QueryResult
	if obj, ok := payload.(map[string]any); ok {
		if raw, present := obj["sources"]; present {
			result.Sources = c.norm.Sources(raw)
		}
	}

	defaults := entity.Query{Text: text, CreatedAt: time.Now().UTC()}
	query, err := c.norm.Query(payload, defaults)
	if err != nil {
		query = c.salvageQuery(payload, defaults)
	}
	result.Query = query
	return result, nil
}

// salvageQuery builds a usable record from a response that had no
// recoverable identity, pulling the answer out by hand and generating a
// local id.
func (c *Client) salvageQuery(payload any, defaults entity.Query) entity.Query {
	query := defaults
	query.ID = uuid.New().String()

	obj, _ := payload.(map[string]any)
	if inner, ok := obj["query"].(map[string]any); ok {
		obj = inner
	}
	if answer, ok := obj["answer"].(string); ok {
		query.Answer = answer
	}
	if text, ok := obj["text"].(string); ok {
		query.Text = text
	}

	c.logger.Debug("query response lacked identity, generated local id",
		"query_id", query.ID)
	return query
}

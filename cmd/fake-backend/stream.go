// ABOUTME: Canned streaming generation for the development double.
// ABOUTME: Emits status, partial, keep-alive, and final frames in the backend's wire format.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

type generateRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// POST /agents/messages/generate/stream
func (s *server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		sendError(w, http.StatusUnprocessableEntity, "content is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// A request without a conversation opens one here; its id travels
	// only in the final frame.
	conversationID := req.ConversationID
	adopted := false
	if conversationID == "" {
		conv := s.createConversation(deriveTitle(req.Content))
		conversationID = conv.ID
		adopted = true
	}
	s.appendMessage(conversationID, entity.RoleUser, req.Content)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	ctx := r.Context()
	write := func(frame map[string]any) bool {
		data, err := json.Marshal(frame)
		if err != nil {
			s.logger.Error("failed to marshal stream frame", "error", err)
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
		return s.pause(ctx)
	}

	s.logger.Info("generation started",
		"conversation_id", conversationID,
		"adopted", adopted,
		"content", truncate(req.Content, 50),
	)

	if !write(map[string]any{"type": "status", "status": "analyzing documents"}) {
		return
	}

	reply := cannedReply(req.Content)
	for i, fragment := range splitFragments(reply) {
		if i == 2 {
			// Comment frame; clients skip it without producing an event.
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		}
		if !write(map[string]any{"type": "partial", "partial": fragment}) {
			return
		}
	}

	if s.failStream {
		write(map[string]any{"type": "error", "error": "model backend unavailable"})
		return
	}

	msg := s.appendMessage(conversationID, entity.RoleAssistant, reply)

	final := map[string]any{
		"type":              "final",
		"assistant_message": msg,
		"result":            cannedResult(req.Content),
	}
	if adopted {
		final["conversation_id"] = conversationID
	}
	write(final)
}

// pause waits one frame delay, reporting false once the client is gone.
func (s *server) pause(ctx context.Context) bool {
	if s.delay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.delay):
		return true
	}
}

// splitFragments cuts a reply into short chunks so clients see the text
// arrive incrementally. Concatenating the chunks restores the reply.
func splitFragments(reply string) []string {
	words := strings.SplitAfter(reply, " ")
	var out []string
	for i := 0; i < len(words); i += 4 {
		end := min(i+4, len(words))
		out = append(out, strings.Join(words[i:end], ""))
	}
	return out
}

// deriveTitle names a conversation opened for a bare message.
func deriveTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if runes := []rune(title); len(runes) > 40 {
		title = strings.TrimSpace(string(runes[:40])) + "..."
	}
	if title == "" {
		title = "New Conversation"
	}
	return title
}

func truncate(s string, maxLen int) string {
	if runes := []rune(s); len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}

func cannedReply(input string) string {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "revenue") || strings.Contains(lower, "sales"):
		return "Revenue came in at **$4.2M**, up 12% on the prior quarter.\n\n" +
			"- Enterprise: +18%\n- Self-serve: +4%\n- Services: flat\n\n" +
			"The growth is concentrated in the enterprise tier."
	case strings.Contains(lower, "summar"):
		return "# Summary\n\nThe corpus covers three quarterly reports. Headline points:\n\n" +
			"1. Revenue grew every quarter\n2. Churn held under 2%\n3. Hiring slowed in Q3"
	default:
		return fmt.Sprintf("Here is what the indexed documents say about *%s*:\n\n"+
			"The figures are stable across the period, with no anomalies flagged.",
			strings.TrimSpace(input))
	}
}

// cannedResult is the structured payload attached to final frames.
func cannedResult(input string) map[string]any {
	if strings.Contains(strings.ToLower(input), "table") {
		return map[string]any{
			"type":    "table",
			"title":   "Quarterly figures",
			"columns": []string{"quarter", "revenue", "churn"},
			"rows": [][]any{
				{"Q1", 3.6, 0.019},
				{"Q2", 3.9, 0.018},
				{"Q3", 4.2, 0.016},
			},
		}
	}
	return map[string]any{
		"type":  "chart",
		"chart": "bar",
		"title": "Revenue by quarter ($M)",
		"data": []map[string]any{
			{"label": "Q1", "value": 3.6},
			{"label": "Q2", "value": 3.9},
			{"label": "Q3", "value": 4.2},
		},
	}
}

// ABOUTME: Streaming consumer for assistant reply generation.
// ABOUTME: Parses blank-line-delimited frames into typed events with exactly-once terminal delivery.

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

const (
	streamBuffer  = 16
	maxFrameBytes = 1 << 20
)

// EventType discriminates the events a generation stream produces.
type EventType int

const (
	// EventPartial carries an incremental fragment of assistant text.
	EventPartial EventType = iota
	// EventStatus carries a progress note from the analysis pipeline.
	EventStatus
	// EventFinal closes the stream with the completed reply.
	EventFinal
	// EventError closes the stream with a failure description.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventPartial:
		return "partial"
	case EventStatus:
		return "status"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one decoded stream frame. Which fields are set depends on
// Type: Fragment for partials, Status for status notes, the remaining
// fields for finals, Err for errors.
type Event struct {
	Type EventType

	Fragment string
	Status   string

	// AssistantMessage is the authoritative persisted reply when the
	// backend sends one, nil otherwise.
	AssistantMessage json.RawMessage
	// Result is the structured analysis payload of the turn, nil when
	// the turn produced none.
	Result entity.AnalysisResult
	// FinalOutput is the flat reply text some backends send instead of
	// a persisted message.
	FinalOutput    string
	ConversationID string

	Err string
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventFinal || e.Type == EventError
}

// Stream is a handle on one in-flight generation. Events are delivered
// in arrival order on Events(); after a terminal event the channel
// closes and no further events appear.
type Stream struct {
	events  chan Event
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// Events returns the event channel. It closes once the stream ends for
// any reason.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Stop abandons the stream and tears down its transport. Safe to call
// any number of times and after the stream has already ended. A stream
// ended by Stop emits no synthetic error event.
func (s *Stream) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		s.cancel()
	}
}

type generateRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content"`
}

// frame is the wire shape of one stream event.
type frame struct {
	Type             string          `json:"type"`
	Partial          string          `json:"partial"`
	Status           string          `json:"status"`
	AssistantMessage json.RawMessage `json:"assistant_message"`
	Result           json.RawMessage `json:"result"`
	WorkflowResult   json.RawMessage `json:"workflow_result"`
	FinalOutput      string          `json:"final_output"`
	ConversationID   string          `json:"conversation_id"`
	Error            string          `json:"error"`
}

// GenerateStream starts streaming generation of an assistant reply.
// conversationID may be empty; the backend then creates a fallback
// conversation and announces its id in the final event. All failures,
// including a refused connection, surface as events on the returned
// stream rather than as a constructor error.
func (c *Client) GenerateStream(ctx context.Context, conversationID, content string) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan Event, streamBuffer),
		cancel: cancel,
	}
	go c.consumeStream(ctx, s, conversationID, content)
	return s
}

func (c *Client) consumeStream(ctx context.Context, s *Stream, conversationID, content string) {
	defer close(s.events)
	defer s.cancel()

	body, err := json.Marshal(generateRequest{ConversationID: conversationID, Content: content})
	if err != nil {
		s.deliver(ctx, Event{Type: EventError, Err: fmt.Sprintf("encoding request: %v", err)})
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/agents/messages/generate/stream", bytes.NewReader(body))
	if err != nil {
		s.deliver(ctx, Event{Type: EventError, Err: fmt.Sprintf("creating request: %v", err)})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		if s.stopped.Load() {
			return
		}
		s.deliver(ctx, Event{Type: EventError, Err: fmt.Sprintf("stream request failed: %v", err)})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		s.deliver(ctx, Event{Type: EventError, Err: fmt.Sprintf("stream request failed: status %d: %s",
			resp.StatusCode, bytes.TrimSpace(errBody))})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	scanner.Split(scanFrames)

	discarded := 0
	for scanner.Scan() {
		ev, ok := decodeFrame(scanner.Bytes())
		if !ok {
			discarded++
			continue
		}
		if !s.deliver(ctx, ev) {
			return
		}
		if ev.Terminal() {
			if discarded > 0 {
				c.logger.Debug("discarded malformed stream frames", "count", discarded)
			}
			return
		}
	}

	if s.stopped.Load() {
		return
	}
	if err := scanner.Err(); err != nil {
		s.deliver(ctx, Event{Type: EventError, Err: fmt.Sprintf("stream transport failed: %v", err)})
		return
	}
	s.deliver(ctx, Event{Type: EventError, Err: "stream ended without a final event"})
}

// deliver sends ev unless the stream has been torn down underneath us.
// The buffered fast path keeps a terminal event deliverable even when
// the transport context is already canceled.
func (s *Stream) deliver(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// scanFrames is a bufio.SplitFunc yielding one blank-line-delimited
// frame at a time, accepting LF and CRLF line endings. An incomplete
// trailing frame is held back until more bytes arrive; at EOF whatever
// remains is returned as a final frame.
func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf + 4, data[:crlf], nil
	case lf >= 0:
		return lf + 2, data[:lf], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// decodeFrame turns raw frame text into an Event. Frames that do not
// decode, carry no payload, or name an unknown type report ok=false and
// are skipped by the caller.
func decodeFrame(raw []byte) (Event, bool) {
	payload := framePayload(raw)
	if len(payload) == 0 {
		return Event{}, false
	}
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Event{}, false
	}

	switch f.Type {
	case "partial":
		return Event{Type: EventPartial, Fragment: f.Partial}, true
	case "status":
		return Event{Type: EventStatus, Status: f.Status}, true
	case "final":
		ev := Event{
			Type:           EventFinal,
			FinalOutput:    f.FinalOutput,
			ConversationID: f.ConversationID,
		}
		if jsonPresent(f.AssistantMessage) {
			ev.AssistantMessage = f.AssistantMessage
		}
		result := f.Result
		if !jsonPresent(result) {
			result = f.WorkflowResult
		}
		if jsonPresent(result) {
			ev.Result = entity.AnalysisResult(result)
		}
		return ev, true
	case "error":
		return Event{Type: EventError, Err: f.Error}, true
	default:
		return Event{}, false
	}
}

// framePayload extracts the JSON payload from a frame: "data:" lines
// are unprefixed and joined, comment lines starting with ':' are
// dropped, and a frame without any "data:" line is used whole.
func framePayload(raw []byte) []byte {
	var dataLines [][]byte
	var plainLines [][]byte
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			dataLines = append(dataLines, bytes.TrimPrefix(rest, []byte(" ")))
			continue
		}
		plainLines = append(plainLines, line)
	}
	if len(dataLines) > 0 {
		return bytes.TrimSpace(bytes.Join(dataLines, []byte("\n")))
	}
	return bytes.TrimSpace(bytes.Join(plainLines, []byte("\n")))
}

// jsonPresent reports whether a raw JSON value carries data, treating
// absent and explicit null the same way.
func jsonPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

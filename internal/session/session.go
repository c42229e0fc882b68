// ABOUTME: Session controller coordinating conversation state, REST calls, and stream consumption.
// ABOUTME: Owns the ordered message list, placeholder reconciliation, and turn supersession.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lucky110405/major-prototype/internal/api"
	"github.com/Lucky110405/major-prototype/internal/entity"
)

const (
	titleRunes     = 50
	archiveTimeout = 5 * time.Second
)

// ErrDisposed is returned by operations on a session that has been torn
// down.
var ErrDisposed = errors.New("session is disposed")

// State names the lifecycle phase of a session.
type State int

const (
	// StateIdle means no conversation is attached yet.
	StateIdle State = iota
	// StateStarting means a conversation or turn is being set up.
	StateStarting
	// StateActive means a conversation exists with no turn in flight.
	StateActive
	// StateStreaming means an assistant reply is being generated.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Archiver receives finished conversations and turns for local
// persistence. Implementations must tolerate repeated saves of the same
// record.
type Archiver interface {
	SaveConversation(ctx context.Context, conv entity.Conversation) error
	SaveMessage(ctx context.Context, msg entity.Message) error
}

// Options configure a Session beyond its backend client.
type Options struct {
	// Archive, when non-nil, receives the conversation and its finished
	// turns as they complete. Archive failures are logged, never fatal.
	Archive Archiver
	// OnEvent, when non-nil, observes every stream event the session
	// applies, after session state has been updated. It runs on the
	// stream's consumer goroutine and outside the session lock.
	OnEvent func(api.Event)
	Logger  *slog.Logger
}

// Session drives one conversation with the backend: it opens the
// conversation, records user turns, consumes the reply stream, and
// reconciles the assistant placeholder with the definitive reply. All
// methods are safe for concurrent use.
type Session struct {
	client  *api.Client
	archive Archiver
	norm    *entity.Normalizer
	onEvent func(api.Event)
	logger  *slog.Logger

	mu           sync.RWMutex
	state        State
	disposed     bool
	conversation entity.Conversation
	messages     []entity.Message
	result       entity.AnalysisResult
	stream       *api.Stream
	placeholder  int // index of the pending assistant entry, -1 when none
}

// New returns an idle Session backed by client.
func New(client *api.Client, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")
	return &Session{
		client:      client,
		archive:     opts.Archive,
		norm:        entity.NewNormalizer(logger),
		onEvent:     opts.OnEvent,
		logger:      logger,
		placeholder: -1,
	}
}

// Start opens a new conversation titled after the first prompt and
// begins streaming the assistant's reply. The session must be idle. If
// the conversation cannot be created the session stays idle and no
// message is recorded.
func (s *Session) Start(ctx context.Context, prompt string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start in state %s", state)
	}
	s.state = StateStarting
	s.mu.Unlock()

	conv, err := s.client.CreateConversation(ctx, deriveTitle(prompt))
	if err != nil {
		s.setIdle()
		return fmt.Errorf("starting conversation: %w", err)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.conversation = conv
	s.mu.Unlock()

	s.logger.Info("conversation started", "conversation_id", conv.ID, "title", conv.Title)
	s.archiveConversation(conv)
	return s.beginTurn(ctx, prompt)
}

// Send submits a follow-up prompt on the current conversation. Valid
// while active or streaming; sending during streaming supersedes the
// in-flight turn, whose late events are then ignored.
func (s *Session) Send(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.state != StateActive && s.state != StateStreaming {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot send in state %s", state)
	}
	superseded := s.stream
	s.stream = nil
	s.placeholder = -1
	s.state = StateStarting
	s.mu.Unlock()

	if superseded != nil {
		s.logger.Debug("superseding in-flight turn")
		superseded.Stop()
	}
	return s.beginTurn(ctx, content)
}

// Resume attaches the session to an existing conversation and loads its
// recorded turns. The session must be idle.
func (s *Session) Resume(ctx context.Context, conv entity.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation has no id")
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot resume in state %s", state)
	}
	s.state = StateStarting
	s.mu.Unlock()

	msgs, err := s.client.ListMessages(ctx, conv.ID)
	if err != nil {
		s.setIdle()
		return fmt.Errorf("loading conversation %s: %w", conv.ID, err)
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.conversation = conv
	s.messages = msgs
	s.result = nil
	s.state = StateActive
	s.mu.Unlock()

	s.logger.Info("conversation resumed", "conversation_id", conv.ID, "messages", len(msgs))
	s.archiveConversation(conv)
	return nil
}

// Dispose tears the session down, stopping any in-flight stream. Safe
// to call repeatedly; a disposed session rejects all operations.
func (s *Session) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	stream := s.stream
	s.stream = nil
	s.placeholder = -1
	s.state = StateIdle
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
}

// Messages returns a copy of the ordered message list, user and
// assistant turns interleaved, including any in-progress placeholder.
func (s *Session) Messages() []entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Result returns the structured payload of the latest completed turn,
// nil when that turn produced none.
func (s *Session) Result() entity.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil
	}
	out := make(entity.AnalysisResult, len(s.result))
	copy(out, s.result)
	return out
}

// Conversation returns the attached conversation, zero while idle.
func (s *Session) Conversation() entity.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversation
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Streaming reports whether an assistant reply is being generated.
func (s *Session) Streaming() bool {
	return s.State() == StateStreaming
}

func (s *Session) setIdle() {
	s.mu.Lock()
	if !s.disposed {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// beginTurn records the user turn, installs the assistant placeholder,
// and starts the reply stream. The caller must have moved the session
// to StateStarting.
func (s *Session) beginTurn(ctx context.Context, content string) error {
	s.mu.RLock()
	convID := s.conversation.ID
	s.mu.RUnlock()

	userMsg, err := s.client.CreateMessage(ctx, convID, entity.RoleUser, content)
	if err != nil {
		// The generation endpoint records the turn server-side anyway,
		// so keep going with a local record.
		s.logger.Warn("recording user message failed", "error", err)
		userMsg = entity.Message{
			ID:             uuid.New().String(),
			ConversationID: convID,
			Role:           entity.RoleUser,
			Content:        content,
			CreatedAt:      time.Now().UTC(),
		}
	}

	placeholder := entity.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		Role:           entity.RoleAssistant,
		CreatedAt:      time.Now().UTC(),
	}

	stream := s.client.GenerateStream(ctx, convID, content)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		stream.Stop()
		return ErrDisposed
	}
	s.messages = append(s.messages, userMsg, placeholder)
	s.placeholder = len(s.messages) - 1
	s.stream = stream
	s.state = StateStreaming
	s.mu.Unlock()

	s.archiveMessage(userMsg)
	go s.pump(stream)
	return nil
}

// pump drains one stream into the session until its channel closes.
func (s *Session) pump(stream *api.Stream) {
	for ev := range stream.Events() {
		s.applyEvent(stream, ev)
	}
}

// applyEvent folds one stream event into session state. Events from a
// stream that is no longer current are dropped whole: a superseded turn
// must not touch the message list.
func (s *Session) applyEvent(stream *api.Stream, ev api.Event) {
	s.mu.Lock()
	if s.stream != stream {
		s.mu.Unlock()
		return
	}

	var toArchive []entity.Message
	var adopted entity.Conversation

	switch ev.Type {
	case api.EventPartial:
		if s.placeholder >= 0 {
			s.messages[s.placeholder].Content += ev.Fragment
		}
	case api.EventStatus:
		// informational only, state does not change
	case api.EventFinal:
		if ev.ConversationID != "" && ev.ConversationID != s.conversation.ID {
			s.adoptConversation(ev.ConversationID)
			adopted = s.conversation
		}
		s.reconcileFinal(ev)
		s.result = ev.Result
		if adopted.ID != "" {
			// Earlier turns were archived under the provisional id, so
			// the whole transcript moves to the adopted one.
			toArchive = append(toArchive, s.messages...)
		} else if s.placeholder >= 0 {
			toArchive = append(toArchive, s.messages[s.placeholder])
		}
		s.stream = nil
		s.placeholder = -1
		s.state = StateActive
	case api.EventError:
		if s.placeholder >= 0 {
			s.messages[s.placeholder].Content = "Error: " + ev.Err
			toArchive = append(toArchive, s.messages[s.placeholder])
		}
		s.result = nil
		s.stream = nil
		s.placeholder = -1
		s.state = StateActive
	}

	observer := s.onEvent
	s.mu.Unlock()

	if adopted.ID != "" {
		s.archiveConversation(adopted)
	}
	for _, msg := range toArchive {
		s.archiveMessage(msg)
	}
	if observer != nil {
		observer(ev)
	}
}

// reconcileFinal replaces the placeholder with the definitive reply. An
// authoritative assistant message wins wholesale; otherwise the flat
// final output wins; otherwise the accumulated fragments stand.
func (s *Session) reconcileFinal(ev api.Event) {
	if s.placeholder < 0 {
		return
	}
	current := s.messages[s.placeholder]

	if len(ev.AssistantMessage) > 0 {
		var payload any
		if err := json.Unmarshal(ev.AssistantMessage, &payload); err == nil {
			msg, err := s.norm.Message(payload, current)
			if err == nil {
				if msg.Role == "" {
					msg.Role = entity.RoleAssistant
				}
				if msg.ConversationID == "" {
					msg.ConversationID = current.ConversationID
				}
				s.messages[s.placeholder] = msg
				return
			}
		}
		s.logger.Debug("unusable assistant message in final event")
	}
	if ev.FinalOutput != "" {
		s.messages[s.placeholder].Content = ev.FinalOutput
	}
}

// adoptConversation switches to the backend-authoritative conversation
// id, as announced by a final event. Local records move with it so
// history stays coherent.
func (s *Session) adoptConversation(id string) {
	old := s.conversation.ID
	s.conversation.ID = id
	for i := range s.messages {
		if s.messages[i].ConversationID == old || s.messages[i].ConversationID == "" {
			s.messages[i].ConversationID = id
		}
	}
	s.logger.Debug("adopted backend conversation id", "conversation_id", id)
}

// archiveConversation persists the conversation record, best effort.
func (s *Session) archiveConversation(conv entity.Conversation) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.archive.SaveConversation(ctx, conv); err != nil {
		s.logger.Warn("archiving conversation failed", "conversation_id", conv.ID, "error", err)
	}
}

// archiveMessage persists a finished turn, best effort.
func (s *Session) archiveMessage(msg entity.Message) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.archive.SaveMessage(ctx, msg); err != nil {
		s.logger.Warn("archiving message failed", "message_id", msg.ID, "error", err)
	}
}

// deriveTitle builds a conversation title from the first prompt: the
// first 50 runes, with an ellipsis marker when longer.
func deriveTitle(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	runes := []rune(prompt)
	if len(runes) <= titleRunes {
		return prompt
	}
	return string(runes[:titleRunes]) + "..."
}

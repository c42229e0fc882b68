// ABOUTME: In-memory state and REST handlers for the development backend double.
// ABOUTME: Response wrappers deliberately vary per route the way the real backend's do.

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

// server holds the corpus the double serves. Everything lives in memory
// and resets on restart.
type server struct {
	logger     *slog.Logger
	delay      time.Duration
	failStream bool

	mu            sync.Mutex
	documents     []entity.Document
	conversations []entity.Conversation
	messages      map[string][]entity.Message
}

func newServer(logger *slog.Logger, delay time.Duration, failStream bool) *server {
	return &server{
		logger:     logger.With("component", "fake-backend"),
		delay:      delay,
		failStream: failStream,
		messages:   make(map[string][]entity.Message),
	}
}

func (s *server) routes() http.Handler {
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Get("/documents", s.handleListDocuments)
	mux.Post("/ingest/auto", s.handleUpload)
	mux.Delete("/documents/{id}", s.handleDeleteDocument)
	mux.Get("/query", s.handleQuery)

	mux.Route("/agents", func(rt chi.Router) {
		rt.Get("/conversations", s.handleListConversations)
		rt.Post("/conversations", s.handleCreateConversation)
		rt.Get("/messages", s.handleListMessages)
		rt.Post("/messages", s.handleCreateMessage)
		rt.Post("/messages/generate/stream", s.handleGenerateStream)
	})

	return mux
}

// GET /documents wraps the list under its collection key.
func (s *server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	docs := append([]entity.Document(nil), s.documents...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// POST /ingest/auto wraps the stored document twice, status envelope
// outside and entity key inside.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	f, header, err := r.FormFile("file")
	if err != nil {
		sendError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer f.Close()

	size, err := io.Copy(io.Discard, f)
	if err != nil {
		sendError(w, http.StatusBadRequest, "unreadable file part")
		return
	}

	doc := entity.Document{
		ID:         uuid.New().String(),
		FileName:   header.Filename,
		FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), "."),
		FileSize:   size,
		UploadedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.documents = append(s.documents, doc)
	s.mu.Unlock()

	s.logger.Info("document ingested", "id", doc.ID, "name", doc.FileName, "size", doc.FileSize)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"document": doc},
	})
}

// DELETE /documents/{id}
func (s *server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.documents {
		if doc.ID == id {
			s.documents = append(s.documents[:i], s.documents[i+1:]...)
			s.logger.Info("document deleted", "id", id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	sendError(w, http.StatusNotFound, "document not found")
}

// GET /agents/conversations answers with a bare array.
func (s *server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	convs := append([]entity.Conversation(nil), s.conversations...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, convs)
}

// POST /agents/conversations wraps the created entity under its kind key.
func (s *server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid body")
		return
	}

	conv := s.createConversation(body.Title)
	writeJSON(w, http.StatusOK, map[string]any{"conversation": conv})
}

// GET /agents/messages?conversation_id=... wraps the list under "data".
func (s *server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")

	s.mu.Lock()
	msgs := append([]entity.Message(nil), s.messages[conversationID]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": msgs})
}

// POST /agents/messages answers with the bare entity.
func (s *server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ConversationID string `json:"conversation_id"`
		Role           string `json:"role"`
		Content        string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.ConversationID == "" || body.Content == "" {
		sendError(w, http.StatusUnprocessableEntity, "conversation_id and content are required")
		return
	}

	role := entity.Role(body.Role)
	if role == "" {
		role = entity.RoleUser
	}
	msg := s.appendMessage(body.ConversationID, role, body.Content)
	writeJSON(w, http.StatusOK, msg)
}

// GET /query?q=...
func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if strings.TrimSpace(text) == "" {
		sendError(w, http.StatusUnprocessableEntity, "q is required")
		return
	}

	query := entity.Query{
		ID:        uuid.New().String(),
		Text:      text,
		Answer:    cannedReply(text),
		CreatedAt: time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"sources": s.cannedSources(),
	})
}

func (s *server) createConversation(title string) entity.Conversation {
	if strings.TrimSpace(title) == "" {
		title = "New Conversation"
	}
	conv := entity.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.conversations = append(s.conversations, conv)
	s.mu.Unlock()
	return conv
}

func (s *server) appendMessage(conversationID string, role entity.Role, content string) entity.Message {
	msg := entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.mu.Unlock()
	return msg
}

// cannedSources grounds answers in the first ingested document, or in a
// stand-in when nothing has been uploaded yet.
func (s *server) cannedSources() []entity.Source {
	id, name := "doc-0", "quarterly-report.pdf"

	s.mu.Lock()
	if len(s.documents) > 0 {
		id, name = s.documents[0].ID, s.documents[0].FileName
	}
	s.mu.Unlock()

	return []entity.Source{
		{DocumentID: id, FileName: name, Snippet: "Revenue for the quarter came in at $4.2M, up 12% on the prior period.", Score: 0.92},
		{DocumentID: id, FileName: name, Snippet: "Enterprise accounts drove the bulk of the growth at +18%.", Score: 0.87},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError writes a JSON error response in the backend's detail shape.
func sendError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

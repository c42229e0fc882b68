// ABOUTME: Canonical entity types shared by the REST clients, stream consumer, and session controller.
// ABOUTME: Field names mirror the backend's wire format so entities decode directly from payloads.

package entity

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind names an entity family. Normalization uses it to locate wrapper
// keys ("conversation", "conversations") and identity fields
// ("conversation_id") in backend payloads.
type Kind string

const (
	KindDocument     Kind = "document"
	KindConversation Kind = "conversation"
	KindMessage      Kind = "message"
	KindQuery        Kind = "query"
)

// plural returns the collection key the backend uses for this kind.
func (k Kind) plural() string {
	if k == KindQuery {
		return "queries"
	}
	return string(k) + "s"
}

// Document is an ingested file known to the backend's retrieval index.
type Document struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	Content    string    `json:"content,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
	UserID     string    `json:"user_id,omitempty"`
}

// Conversation is a chat thread owned by the backend.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id,omitempty"`
}

// Message is a single conversation turn, user or assistant authored.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Query records one retrieval question and its answer.
type Query struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Source is a retrieved chunk that grounded a query answer. Sources
// hang off a Query rather than standing alone, so they carry no
// identity of their own.
type Source struct {
	DocumentID string  `json:"document_id"`
	FileName   string  `json:"file_name"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// AnalysisResult is the structured payload a completed analysis turn
// produces (visualizations, tables, report sections). Its schema varies
// by analysis type, so it stays opaque until a consumer renders it.
type AnalysisResult = json.RawMessage

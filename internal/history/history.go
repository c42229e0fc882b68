// ABOUTME: SQLite-backed local archive of conversations and messages using modernc.org/sqlite
// ABOUTME: Keeps a browsable copy of every finished turn with automatic schema creation

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// Store archives conversations and messages in a local SQLite database
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates an archive store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func New(path string) (*Store, error) {
	logger := slog.Default().With("component", "history")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("history archive initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			user_id TEXT,
			created_at DATETIME NOT NULL,
			archived_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_archived
			ON conversations(archived_at);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.logger.Info("closing history archive")
	return s.db.Close()
}

// SaveConversation records a conversation, updating the existing row when
// the id is already archived. Messages referencing the conversation are
// left untouched.
func (s *Store) SaveConversation(ctx context.Context, conv entity.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("conversation has no id")
	}

	query := `
		INSERT INTO conversations (id, title, user_id, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			user_id = excluded.user_id,
			archived_at = excluded.archived_at
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.Title,
		nullString(conv.UserID),
		conv.CreatedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// SaveMessage records a message.
// Uses INSERT OR REPLACE so a turn can be re-archived after its
// conversation id changes.
func (s *Store) SaveMessage(ctx context.Context, msg entity.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message has no id")
	}

	query := `
		INSERT OR REPLACE INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		string(msg.Role),
		msg.Content,
		msg.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// GetConversation retrieves an archived conversation by id
func (s *Store) GetConversation(ctx context.Context, id string) (entity.Conversation, error) {
	query := `
		SELECT id, title, user_id, created_at
		FROM conversations
		WHERE id = ?
	`

	var conv entity.Conversation
	var userID sql.NullString
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.Title,
		&userID,
		&createdAtStr,
	)
	if err == sql.ErrNoRows {
		return entity.Conversation{}, ErrNotFound
	}
	if err != nil {
		return entity.Conversation{}, fmt.Errorf("getting conversation: %w", err)
	}

	conv.UserID = userID.String
	conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return entity.Conversation{}, fmt.Errorf("parsing created_at: %w", err)
	}

	return conv, nil
}

// ListConversations returns archived conversations, most recently
// archived first
func (s *Store) ListConversations(ctx context.Context, limit int) ([]entity.Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	// rowid breaks ties between rows archived within the same second
	query := `
		SELECT id, title, user_id, created_at
		FROM conversations
		ORDER BY archived_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []entity.Conversation
	for rows.Next() {
		var conv entity.Conversation
		var userID sql.NullString
		var createdAtStr string

		if err := rows.Scan(&conv.ID, &conv.Title, &userID, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}

		conv.UserID = userID.String
		conv.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	return conversations, nil
}

// Messages returns the most recent messages of a conversation in
// chronological order (oldest first)
func (s *Store) Messages(ctx context.Context, conversationID string, limit int) ([]entity.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	// Inner query selects the N most recent, outer restores order.
	// rowid breaks ties between messages written within the same second.
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM (
			SELECT id, conversation_id, role, content, created_at, rowid AS seq
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []entity.Message
	for rows.Next() {
		var msg entity.Message
		var role string
		var createdAtStr string

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}

		msg.Role = entity.Role(role)
		msg.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// nullString converts an empty string to a NULL-able value
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

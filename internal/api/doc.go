// Package api implements the HTTP client for the analysis backend.
//
// # Overview
//
// Client wraps the backend's REST surface and its streaming generation
// endpoint. Responses pass through entity normalization (see the entity
// package), so callers always receive canonical structs regardless of
// which payload shape the backend chose.
//
// # Operations
//
//   - ListDocuments, UploadDocument, DeleteDocument: retrieval index
//   - RunQuery: one-shot retrieval question
//   - CreateConversation, ListConversations: conversation lifecycle
//   - CreateMessage, ListMessages: recorded turns
//   - GenerateStream: streaming assistant reply
//
// # Error handling
//
// Non-2xx REST responses become *TransportError carrying the status
// code and raw body. List operations degrade to empty slices on shape
// problems; single-entity operations return *entity.NormalizationError
// when no identity can be recovered.
//
// # Streaming
//
// GenerateStream returns a Stream handle immediately and never an
// error; connection failures, bad statuses, and malformed terminals all
// arrive as events. Exactly one terminal event (final or error) is
// delivered per stream unless Stop ends it first, in which case the
// channel closes with no synthetic error.
package api

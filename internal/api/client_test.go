// ABOUTME: Tests for the REST operations of the backend client.
// ABOUTME: Uses httptest servers returning the payload shapes real backends produce.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-token", 5*time.Second, testLogger())
}

func TestClient_ListDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrapped list", `{"documents": [{"id": "d1", "file_name": "a.csv"}, {"id": "d2"}]}`, 2},
		{"bare array", `[{"id": "d1"}]`, 1},
		{"empty wrapped list", `{"documents": []}`, 0},
		{"not a list", `{"detail": "index empty"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/documents", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				fmt.Fprint(w, body)
			}))

			docs, err := client.ListDocuments(t.Context())
			require.NoError(t, err)
			assert.Len(t, docs, tt.want)
		})
	}
}

func TestClient_ListDocuments_TransportError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"detail": "vector store unavailable"}`)
	}))

	_, err := client.ListDocuments(t.Context())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
	assert.Contains(t, terr.Body, "vector store unavailable")
	assert.Contains(t, err.Error(), "502")
}

func TestClient_UploadDocument(t *testing.T) {
	var gotName string
	var gotBytes []byte
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingest/auto", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		gotName = header.Filename
		gotBytes, err = io.ReadAll(file)
		assert.NoError(t, err)
		fmt.Fprint(w, `{"data": {"id": "doc-77", "file_type": "csv"}}`)
	}))

	doc, err := client.UploadDocument(t.Context(), "/tmp/reports/sales.csv", strings.NewReader("region,revenue\nwest,100\n"))
	require.NoError(t, err)

	assert.Equal(t, "sales.csv", gotName)
	assert.Equal(t, "region,revenue\nwest,100\n", string(gotBytes))
	assert.Equal(t, "doc-77", doc.ID)
	assert.Equal(t, "csv", doc.FileType)
	assert.Equal(t, "sales.csv", doc.FileName, "file name filled from defaults")
	assert.Equal(t, int64(24), doc.FileSize)
}

func TestClient_UploadDocument_NoIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "accepted"}`)
	}))

	_, err := client.UploadDocument(t.Context(), "a.pdf", strings.NewReader("x"))
	var normErr *entity.NormalizationError
	require.ErrorAs(t, err, &normErr)
}

func TestClient_DeleteDocument(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.DeleteDocument(t.Context(), "doc-9"))
	assert.Equal(t, "/documents/doc-9", gotPath)
}

func TestClient_CreateConversation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/agents/conversations", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Revenue trend Q1", body["title"])

		// Minimal wrapped response, the shape the agents service returns.
		fmt.Fprint(w, `{"conversation": {"id": "conv-123"}}`)
	}))

	conv, err := client.CreateConversation(t.Context(), "Revenue trend Q1")
	require.NoError(t, err)
	assert.Equal(t, "conv-123", conv.ID)
	assert.Equal(t, "Revenue trend Q1", conv.Title, "title filled locally when the response omits it")
	assert.False(t, conv.CreatedAt.IsZero())
}

func TestClient_CreateConversation_NoUsableIdentity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": true}`)
	}))

	_, err := client.CreateConversation(t.Context(), "x")
	var normErr *entity.NormalizationError
	require.ErrorAs(t, err, &normErr)
	assert.Equal(t, entity.KindConversation, normErr.Kind)
}

func TestClient_CreateConversation_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"detail": "model overloaded"}`)
	}))

	_, err := client.CreateConversation(t.Context(), "x")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 500, terr.StatusCode)
	assert.Contains(t, terr.Body, "overloaded")
}

func TestClient_ListMessages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "conv-1", r.URL.Query().Get("conversation_id"))
		fmt.Fprint(w, `[
			{"id": "m1", "role": "user", "content": "hi"},
			{"id": "m2", "role": "assistant", "content": "hello"}
		]`)
	}))

	msgs, err := client.ListMessages(t.Context(), "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, entity.RoleUser, msgs[0].Role)
	assert.Equal(t, entity.RoleAssistant, msgs[1].Role)
}

func TestClient_CreateMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "conv-1", body["conversation_id"])
		assert.Equal(t, "user", body["role"])
		fmt.Fprint(w, `"msg-50"`)
	}))

	msg, err := client.CreateMessage(t.Context(), "conv-1", entity.RoleUser, "show revenue")
	require.NoError(t, err)
	assert.Equal(t, "msg-50", msg.ID, "scalar response promoted to an entity")
	assert.Equal(t, "show revenue", msg.Content)
	assert.Equal(t, "conv-1", msg.ConversationID)
}

func TestClient_RunQuery(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "top products", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{
			"query": {"id": "q-1", "text": "top products", "answer": "Widgets lead."},
			"sources": [{"document_id": "d1", "file_name": "sales.csv", "snippet": "widgets 400", "score": 0.9}]
		}`)
	}))

	result, err := client.RunQuery(t.Context(), "top products")
	require.NoError(t, err)
	assert.Equal(t, "q-1", result.Query.ID)
	assert.Equal(t, "Widgets lead.", result.Query.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "sales.csv", result.Sources[0].FileName)
}

func TestClient_RunQuery_NoIdentityDegrades(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query": {"answer": "42 units"}}`)
	}))

	result, err := client.RunQuery(t.Context(), "how many")
	require.NoError(t, err, "shape problems never fail the query operation")
	assert.NotEmpty(t, result.Query.ID, "fallback record gets a local id")
	assert.Equal(t, "42 units", result.Query.Answer)
	assert.Equal(t, "how many", result.Query.Text)
}

func TestClient_RunQuery_TransportErrorStillFails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.RunQuery(t.Context(), "x")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestClient_NoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, "", 0, testLogger())
	_, err := client.ListDocuments(t.Context())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestClient_ConnectionRefused(t *testing.T) {
	client := New("http://127.0.0.1:1", "", time.Second, testLogger())

	_, err := client.ListDocuments(t.Context())
	require.Error(t, err)
	var terr *TransportError
	assert.False(t, errors.As(err, &terr), "connection failures are not transport status errors")
}

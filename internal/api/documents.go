// ABOUTME: Document operations against the retrieval index.
// ABOUTME: Covers listing, multipart upload through auto-ingestion, and deletion.

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

// ListDocuments returns the documents known to the backend. Responses
// that carry no recognizable document list yield an empty slice, never
// an error.
func (c *Client) ListDocuments(ctx context.Context) ([]entity.Document, error) {
	payload, err := c.getJSON(ctx, "/documents", nil)
	if err != nil {
		return nil, err
	}
	return c.norm.Documents(payload), nil
}

// UploadDocument sends the contents of r through the auto-ingestion
// endpoint under the given file name. Fields the backend omits from its
// response are filled from what the client already knows about the
// file.
func (c *Client) UploadDocument(ctx context.Context, name string, r io.Reader) (entity.Document, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return entity.Document{}, fmt.Errorf("building upload form: %w", err)
	}
	size, err := io.Copy(part, r)
	if err != nil {
		return entity.Document{}, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := form.Close(); err != nil {
		return entity.Document{}, fmt.Errorf("finalizing upload form: %w", err)
	}

	req, err := newUploadRequest(ctx, c.baseURL+"/ingest/auto", &buf, form.FormDataContentType())
	if err != nil {
		return entity.Document{}, err
	}
	payload, err := c.do(req)
	if err != nil {
		return entity.Document{}, err
	}

	defaults := entity.Document{
		FileName:   filepath.Base(name),
		FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		FileSize:   size,
		UploadedAt: time.Now().UTC(),
	}
	doc, err := c.norm.Document(payload, defaults)
	if err != nil {
		return entity.Document{}, fmt.Errorf("upload response for %s: %w", name, err)
	}
	return doc, nil
}

// DeleteDocument removes a document from the index by id.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.deleteResource(ctx, "/documents/"+url.PathEscape(id))
}

func newUploadRequest(ctx context.Context, target string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

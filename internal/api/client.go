// ABOUTME: HTTP client core shared by the resource operations in this package.
// ABOUTME: Owns base URL, bearer auth, JSON decoding, and status-to-error mapping.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Lucky110405/major-prototype/internal/entity"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 10 << 20
)

// Client talks to the analysis backend over HTTP. REST calls share a
// timeout-bounded http.Client; streaming calls use a separate client
// with no overall deadline so long-running generations are not cut off
// mid-stream.
type Client struct {
	baseURL    string
	token      string
	restHTTP   *http.Client
	streamHTTP *http.Client
	norm       *entity.Normalizer
	logger     *slog.Logger
}

// New returns a Client for the backend at baseURL. token may be empty
// when the backend runs without auth. A non-positive timeout falls back
// to 30s; the timeout bounds REST calls only, never streams.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		restHTTP:   &http.Client{Timeout: timeout},
		streamHTTP: &http.Client{},
		norm:       entity.NewNormalizer(logger),
		logger:     logger.With("component", "api"),
	}
}

// BaseURL reports the backend address this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token reports the bearer token the client authenticates with, empty
// when none is configured.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// getJSON issues a GET against path and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) (any, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(req)
}

// postJSON issues a POST with a JSON-encoded body and decodes the JSON
// response.
func (c *Client) postJSON(ctx context.Context, path string, body any) (any, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) deleteResource(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	_, err = c.do(req)
	return err
}

// do executes req, maps non-2xx statuses to *TransportError, and
// decodes any JSON body into a generic value for normalization. An
// empty body decodes to nil.
func (c *Client) do(req *http.Request) (any, error) {
	c.authorize(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.restHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return payload, nil
}

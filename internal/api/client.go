package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TokenSource supplies the current bearer credential. An empty string means
// no credential; the request goes out unauthenticated.
type TokenSource func() string

// Client wraps all outbound calls to the backend. It injects the bearer
// token, normalizes error shapes and funnels 401 responses into a single
// teardown callback.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource

	mu             sync.Mutex
	onUnauthorized func()
	teardownFired  bool
}

// New creates a client for the backend at baseURL (scheme://host, no
// trailing slash). token may be nil for a client that never authenticates.
func New(baseURL string, timeout time.Duration, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

// OnUnauthorized registers the session-teardown hook. The hook fires at most
// once per session generation even when several in-flight requests all come
// back 401; Rearm re-enables it after a fresh login.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// Rearm re-enables the unauthorized hook for a new session generation.
func (c *Client) Rearm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownFired = false
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// GetJSON issues a GET and decodes a JSON response into out (out may be nil).
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// PutJSON issues a PUT with a JSON body and decodes the response into out.
func (c *Client) PutJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE and discards any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op, out)
}

// UploadFile sends a multipart POST: one file part plus plain form fields.
func (c *Client) UploadFile(ctx context.Context, path, fileField, filename string, file io.Reader, fields map[string]string, out any) error {
	op := "POST " + path
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return fmt.Errorf("%s: build multipart: %w", op, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("%s: copy file: %w", op, err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("%s: write field %s: %w", op, k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: close multipart: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, op, out)
}

func (c *Client) send(req *http.Request, op string, out any) error {
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.fireUnauthorized()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &Error{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) fireUnauthorized() {
	c.mu.Lock()
	fn := c.onUnauthorized
	fired := c.teardownFired
	if fn != nil {
		c.teardownFired = true
	}
	c.mu.Unlock()
	if fn != nil && !fired {
		fn()
	}
}

// Health probes the unauthenticated liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.GetJSON(ctx, "/health", &body); err != nil {
		return err
	}
	if body.Status != "ok" {
		return fmt.Errorf("GET /health: unexpected status %q", body.Status)
	}
	return nil
}

// Pagination is the server's paging envelope metadata.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// PageQuery renders limit/offset (and an optional search term) as a query
// string, starting with "?".
func PageQuery(q string, limit, offset int) string {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(offset))
	return "?" + v.Encode()
}

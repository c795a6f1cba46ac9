// Package gateway implements the HTTP client for the central backend.
// Each call either succeeds, fails with ErrUnreachable (retryable), or
// fails with a StatusError (the server saw the request and rejected it).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vitanapos/vitana/internal/types"
)

// resourcePath maps record types to backend collection endpoints.
var resourcePath = map[types.RecordType]string{
	types.TypeProducts:  "/api/products",
	types.TypeSales:     "/api/sales",
	types.TypeSettings:  "/api/business/settings",
	types.TypeMovements: "/api/stock/movements",
}

// Options configures the Client.
type Options struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	RetryAttempts  uint64
	RetryBaseDelay time.Duration
}

// Client talks to the backend REST API. Transient failures (network
// errors, 5xx, 429) are retried with exponential backoff before being
// reported; the sync engine keeps its own coarser per-item retry count
// across passes.
type Client struct {
	baseURL       string
	apiKey        string
	http          *http.Client
	retryAttempts uint64
	retryBase     time.Duration
}

// New creates a Client. A bounded request timeout is mandatory: an
// unbounded outstanding call would hold the sync engine's in-flight flag
// forever.
func New(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = 3
	}
	base := opts.RetryBaseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}

	return &Client{
		baseURL:       opts.BaseURL,
		apiKey:        opts.APIKey,
		http:          &http.Client{Timeout: timeout},
		retryAttempts: attempts,
		retryBase:     base,
	}
}

// Health checks connectivity to the backend.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.send(ctx, http.MethodGet, "/api/health", nil)
	return err
}

// Create replays a client-created record to the backend. The payload
// carries the client-generated id, which the backend preserves; replaying
// the same create is idempotent by id.
func (c *Client) Create(ctx context.Context, rt types.RecordType, payload json.RawMessage) error {
	path, err := pathFor(rt)
	if err != nil {
		return err
	}
	// Settings are a singleton resource updated in place.
	if rt == types.TypeSettings {
		_, err = c.doWithRetry(ctx, http.MethodPut, path, payload)
		return err
	}
	_, err = c.doWithRetry(ctx, http.MethodPost, path, payload)
	return err
}

// Update replays a record update.
func (c *Client) Update(ctx context.Context, rt types.RecordType, id string, payload json.RawMessage) error {
	path, err := pathFor(rt)
	if err != nil {
		return err
	}
	if rt == types.TypeSettings {
		_, err = c.doWithRetry(ctx, http.MethodPut, path, payload)
		return err
	}
	_, err = c.doWithRetry(ctx, http.MethodPut, path+"/"+id, payload)
	return err
}

// Delete replays a record deletion.
func (c *Client) Delete(ctx context.Context, rt types.RecordType, id string) error {
	path, err := pathFor(rt)
	if err != nil {
		return err
	}
	_, err = c.doWithRetry(ctx, http.MethodDelete, path+"/"+id, nil)
	return err
}

// List fetches the full server-side listing for a type. Settings come
// back as a single object and are wrapped into a one-element array so all
// types share a shape.
func (c *Client) List(ctx context.Context, rt types.RecordType) (json.RawMessage, error) {
	path, err := pathFor(rt)
	if err != nil {
		return nil, err
	}

	body, err := c.doWithRetry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if rt == types.TypeSettings && len(body) > 0 && body[0] == '{' {
		wrapped := make(json.RawMessage, 0, len(body)+2)
		wrapped = append(wrapped, '[')
		wrapped = append(wrapped, body...)
		wrapped = append(wrapped, ']')
		return wrapped, nil
	}
	return body, nil
}

// doWithRetry sends a request, retrying transient failures with
// exponential backoff up to the configured attempt count.
func (c *Client) doWithRetry(ctx context.Context, method, path string, payload json.RawMessage) (json.RawMessage, error) {
	var body json.RawMessage

	backoff := retry.WithMaxRetries(c.retryAttempts, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.send(ctx, method, path, payload)
		if err != nil {
			if retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		body = b
		return nil
	})
	return body, err
}

// send performs a single HTTP round trip and classifies the outcome.
func (c *Client) send(ctx context.Context, method, path string, payload json.RawMessage) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure: offline, refused, timed out.
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Detail: errorDetail(body)}
	}

	return body, nil
}

// retryable reports whether an error is worth retrying within a single
// gateway call: network failures and 5xx/429 rejections.
func retryable(err error) bool {
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return false
}

// errorDetail extracts the error message from a JSON error response body.
func errorDetail(body []byte) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Detail
}

func pathFor(rt types.RecordType) (string, error) {
	path, ok := resourcePath[rt]
	if !ok {
		return "", fmt.Errorf("unknown record type %q", rt)
	}
	return path, nil
}

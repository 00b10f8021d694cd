package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kavishka-codxlab/portfolio-assistant/pkg/urlvalidation"
)

// ErrNotFound is returned when the backend has no message with the given id.
var ErrNotFound = errors.New("contact message not found")

// Client talks to a portfolio backend's /api/messages endpoints.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	token        string
	validateOpts []urlvalidation.Option
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken sends an Authorization header on every request.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithURLValidation passes options to the SSRF check on the base URL.
func WithURLValidation(opts ...urlvalidation.Option) ClientOption {
	return func(c *Client) { c.validateOpts = append(c.validateOpts, opts...) }
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := urlvalidation.ValidateWebhookURL(c.baseURL, c.validateOpts...); err != nil {
		return nil, fmt.Errorf("contact API URL validation: %w", err)
	}
	return c, nil
}

// Create posts a new message and returns the stored record.
func (c *Client) Create(ctx context.Context, msg NewMessage) (*Message, error) {
	var resp struct {
		NewMessage wireMessage `json:"newMessage"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/messages", msg, &resp); err != nil {
		return nil, err
	}
	m := resp.NewMessage.toMessage()
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return &m, nil
}

// List returns all messages, newest first.
func (c *Client) List(ctx context.Context) ([]Message, error) {
	var rows []wireMessage
	if err := c.do(ctx, http.MethodGet, "/api/messages", nil, &rows); err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMessage())
	}
	return out, nil
}

// MarkRead flags a message as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/messages/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	// Drain remainder for connection reuse.
	io.Copy(io.Discard, resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s returned HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Package client is the Go SDK for the campusbot admin API.
//
// It exchanges the admin password for a bearer token and triggers
// broadcasts on a running bot:
//
//	c, _ := client.New("http://localhost:8080")
//	if _, err := c.FetchToken(ctx, password); err != nil {
//	    log.Fatal(err)
//	}
//	accepted, err := c.Broadcast(ctx, "@all Exams start $date.weekday", adminPSID)
//
// The broadcast endpoint refuses proxied requests, so base must reach the bot
// directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrUnauthorized is returned for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned for 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("not found")
)

// BroadcastAccepted is the response to an accepted broadcast.
type BroadcastAccepted struct {
	Status string `json:"status"`
	Target string `json:"target"`
}

// Client talks to one bot instance.
type Client struct {
	base       string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a pre-obtained admin token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the bot at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	if base == "" {
		return nil, errors.New("empty base URL")
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// FetchToken exchanges the admin password for a token, caches it for later
// calls, and returns it.
func (c *Client) FetchToken(ctx context.Context, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.postJSON(ctx, "/admin/token", map[string]string{"password": password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("token response is empty")
	}

	c.mu.Lock()
	c.bearerToken = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

// Broadcast asks the bot to send text on behalf of the admin with the given
// page-scoped id. The bot validates the command and sends it in the
// background; the summary arrives in the admin's Messenger conversation.
func (c *Client) Broadcast(ctx context.Context, text, adminPSID string) (*BroadcastAccepted, error) {
	body := map[string]string{"text": text, "admin_psid": adminPSID}
	var out BroadcastAccepted
	if err := c.postJSON(ctx, "/internal/broadcast", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy returns nil when the bot's /healthz answers 200.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.mu.Lock()
	token := c.bearerToken
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, apiError(body))
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrForbidden, apiError(body))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, apiError(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, apiError(body))
	}
	return body, nil
}

// apiError extracts {"error": "..."} from a response body, falling back to
// the raw body.
func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

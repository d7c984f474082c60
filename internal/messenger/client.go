package messenger

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

	"github.com/jmerrifield20/campusbot/internal/users"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Graph API version the bot was built against.
const DefaultBaseURL = "https://graph.facebook.com/v5.0"

// ErrSendFailed wraps every failed Graph API call.
var ErrSendFailed = errors.New("messenger send failed")

// SenderAction is a typing or seen indicator.
type SenderAction string

const (
	ActionMarkSeen  SenderAction = "mark_seen"
	ActionTypingOn  SenderAction = "typing_on"
	ActionTypingOff SenderAction = "typing_off"
)

// ClientConfig configures the Graph API client.
type ClientConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// Client calls the Send, profile and account linking APIs.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a Client authenticating with the page access token.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}))
	hc.Timeout = cfg.Timeout

	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

type sendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendMessage posts req to the Send API and returns the assigned message id.
func (c *Client) SendMessage(ctx context.Context, req *SendRequest) (string, error) {
	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, "/me/messages", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.MessageID, nil
}

// SenderAction shows a typing or seen indicator to recipient.
func (c *Client) SenderAction(ctx context.Context, recipient string, action SenderAction) error {
	req := &SendRequest{Recipient: Recipient{ID: recipient}, SenderAction: string(action)}
	return c.do(ctx, http.MethodPost, "/me/messages", nil, req, nil)
}

// UserProfile fetches the public profile of a page-scoped user.
func (c *Client) UserProfile(ctx context.Context, psid string) (*users.Profile, error) {
	q := url.Values{"fields": {"first_name,last_name,gender,locale,id"}}
	var p users.Profile
	if err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(psid), q, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ResolveLinkingToken returns the page-scoped id of the user behind an
// account linking token.
func (c *Client) ResolveLinkingToken(ctx context.Context, linkingToken string) (string, error) {
	q := url.Values{
		"fields":                {"recipient"},
		"account_linking_token": {linkingToken},
	}
	var resp struct {
		Recipient string `json:"recipient"`
		ID        string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", q, nil, &resp); err != nil {
		return "", err
	}
	if resp.Recipient == "" {
		return "", fmt.Errorf("%w: linking token resolved to no recipient", ErrSendFailed)
	}
	return resp.Recipient, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrSendFailed, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrSendFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var ge graphError
		_ = json.Unmarshal(data, &ge)
		c.logger.Warn("graph api error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int("code", ge.Error.Code),
			zap.String("message", ge.Error.Message),
		)
		return fmt.Errorf("%w: HTTP %d: %s", ErrSendFailed, resp.StatusCode, ge.Error.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSendFailed, err)
	}
	return nil
}

// Package usos performs the OAuth 1.0a handshake against the USOS API.
package usos

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dghubble/oauth1"
	"go.uber.org/zap"
)

// DefaultBaseURL is the USOS API installation the bot talks to.
const DefaultBaseURL = "https://apps.usos.pw.edu.pl"

// DefaultScopes are requested when Config.Scopes is empty.
var DefaultScopes = []string{"grades", "offline_access", "studies", "crstests"}

// Config holds the USOS consumer registration.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	Scopes         []string
}

// Client runs the three-legged OAuth 1.0a flow.
type Client struct {
	oauth  *oauth1.Config
	logger *zap.Logger
}

// NewClient creates a Client signing requests with HMAC-SHA1.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	q := url.Values{}
	q.Set("scopes", strings.Join(cfg.Scopes, "|"))

	return &Client{
		oauth: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    cfg.CallbackURL,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: base + "/services/oauth/request_token?" + q.Encode(),
				AuthorizeURL:    base + "/services/oauth/authorize",
				AccessTokenURL:  base + "/services/oauth/access_token",
			},
		},
		logger: logger,
	}
}

// RequestToken obtains temporary credentials.
func (c *Client) RequestToken() (token, secret string, err error) {
	token, secret, err = c.oauth.RequestToken()
	if err != nil {
		return "", "", fmt.Errorf("usos request token: %w", err)
	}
	return token, secret, nil
}

// AuthorizationURL is where the user grants the bot access.
func (c *Client) AuthorizationURL(requestToken string) (string, error) {
	u, err := c.oauth.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("usos authorization url: %w", err)
	}
	return u.String(), nil
}

// AccessToken exchanges an authorized request token for the access pair.
func (c *Client) AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error) {
	token, secret, err = c.oauth.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return "", "", fmt.Errorf("usos access token: %w", err)
	}
	c.logger.Debug("usos access token obtained", zap.String("request_token", requestToken))
	return token, secret, nil
}

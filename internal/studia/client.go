// Package studia keeps login sessions to the Studia3 course portal alive and
// lets an admin renew them through a small HTML form.
package studia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the portal root for the current semester.
const DefaultBaseURL = "https://studia3.elka.pw.edu.pl/en/19Z/-/"

// ErrLoginFailed is returned when the portal rejects the credentials or does
// not hand out a session cookie.
var ErrLoginFailed = errors.New("studia3 login failed")

var sessionCookieRe = regexp.MustCompile(`STUDIA_SID=([a-zA-Z\d]+);`)

// Config configures the portal client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Studia3 portal. Redirects are not followed: a 302 from
// the login endpoint is the success signal.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		base: cfg.BaseURL,
		http: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// AttemptLogin obtains a fresh session id and authenticates it with the
// given LDAP credentials. It returns the session id on success.
func (c *Client) AttemptLogin(ctx context.Context, login, password string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"login/", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", "STUDIA_COOKIES=YES;")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch login page: %w", err)
	}
	drain(resp)

	sid := sessionID(resp.Header.Values("Set-Cookie"))
	if sid == "" {
		c.logger.Error("studia3 did not set a session cookie")
		return "", fmt.Errorf("%w: no session cookie", ErrLoginFailed)
	}

	form := url.Values{"studia_login": {login}, "studia_passwd": {password}}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.base+"login-ldap", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", cookieHeader(sid))
	resp, err = c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit login: %w", err)
	}
	drain(resp)

	if resp.StatusCode != http.StatusFound {
		return "", fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}
	return sid, nil
}

// Probe reports whether the session is still logged in. The portal answers
// 200 for live sessions and redirects to the login page otherwise.
func (c *Client) Probe(ctx context.Context, sid string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Cookie", cookieHeader(sid))
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe session: %w", err)
	}
	drain(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return false, nil
	default:
		return false, fmt.Errorf("probe session: unexpected status %d", resp.StatusCode)
	}
}

func sessionID(setCookies []string) string {
	for _, c := range setCookies {
		// The pattern needs the trailing separator, which the last attribute lacks.
		if m := sessionCookieRe.FindStringSubmatch(c + ";"); m != nil {
			return m[1]
		}
	}
	return ""
}

func cookieHeader(sid string) string {
	return "STUDIA_COOKIES=YES;STUDIA_SID=" + sid
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck
	resp.Body.Close()
}

// Package linking connects a messaging platform account to a USOS account.
//
// The platform sends the user to the register endpoint with a linking token
// and a redirect URI. Start resolves the token to a user, obtains a USOS
// request token and records a pending Flow. After the user authorizes the bot
// on USOS, Complete exchanges the verifier for an access token and returns
// the platform redirect carrying the flow's one-time authorization code. The
// platform then delivers an account_linking webhook with that code, which
// Consume uses to delete the flow.
package linking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmerrifield20/campusbot/internal/users"
	"go.uber.org/zap"
)

// ErrUnknownLinkingToken is returned when the platform cannot map a linking
// token to a known user.
var ErrUnknownLinkingToken = errors.New("unknown account linking token")

// DefaultTTL is how long an unfinished flow is kept.
const DefaultTTL = time.Hour

type flowRepo interface {
	Create(ctx context.Context, f *Flow) error
	GetByRequestToken(ctx context.Context, token string, notBefore time.Time) (*Flow, error)
	TakeByAuthCode(ctx context.Context, code string) (*Flow, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type userStore interface {
	GetByFacebookID(ctx context.Context, facebookID string) (*users.User, error)
	Link(ctx context.Context, id int64, token, secret string) error
}

// Authorizer is the OAuth 1.0a provider.
type Authorizer interface {
	RequestToken() (token, secret string, err error)
	AuthorizationURL(requestToken string) (string, error)
	AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error)
}

// TokenResolver maps a platform linking token to the page-scoped user id.
type TokenResolver interface {
	ResolveLinkingToken(ctx context.Context, linkingToken string) (string, error)
}

// Service drives the linking handshake.
type Service struct {
	repo     flowRepo
	users    userStore
	auth     Authorizer
	resolver TokenResolver
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo flowRepo, us userStore, auth Authorizer, resolver TokenResolver, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    us,
		auth:     auth,
		resolver: resolver,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// SetTTL overrides how long pending flows stay valid.
func (s *Service) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Start records a pending flow and returns the USOS authorization URL.
func (s *Service) Start(ctx context.Context, linkingToken, redirectURI string) (string, error) {
	if linkingToken == "" || redirectURI == "" {
		return "", fmt.Errorf("account_linking_token and redirect_uri are required")
	}

	psid, err := s.resolver.ResolveLinkingToken(ctx, linkingToken)
	if err != nil {
		return "", fmt.Errorf("resolve linking token: %w", err)
	}
	u, err := s.users.GetByFacebookID(ctx, psid)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return "", ErrUnknownLinkingToken
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	reqToken, reqSecret, err := s.auth.RequestToken()
	if err != nil {
		return "", err
	}

	code, err := generateAuthCode()
	if err != nil {
		return "", fmt.Errorf("generate auth code: %w", err)
	}

	f := &Flow{
		UserID:        u.ID,
		LinkingToken:  linkingToken,
		RedirectURI:   redirectURI,
		AuthCode:      code,
		RequestToken:  reqToken,
		RequestSecret: reqSecret,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return "", err
	}

	s.logger.Debug("login flow started", zap.Int64("user_id", u.ID))
	return s.auth.AuthorizationURL(reqToken)
}

// Complete finishes the USOS side of the handshake, stores the access token
// pair on the user and returns the platform redirect URL.
func (s *Service) Complete(ctx context.Context, requestToken, verifier string) (string, error) {
	f, err := s.repo.GetByRequestToken(ctx, requestToken, s.now().Add(-s.ttl))
	if err != nil {
		return "", err
	}

	token, secret, err := s.auth.AccessToken(f.RequestToken, f.RequestSecret, verifier)
	if err != nil {
		return "", err
	}
	if err := s.users.Link(ctx, f.UserID, token, secret); err != nil {
		return "", fmt.Errorf("store usos tokens: %w", err)
	}

	s.logger.Info("usos account linked", zap.Int64("user_id", f.UserID))
	return withAuthCode(f.RedirectURI, f.AuthCode)
}

// Consume deletes the flow identified by the one-time code and returns it.
func (s *Service) Consume(ctx context.Context, authCode string) (*Flow, error) {
	if authCode == "" {
		return nil, ErrNotFound
	}
	return s.repo.TakeByAuthCode(ctx, authCode)
}

// DeleteExpired drops flows older than the TTL.
func (s *Service) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired login flows removed", zap.Int64("count", n))
	}
	return n, nil
}

func withAuthCode(redirectURI, code string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect uri: %w", err)
	}
	q := u.Query()
	q.Set("authorization_code", code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func generateAuthCode() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

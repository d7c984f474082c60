package studia

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type sessionRepo interface {
	List(ctx context.Context) ([]*Session, error)
	Get(ctx context.Context, programID int64) (*Session, error)
	SetCookie(ctx context.Context, programID int64, cookie string, at time.Time) error
	ClearCookie(ctx context.Context, programID int64) error
}

type portal interface {
	AttemptLogin(ctx context.Context, login, password string) (string, error)
	Probe(ctx context.Context, sid string) (bool, error)
}

// Service logs programs in to the portal with the shared LDAP account.
type Service struct {
	repo   sessionRepo
	portal portal
	login  string
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a Service. login is the LDAP user used for every
// program; only the password is entered in the form.
func NewService(repo sessionRepo, p portal, login string, logger *zap.Logger) *Service {
	return &Service{repo: repo, portal: p, login: login, now: time.Now, logger: logger}
}

// Sessions returns all programs and their login state.
func (s *Service) Sessions(ctx context.Context) ([]*Session, error) {
	return s.repo.List(ctx)
}

// Login authenticates programID with password and stores the new session.
func (s *Service) Login(ctx context.Context, programID int64, password string) (*Session, error) {
	sess, err := s.repo.Get(ctx, programID)
	if err != nil {
		return nil, err
	}

	sid, err := s.portal.AttemptLogin(ctx, s.login, password)
	if err != nil {
		s.logger.Warn("studia3 login failed", zap.Int64("program_id", programID), zap.Error(err))
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.SetCookie(ctx, programID, sid, now); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	sess.Cookie, sess.LastLoginAt = sid, now

	s.logger.Info("studia3 session started",
		zap.Int64("program_id", programID),
		zap.String("program", sess.ProgramName),
	)
	return sess, nil
}

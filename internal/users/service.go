package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// userRepo is the storage interface consumed by Service.
type userRepo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByFacebookID(ctx context.Context, facebookID string) (*User, error)
	ListByTarget(ctx context.Context, where string, args ...any) ([]*User, error)
	UpdateConversation(ctx context.Context, id int64, state State, nickname string) error
	SetUSOSTokens(ctx context.Context, id int64, token, secret string) error
	ClearUSOSTokens(ctx context.Context, id int64) error
}

// ProfileFetcher loads a user profile from the messaging platform.
type ProfileFetcher interface {
	UserProfile(ctx context.Context, facebookID string) (*Profile, error)
}

// Service loads and saves users on behalf of the dispatcher and broadcaster.
type Service struct {
	repo     userRepo
	profiles ProfileFetcher
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(repo userRepo, profiles ProfileFetcher, logger *zap.Logger) *Service {
	return &Service{repo: repo, profiles: profiles, logger: logger}
}

// Resolve returns the user with the given platform id, creating it from the
// platform profile on first contact.
func (s *Service) Resolve(ctx context.Context, facebookID string) (*User, error) {
	u, err := s.repo.GetByFacebookID(ctx, facebookID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	p, err := s.profiles.UserProfile(ctx, facebookID)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	u = &User{
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		FacebookID: facebookID,
		Gender:     p.Gender,
		Locale:     p.Locale,
		State:      StateNone,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateFacebookID) {
			// A concurrent delivery created the row first.
			return s.repo.GetByFacebookID(ctx, facebookID)
		}
		return nil, err
	}

	s.logger.Info("user created",
		zap.Int64("user_id", u.ID),
		zap.String("facebook_id", facebookID),
		zap.String("locale", u.Locale),
	)
	return u, nil
}

// GetByID returns a user by internal id.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByFacebookID returns a user by platform id without creating it.
func (s *Service) GetByFacebookID(ctx context.Context, facebookID string) (*User, error) {
	return s.repo.GetByFacebookID(ctx, facebookID)
}

// SaveConversation persists the state and nickname carried by u.
func (s *Service) SaveConversation(ctx context.Context, u *User) error {
	if err := s.repo.UpdateConversation(ctx, u.ID, u.State, u.Nickname); err != nil {
		return fmt.Errorf("save conversation for user %d: %w", u.ID, err)
	}
	return nil
}

// ListByTarget returns the users matched by a broadcast predicate.
func (s *Service) ListByTarget(ctx context.Context, where string, args ...any) ([]*User, error) {
	return s.repo.ListByTarget(ctx, where, args...)
}

// Link stores the USOS access token pair and marks the user registered.
func (s *Service) Link(ctx context.Context, id int64, token, secret string) error {
	if token == "" || secret == "" {
		return fmt.Errorf("usos token pair is incomplete")
	}
	return s.repo.SetUSOSTokens(ctx, id, token, secret)
}

// Unlink forgets the USOS account of the user.
func (s *Service) Unlink(ctx context.Context, id int64) error {
	return s.repo.ClearUSOSTokens(ctx, id)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"learnpath/internal/auth"
	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = &domain.Error{Kind: domain.ErrUnauthenticated, Message: "invalid email or password"}
	// ErrInvalidRefreshToken covers every refresh failure: missing, expired,
	// forged, already rotated or belonging to a deleted user.
	ErrInvalidRefreshToken = &domain.Error{Kind: domain.ErrUnauthenticated, Message: "invalid refresh token"}
)

// Session is the outcome of a login or a refresh.
type Session struct {
	User    *domain.User
	Access  auth.Token
	Refresh auth.Token
}

// AuthService describes account and session lifecycle operations.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	// Authenticate validates an access token and returns its user id.
	Authenticate(accessToken string) (string, error)
	RevokeSessions(ctx context.Context, userID string) error
	Profile(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, fields repository.Fields) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

type authService struct {
	users    repository.UserRepository
	sessions repository.RefreshTokenStore
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
	logger   logrus.FieldLogger
	// dummyHash is verified against when the email is unknown so both
	// login failures cost one bcrypt comparison.
	dummyHash string
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.RefreshTokenStore,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenService,
	logger logrus.FieldLogger,
) (AuthService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &authService{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.Errorf(domain.ErrValidation, "email is required")
	}
	if len(password) < minPasswordLength {
		return nil, domain.Errorf(domain.ErrValidation, "password must be at least %d characters", minPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

// Refresh rotates a refresh token. A token that verifies but whose session
// was already consumed is treated as stolen and every session of its user
// is revoked.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		s.logger.WithError(err).Debug("refresh token rejected")
		return nil, ErrInvalidRefreshToken
	}

	owner, err := s.sessions.Consume(ctx, claims.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.logger.WithField("user_id", claims.UserID).Warn("refresh token reuse detected, revoking sessions")
		if err := s.sessions.RevokeAll(ctx, claims.UserID); err != nil {
			return nil, fmt.Errorf("revoke sessions after reuse: %w", err)
		}
		return nil, ErrInvalidRefreshToken
	}
	if owner != claims.UserID {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	return s.startSession(ctx, user)
}

func (s *authService) Authenticate(accessToken string) (string, error) {
	claims, err := s.tokens.Verify(accessToken, auth.KindAccess)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return claims.UserID, nil
}

func (s *authService) RevokeSessions(ctx context.Context, userID string) error {
	return s.sessions.RevokeAll(ctx, userID)
}

func (s *authService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, fields repository.Fields) (*domain.User, error) {
	if len(fields) == 0 {
		return s.Profile(ctx, userID)
	}
	user, err := s.users.UpdateProfile(ctx, userID, fields)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// ChangePassword also revokes every refresh session of the user.
func (s *authService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < minPasswordLength {
		return domain.Errorf(domain.ErrValidation, "password must be at least %d characters", minPasswordLength)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return domain.Errorf(domain.ErrValidation, "current password is incorrect")
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	return s.sessions.RevokeAll(ctx, userID)
}

func (s *authService) startSession(ctx context.Context, user *domain.User) (*Session, error) {
	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, domain.RefreshSession{
		ID:        refresh.ID,
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return &Session{User: sanitizeUser(user), Access: access, Refresh: refresh}, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Bio:       user.Bio,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

package repository

import (
	"context"

	"learnpath/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, fields Fields) (*domain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// RefreshTokenStore tracks issued refresh tokens so they can be rotated
// and revoked.
type RefreshTokenStore interface {
	Save(ctx context.Context, session domain.RefreshSession) error
	// Consume atomically removes the session and returns its owner. It
	// fails with domain.ErrNotFound when the session is unknown, already
	// consumed, or expired.
	Consume(ctx context.Context, id string) (string, error)
	RevokeAll(ctx context.Context, userID string) error
}

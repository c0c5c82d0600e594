package domain

import "time"

// User represents an account of the learning tracker.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Bio          string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshSession is the server-side record of an issued refresh token.
// Its ID is the token's jti claim.
type RefreshSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

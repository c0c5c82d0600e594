package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createRefreshTokensTable = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
`

// RefreshTokenRepository persists refresh sessions keyed by token id.
type RefreshTokenRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRefreshTokenRepository(db *sql.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, now: time.Now}
}

func (r *RefreshTokenRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRefreshTokensTable); err != nil {
		return fmt.Errorf("create refresh_tokens table: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Save(ctx context.Context, session domain.RefreshSession) error {
	created := session.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.ExpiresAt.Unix(), created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// Consume deletes the session in the same statement that reads it, so a
// token id can be redeemed at most once.
func (r *RefreshTokenRepository) Consume(ctx context.Context, id string) (string, error) {
	var (
		userID  string
		expires int64
	)
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM refresh_tokens WHERE id = ? RETURNING user_id, expires_at`, id,
	).Scan(&userID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("refresh token %s: %w", id, domain.ErrNotFound)
		}
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	if r.now().Unix() >= expires {
		return "", fmt.Errorf("refresh token %s expired: %w", id, domain.ErrNotFound)
	}
	return userID, nil
}

func (r *RefreshTokenRepository) RevokeAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions that can no longer be redeemed.
func (r *RefreshTokenRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens rows affected: %w", err)
	}
	return n, nil
}

var _ repository.RefreshTokenStore = (*RefreshTokenRepository)(nil)

package sqlite

import (
	"database/sql"
	"time"

	"learnpath/internal/domain"
)

const createAchievementsTable = `
CREATE TABLE IF NOT EXISTS achievements (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	code TEXT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	unlocked_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (user_id, code)
);
`

func NewAchievementRepository(db *sql.DB) *OwnedStore[domain.Achievement] {
	return NewOwnedStore(db, Table[domain.Achievement]{
		Name:    "achievements",
		Schema:  createAchievementsTable,
		Owner:   Direct("user_id"),
		Columns: []string{"code", "title", "description", "icon", "unlocked_at"},
		Mutable: []string{"title", "description", "icon"},
		OrderBy: "unlocked_at DESC, rowid DESC",
		Stamp: func(a *domain.Achievement, id, userID string, now time.Time) {
			a.ID, a.UserID, a.CreatedAt, a.UpdatedAt = id, userID, now, now
			if a.UnlockedAt.IsZero() {
				a.UnlockedAt = now
			}
			a.UnlockedAt = a.UnlockedAt.UTC()
		},
		Values: func(a *domain.Achievement) []any {
			return []any{nullString(a.Code), a.Title, a.Description, a.Icon, a.UnlockedAt}
		},
		Scan: scanAchievement,
	})
}

func scanAchievement(s rowScanner) (*domain.Achievement, error) {
	var (
		a    domain.Achievement
		code sql.NullString
	)
	if err := s.Scan(
		&a.ID,
		&a.UserID,
		&code,
		&a.Title,
		&a.Description,
		&a.Icon,
		&a.UnlockedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Code = stringPtr(code)
	return &a, nil
}

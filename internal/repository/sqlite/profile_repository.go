package sqlite

import (
	"database/sql"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createSettingsTable = `
CREATE TABLE IF NOT EXISTS user_settings (
	user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	theme TEXT NOT NULL DEFAULT 'system',
	daily_goal_minutes INTEGER NOT NULL DEFAULT 30,
	weekly_goal_minutes INTEGER NOT NULL DEFAULT 210,
	email_notifications INTEGER NOT NULL DEFAULT 1,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	updated_at DATETIME NOT NULL
);
`

const createProgressTable = `
CREATE TABLE IF NOT EXISTS user_progress (
	user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	level INTEGER NOT NULL DEFAULT 1,
	experience INTEGER NOT NULL DEFAULT 0,
	current_focus TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL
);
`

func NewSettingsRepository(db *sql.DB) *SingletonStore[domain.Settings] {
	return NewSingletonStore(db, SingletonTable[domain.Settings]{
		Name:    "user_settings",
		Schema:  createSettingsTable,
		Columns: []string{"theme", "daily_goal_minutes", "weekly_goal_minutes", "email_notifications", "timezone"},
		Mutable: []string{"theme", "daily_goal_minutes", "weekly_goal_minutes", "email_notifications", "timezone"},
		Scan: func(s rowScanner) (*domain.Settings, error) {
			var st domain.Settings
			if err := s.Scan(
				&st.UserID,
				&st.Theme,
				&st.DailyGoalMinutes,
				&st.WeeklyGoalMinutes,
				&st.EmailNotifications,
				&st.Timezone,
				&st.UpdatedAt,
			); err != nil {
				return nil, err
			}
			return &st, nil
		},
	})
}

func NewProgressRepository(db *sql.DB) *SingletonStore[domain.Progress] {
	return NewSingletonStore(db, SingletonTable[domain.Progress]{
		Name:    "user_progress",
		Schema:  createProgressTable,
		Columns: []string{"level", "experience", "current_focus"},
		Mutable: []string{"level", "experience", "current_focus"},
		Scan: func(s rowScanner) (*domain.Progress, error) {
			var p domain.Progress
			if err := s.Scan(&p.UserID, &p.Level, &p.Experience, &p.CurrentFocus, &p.UpdatedAt); err != nil {
				return nil, err
			}
			return &p, nil
		},
	})
}

var (
	_ repository.Singleton[domain.Settings] = (*SingletonStore[domain.Settings])(nil)
	_ repository.Singleton[domain.Progress] = (*SingletonStore[domain.Progress])(nil)
)

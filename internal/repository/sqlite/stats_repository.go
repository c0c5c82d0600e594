package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createLearningStatsTable = `
CREATE TABLE IF NOT EXISTS learning_stats (
	user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	total_minutes INTEGER NOT NULL DEFAULT 0,
	current_streak INTEGER NOT NULL DEFAULT 0,
	longest_streak INTEGER NOT NULL DEFAULT 0,
	last_active_date TEXT NULL,
	tasks_completed INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_learning_stats_last_active ON learning_stats(last_active_date);
`

// nextStreak evaluates to the streak after activity on the bound day.
// It takes three arguments, all the activity day.
const nextStreak = `CASE
	WHEN last_active_date IS NULL THEN 1
	WHEN ? <= last_active_date THEN MAX(current_streak, 1)
	WHEN last_active_date = date(?, '-1 day') THEN current_streak + 1
	ELSE 1
END`

// StatsRepository keeps learning statistics and automatic achievements.
// Dates are calendar days formatted as domain.DateLayout, which compare
// correctly as text.
type StatsRepository struct {
	*SingletonStore[domain.LearningStats]
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{SingletonStore: NewSingletonStore(db, SingletonTable[domain.LearningStats]{
		Name:    "learning_stats",
		Schema:  createLearningStatsTable,
		Columns: []string{"total_minutes", "current_streak", "longest_streak", "last_active_date", "tasks_completed"},
		Mutable: []string{"total_minutes", "current_streak", "longest_streak"},
		Scan:    scanLearningStats,
	})}
}

// RecordActivity adds minutes and advances the streak in one statement.
// Activity on an earlier or the same day leaves the streak unchanged.
func (r *StatsRepository) RecordActivity(ctx context.Context, userID string, minutes int, day string) (*domain.LearningStats, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
UPDATE learning_stats
SET total_minutes = total_minutes + ?,
	current_streak = %[1]s,
	longest_streak = MAX(longest_streak, %[1]s),
	last_active_date = CASE WHEN last_active_date IS NULL OR ? > last_active_date THEN ? ELSE last_active_date END,
	updated_at = ?
WHERE user_id = ?`, nextStreak)

	res, err := r.db.ExecContext(ctx, query,
		minutes,
		day, day,
		day, day,
		day, day,
		r.now().UTC(),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}
	if err := expectRow(res, "learning_stats", userID); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

func (r *StatsRepository) IncrementTasksCompleted(ctx context.Context, userID string) (*domain.LearningStats, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE learning_stats SET tasks_completed = tasks_completed + 1, updated_at = ? WHERE user_id = ?`,
		r.now().UTC(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("increment tasks completed: %w", err)
	}
	if err := expectRow(res, "learning_stats", userID); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

func (r *StatsRepository) AdjustMinutes(ctx context.Context, userID string, delta int) (*domain.LearningStats, error) {
	if err := r.ensure(ctx, userID); err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE learning_stats SET total_minutes = MAX(total_minutes + ?, 0), updated_at = ? WHERE user_id = ?`,
		delta, r.now().UTC(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("adjust minutes: %w", err)
	}
	if err := expectRow(res, "learning_stats", userID); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// ResetStaleStreaks zeroes the streak of every user whose last activity
// is strictly before the given day.
func (r *StatsRepository) ResetStaleStreaks(ctx context.Context, before string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE learning_stats
SET current_streak = 0, updated_at = ?
WHERE current_streak > 0 AND (last_active_date IS NULL OR last_active_date < ?)`,
		r.now().UTC(), before,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale streaks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale streaks rows affected: %w", err)
	}
	return n, nil
}

// UnlockAchievement inserts an automatic achievement once per code. It
// reports whether the achievement was new.
func (r *StatsRepository) UnlockAchievement(ctx context.Context, userID string, a *domain.Achievement) (bool, error) {
	if a.Code == nil || *a.Code == "" {
		return false, fmt.Errorf("unlock achievement: missing code")
	}
	now := r.now().UTC()
	a.ID, a.UserID, a.CreatedAt, a.UpdatedAt = uuid.NewString(), userID, now, now
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = now
	}
	res, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO achievements (id, user_id, code, title, description, icon, unlocked_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, userID, *a.Code, a.Title, a.Description, a.Icon, a.UnlockedAt.UTC(), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlock achievement rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *StatsRepository) Summary(ctx context.Context, userID string) (*domain.ProgressSummary, error) {
	var s domain.ProgressSummary
	err := r.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM roadmaps WHERE user_id = ?),
	(SELECT COUNT(*) FROM roadmaps WHERE user_id = ? AND status = 'completed'),
	(SELECT COUNT(*) FROM tasks WHERE user_id = ?),
	(SELECT COUNT(*) FROM tasks WHERE user_id = ? AND status = 'done'),
	(SELECT COUNT(*) FROM milestones WHERE roadmap_id IN (SELECT id FROM roadmaps WHERE user_id = ?)),
	(SELECT COUNT(*) FROM milestones WHERE status = 'completed' AND roadmap_id IN (SELECT id FROM roadmaps WHERE user_id = ?)),
	(SELECT COUNT(*) FROM resources WHERE user_id = ?),
	(SELECT COUNT(*) FROM resources WHERE user_id = ? AND is_completed = 1),
	(SELECT COALESCE(SUM(minutes), 0) FROM time_logs WHERE task_id IN (SELECT id FROM tasks WHERE user_id = ?)),
	(SELECT COUNT(*) FROM achievements WHERE user_id = ?)`,
		userID, userID, userID, userID, userID, userID, userID, userID, userID, userID,
	).Scan(
		&s.Roadmaps,
		&s.CompletedRoadmaps,
		&s.Tasks,
		&s.CompletedTasks,
		&s.Milestones,
		&s.CompletedMilestones,
		&s.Resources,
		&s.CompletedResources,
		&s.MinutesLogged,
		&s.Achievements,
	)
	if err != nil {
		return nil, fmt.Errorf("progress summary: %w", err)
	}
	return &s, nil
}

func scanLearningStats(s rowScanner) (*domain.LearningStats, error) {
	var (
		st   domain.LearningStats
		last sql.NullString
	)
	if err := s.Scan(
		&st.UserID,
		&st.TotalMinutes,
		&st.CurrentStreak,
		&st.LongestStreak,
		&last,
		&st.TasksCompleted,
		&st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st.LastActiveDate = stringPtr(last)
	return &st, nil
}

var _ repository.StatsRepository = (*StatsRepository)(nil)

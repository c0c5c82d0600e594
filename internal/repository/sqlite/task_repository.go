package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	roadmap_id TEXT NULL REFERENCES roadmaps(id) ON DELETE SET NULL,
	milestone_id TEXT NULL REFERENCES milestones(id) ON DELETE SET NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo',
	priority TEXT NOT NULL DEFAULT 'medium',
	due_date DATETIME NULL,
	estimated_minutes INTEGER NOT NULL DEFAULT 0,
	completed_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_roadmap_id ON tasks(roadmap_id);
`

const createTimeLogsTable = `
CREATE TABLE IF NOT EXISTS time_logs (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	minutes INTEGER NOT NULL CHECK (minutes > 0),
	note TEXT NOT NULL DEFAULT '',
	logged_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_time_logs_task_id ON time_logs(task_id, logged_at);
`

// TaskRepository is the owned task store plus completion bookkeeping.
type TaskRepository struct {
	*OwnedStore[domain.Task]
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{OwnedStore: NewOwnedStore(db, Table[domain.Task]{
		Name:    "tasks",
		Schema:  createTasksTable,
		Owner:   Direct("user_id"),
		Columns: []string{"roadmap_id", "milestone_id", "title", "description", "status", "priority", "due_date", "estimated_minutes", "completed_at"},
		Mutable: []string{"roadmap_id", "milestone_id", "title", "description", "status", "priority", "due_date", "estimated_minutes"},
		Filters: []string{"roadmap_id", "milestone_id", "status", "priority"},
		Refs: map[string]Ref{
			"roadmap_id":   roadmapRef,
			"milestone_id": {Table: "milestones", Owner: Through("roadmap_id", "roadmaps")},
		},
		OrderBy: "created_at DESC, rowid DESC",
		Stamp: func(t *domain.Task, id, userID string, now time.Time) {
			t.ID, t.UserID, t.CreatedAt, t.UpdatedAt = id, userID, now, now
			if t.Status == "" {
				t.Status = domain.TaskStatusTodo
			}
			if t.Priority == "" {
				t.Priority = "medium"
			}
		},
		Values: func(t *domain.Task) []any {
			return []any{
				nullString(t.RoadmapID),
				nullString(t.MilestoneID),
				t.Title,
				t.Description,
				string(t.Status),
				t.Priority,
				nullTime(t.DueDate),
				t.EstimatedMinutes,
				nullTime(t.CompletedAt),
			}
		},
		Scan: scanTask,
	})}
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, userID, id string) (bool, error) {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET completed_at = ?, updated_at = ?
WHERE id = ? AND user_id = ? AND completed_at IS NULL`,
		now,
		now,
		id,
		userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark task completed: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("task completed rows affected: %w", err)
	}
	return aff == 1, nil
}

func scanTask(s rowScanner) (*domain.Task, error) {
	var (
		t                   domain.Task
		status              string
		roadmapID, mileID   sql.NullString
		dueDate, completeAt sql.NullTime
	)
	if err := s.Scan(
		&t.ID,
		&t.UserID,
		&roadmapID,
		&mileID,
		&t.Title,
		&t.Description,
		&status,
		&t.Priority,
		&dueDate,
		&t.EstimatedMinutes,
		&completeAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	t.RoadmapID = stringPtr(roadmapID)
	t.MilestoneID = stringPtr(mileID)
	t.DueDate = timePtr(dueDate)
	t.CompletedAt = timePtr(completeAt)
	return &t, nil
}

func NewTimeLogRepository(db *sql.DB) *OwnedStore[domain.TimeLog] {
	return NewOwnedStore(db, Table[domain.TimeLog]{
		Name:    "time_logs",
		Schema:  createTimeLogsTable,
		Owner:   Through("task_id", "tasks"),
		Columns: []string{"task_id", "minutes", "note", "logged_at"},
		Mutable: []string{"minutes", "note", "logged_at"},
		Filters: []string{"task_id"},
		Refs:    map[string]Ref{"task_id": {Table: "tasks", Owner: Direct("user_id")}},
		OrderBy: "logged_at DESC, rowid DESC",
		Stamp: func(l *domain.TimeLog, id, _ string, now time.Time) {
			l.ID, l.CreatedAt, l.UpdatedAt = id, now, now
			if l.LoggedAt.IsZero() {
				l.LoggedAt = now
			}
			l.LoggedAt = l.LoggedAt.UTC()
		},
		Values: func(l *domain.TimeLog) []any {
			return []any{l.TaskID, l.Minutes, l.Note, l.LoggedAt}
		},
		Scan: scanTimeLog,
	})
}

func scanTimeLog(s rowScanner) (*domain.TimeLog, error) {
	var l domain.TimeLog
	if err := s.Scan(
		&l.ID,
		&l.TaskID,
		&l.Minutes,
		&l.Note,
		&l.LoggedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

var (
	_ repository.TaskRepository        = (*TaskRepository)(nil)
	_ repository.Owned[domain.TimeLog] = (*OwnedStore[domain.TimeLog])(nil)
)

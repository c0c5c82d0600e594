package repository

import (
	"context"

	"learnpath/internal/domain"
)

// Fields carries a partial update or a list filter keyed by column name.
// Only the keys present are written or matched.
type Fields map[string]any

// IfNull as an update value writes Value only when the column is NULL.
type IfNull struct {
	Value any
}

// Owned is the persistence contract shared by every user-owned entity.
// Every method is scoped by userID; rows owned by someone else behave
// exactly like rows that do not exist (domain.ErrNotFound).
type Owned[T any] interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, userID string, entity *T) error
	List(ctx context.Context, userID string, filter Fields) ([]T, error)
	Get(ctx context.Context, userID, id string) (*T, error)
	Update(ctx context.Context, userID, id string, fields Fields) (*T, error)
	Delete(ctx context.Context, userID, id string) error
}

// Singleton is the contract for 1:1 per-user records. Get creates the
// record with defaults on first access.
type Singleton[T any] interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, userID string) (*T, error)
	Update(ctx context.Context, userID string, fields Fields) (*T, error)
}

// TaskRepository adds completion bookkeeping to the owned task store.
type TaskRepository interface {
	Owned[domain.Task]
	// MarkCompleted stamps completedAt once. It reports false when the
	// task was already completed before.
	MarkCompleted(ctx context.Context, userID, id string) (bool, error)
}

// ResourceRepository adds attachment bookkeeping to the owned resource store.
type ResourceRepository interface {
	Owned[domain.Resource]
	SetAttachment(ctx context.Context, userID, id string, key *string) error
}

// StatsRepository maintains the learning statistics derived from activity.
type StatsRepository interface {
	Singleton[domain.LearningStats]
	RecordActivity(ctx context.Context, userID string, minutes int, day string) (*domain.LearningStats, error)
	IncrementTasksCompleted(ctx context.Context, userID string) (*domain.LearningStats, error)
	// AdjustMinutes shifts totalMinutes by delta without touching the
	// streak. The total never drops below zero.
	AdjustMinutes(ctx context.Context, userID string, delta int) (*domain.LearningStats, error)
	ResetStaleStreaks(ctx context.Context, before string) (int64, error)
	UnlockAchievement(ctx context.Context, userID string, achievement *domain.Achievement) (bool, error)
	Summary(ctx context.Context, userID string) (*domain.ProgressSummary, error)
}

package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// milestone is an achievement unlocked automatically once its condition holds.
type milestone struct {
	code        string
	title       string
	description string
	icon        string
	reached     func(st *domain.LearningStats) bool
}

var builtinAchievements = []milestone{
	{"first-log", "First step", "Logged study time for the first time", "footprints",
		func(st *domain.LearningStats) bool { return st.TotalMinutes > 0 }},
	{"streak-7", "On a roll", "Studied seven days in a row", "flame",
		func(st *domain.LearningStats) bool { return st.CurrentStreak >= 7 }},
	{"streak-30", "Habit formed", "Studied thirty days in a row", "calendar",
		func(st *domain.LearningStats) bool { return st.CurrentStreak >= 30 }},
	{"hours-10", "Ten hours", "Logged ten hours of study", "clock",
		func(st *domain.LearningStats) bool { return st.TotalMinutes >= 10*60 }},
	{"hours-100", "Hundred hours", "Logged one hundred hours of study", "trophy",
		func(st *domain.LearningStats) bool { return st.TotalMinutes >= 100*60 }},
	{"tasks-10", "Getting things done", "Completed ten tasks", "check",
		func(st *domain.LearningStats) bool { return st.TasksCompleted >= 10 }},
}

// StatsService derives learning statistics and achievements from activity.
// The activity hooks never return errors: a failed stats update must not
// fail the request that produced the activity.
type StatsService struct {
	stats  repository.StatsRepository
	tasks  repository.TaskRepository
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewStatsService(stats repository.StatsRepository, tasks repository.TaskRepository, logger logrus.FieldLogger) *StatsService {
	return &StatsService{stats: stats, tasks: tasks, logger: logger, now: time.Now}
}

// TimeLogged adds the log's minutes and advances the streak for the day
// the time was logged (UTC).
func (s *StatsService) TimeLogged(ctx context.Context, userID string, log *domain.TimeLog) {
	day := log.LoggedAt.UTC().Format(domain.DateLayout)
	st, err := s.stats.RecordActivity(ctx, userID, log.Minutes, day)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("record activity")
		return
	}
	s.unlock(ctx, userID, st)
}

// TimeLogChanged applies the minute difference of an edited log. Streaks
// only follow newly created logs.
func (s *StatsService) TimeLogChanged(ctx context.Context, userID string, before, after *domain.TimeLog) {
	s.adjustMinutes(ctx, userID, after.Minutes-before.Minutes)
}

// TimeLogRemoved takes the minutes of a deleted log off the total.
func (s *StatsService) TimeLogRemoved(ctx context.Context, userID string, log *domain.TimeLog) {
	s.adjustMinutes(ctx, userID, -log.Minutes)
}

func (s *StatsService) adjustMinutes(ctx context.Context, userID string, delta int) {
	if delta == 0 {
		return
	}
	st, err := s.stats.AdjustMinutes(ctx, userID, delta)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("adjust logged minutes")
		return
	}
	s.unlock(ctx, userID, st)
}

// TaskDone stamps the completion time once and counts the task.
func (s *StatsService) TaskDone(ctx context.Context, userID, taskID string) {
	first, err := s.tasks.MarkCompleted(ctx, userID, taskID)
	if err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Error("mark task completed")
		return
	}
	if !first {
		return
	}
	st, err := s.stats.IncrementTasksCompleted(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("count completed task")
		return
	}
	s.unlock(ctx, userID, st)
}

// ResetStaleStreaks zeroes streaks of users inactive since before yesterday.
func (s *StatsService) ResetStaleStreaks(ctx context.Context) (int64, error) {
	yesterday := s.now().UTC().AddDate(0, 0, -1).Format(domain.DateLayout)
	return s.stats.ResetStaleStreaks(ctx, yesterday)
}

func (s *StatsService) Summary(ctx context.Context, userID string) (*domain.ProgressSummary, error) {
	return s.stats.Summary(ctx, userID)
}

func (s *StatsService) unlock(ctx context.Context, userID string, st *domain.LearningStats) {
	for _, m := range builtinAchievements {
		if !m.reached(st) {
			continue
		}
		code := m.code
		added, err := s.stats.UnlockAchievement(ctx, userID, &domain.Achievement{
			Code:        &code,
			Title:       m.title,
			Description: m.description,
			Icon:        m.icon,
		})
		if err != nil {
			s.logger.WithError(err).WithField("code", code).Error("unlock achievement")
			continue
		}
		if added {
			s.logger.WithFields(logrus.Fields{"user_id": userID, "code": code}).Info("achievement unlocked")
		}
	}
}

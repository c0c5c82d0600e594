package domain

import "time"

// Achievement is a badge owned by a user. Code is set for achievements
// unlocked automatically and is unique per user.
type Achievement struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Code        *string   `json:"code,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	UnlockedAt  time.Time `json:"unlockedAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LearningStats aggregates a user's activity. LastActiveDate is a calendar
// day formatted as DateLayout.
type LearningStats struct {
	UserID         string    `json:"userId"`
	TotalMinutes   int       `json:"totalMinutes"`
	CurrentStreak  int       `json:"currentStreak"`
	LongestStreak  int       `json:"longestStreak"`
	LastActiveDate *string   `json:"lastActiveDate,omitempty"`
	TasksCompleted int       `json:"tasksCompleted"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DateLayout is the calendar-day format used for streak bookkeeping.
const DateLayout = "2006-01-02"

type Settings struct {
	UserID             string    `json:"userId"`
	Theme              string    `json:"theme"`
	DailyGoalMinutes   int       `json:"dailyGoalMinutes"`
	WeeklyGoalMinutes  int       `json:"weeklyGoalMinutes"`
	EmailNotifications bool      `json:"emailNotifications"`
	Timezone           string    `json:"timezone"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type Progress struct {
	UserID       string    `json:"userId"`
	Level        int       `json:"level"`
	Experience   int       `json:"experience"`
	CurrentFocus string    `json:"currentFocus"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProgressSummary is computed from the user's owned rows on demand.
type ProgressSummary struct {
	Roadmaps            int `json:"roadmaps"`
	CompletedRoadmaps   int `json:"completedRoadmaps"`
	Tasks               int `json:"tasks"`
	CompletedTasks      int `json:"completedTasks"`
	Milestones          int `json:"milestones"`
	CompletedMilestones int `json:"completedMilestones"`
	Resources           int `json:"resources"`
	CompletedResources  int `json:"completedResources"`
	MinutesLogged       int `json:"minutesLogged"`
	Achievements        int `json:"achievements"`
}

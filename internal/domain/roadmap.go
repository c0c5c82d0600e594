package domain

import "time"

const (
	RoadmapStatusNotStarted = "not_started"
	RoadmapStatusInProgress = "in_progress"
	RoadmapStatusCompleted  = "completed"
	RoadmapStatusArchived   = "archived"
)

const (
	MilestoneStatusPending    = "pending"
	MilestoneStatusInProgress = "in_progress"
	MilestoneStatusCompleted  = "completed"
)

// Roadmap is a user's learning plan.
type Roadmap struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Difficulty  string     `json:"difficulty"`
	Status      string     `json:"status"`
	IsPublic    bool       `json:"isPublic"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Milestone is a checkpoint inside a roadmap. It is owned through its roadmap.
type Milestone struct {
	ID          string     `json:"id"`
	RoadmapID   string     `json:"roadmapId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

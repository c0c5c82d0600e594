package domain

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// Task is a unit of study work, optionally attached to a roadmap and milestone.
type Task struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	RoadmapID        *string    `json:"roadmapId,omitempty"`
	MilestoneID      *string    `json:"milestoneId,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Status           TaskStatus `json:"status"`
	Priority         string     `json:"priority"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TimeLog records minutes spent on a task. It is owned through its task.
type TimeLog struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Minutes   int       `json:"minutes"`
	Note      string    `json:"note"`
	LoggedAt  time.Time `json:"loggedAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

package domain

import "time"

// Resource is a learning material (article, video, book...) saved by a user.
type Resource struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	RoadmapID     *string   `json:"roadmapId,omitempty"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Type          string    `json:"type"`
	Notes         string    `json:"notes"`
	IsCompleted   bool      `json:"isCompleted"`
	AttachmentKey *string   `json:"attachmentKey,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Tag is a per-user label.
type Tag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Skill is shared reference data. Every user can read skills; only the
// creator may change or remove one.
type Skill struct {
	ID          string    `json:"id"`
	CreatedBy   string    `json:"createdBy"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

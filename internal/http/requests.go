package http

import (
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// Update requests use pointer fields: nil means "leave unchanged". For
// optional references an empty string detaches the row.

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func userToResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=1024"`
	Name     string `json:"name" binding:"omitempty,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type profileRequest struct {
	Name      *string `json:"name" binding:"omitempty,max=100"`
	Bio       *string `json:"bio" binding:"omitempty,max=2000"`
	AvatarURL *string `json:"avatarUrl" binding:"omitempty,max=2048"`
}

func (r *profileRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "name", r.Name)
	setIf(f, "bio", r.Bio)
	setIf(f, "avatar_url", r.AvatarURL)
	return f
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=1024"`
}

type createRoadmapRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=5000"`
	Category    string     `json:"category" binding:"max=100"`
	Difficulty  string     `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced"`
	Status      string     `json:"status" binding:"omitempty,oneof=not_started in_progress completed archived"`
	IsPublic    bool       `json:"isPublic"`
	TargetDate  *time.Time `json:"targetDate"`
}

func (r *createRoadmapRequest) entity() *domain.Roadmap {
	return &domain.Roadmap{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Difficulty:  r.Difficulty,
		Status:      r.Status,
		IsPublic:    r.IsPublic,
		TargetDate:  utc(r.TargetDate),
	}
}

type updateRoadmapRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=5000"`
	Category    *string    `json:"category" binding:"omitempty,max=100"`
	Difficulty  *string    `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced"`
	Status      *string    `json:"status" binding:"omitempty,oneof=not_started in_progress completed archived"`
	IsPublic    *bool      `json:"isPublic"`
	TargetDate  *time.Time `json:"targetDate"`
}

func (r *updateRoadmapRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "title", r.Title)
	setIf(f, "description", r.Description)
	setIf(f, "category", r.Category)
	setIf(f, "difficulty", r.Difficulty)
	setIf(f, "status", r.Status)
	setIf(f, "is_public", r.IsPublic)
	if r.TargetDate != nil {
		f["target_date"] = *utc(r.TargetDate)
	}
	return f
}

type createMilestoneRequest struct {
	RoadmapID   string     `json:"roadmapId" binding:"required"`
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=5000"`
	Position    int        `json:"position" binding:"gte=0"`
	Status      string     `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	DueDate     *time.Time `json:"dueDate"`
}

func (r *createMilestoneRequest) entity() *domain.Milestone {
	m := &domain.Milestone{
		RoadmapID:   r.RoadmapID,
		Title:       r.Title,
		Description: r.Description,
		Position:    r.Position,
		Status:      r.Status,
		DueDate:     utc(r.DueDate),
	}
	if m.Status == domain.MilestoneStatusCompleted {
		now := time.Now().UTC()
		m.CompletedAt = &now
	}
	return m
}

type updateMilestoneRequest struct {
	Title       *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string    `json:"description" binding:"omitempty,max=5000"`
	Position    *int       `json:"position" binding:"omitempty,gte=0"`
	Status      *string    `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	DueDate     *time.Time `json:"dueDate"`
}

func (r *updateMilestoneRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "title", r.Title)
	setIf(f, "description", r.Description)
	setIf(f, "position", r.Position)
	setIf(f, "status", r.Status)
	if r.Status != nil {
		if *r.Status == domain.MilestoneStatusCompleted {
			f["completed_at"] = repository.IfNull{Value: time.Now().UTC()}
		} else {
			f["completed_at"] = nil
		}
	}
	if r.DueDate != nil {
		f["due_date"] = *utc(r.DueDate)
	}
	return f
}

type createTaskRequest struct {
	RoadmapID        *string    `json:"roadmapId"`
	MilestoneID      *string    `json:"milestoneId"`
	Title            string     `json:"title" binding:"required,max=200"`
	Description      string     `json:"description" binding:"max=5000"`
	Status           string     `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority         string     `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate          *time.Time `json:"dueDate"`
	EstimatedMinutes int        `json:"estimatedMinutes" binding:"gte=0"`
}

func (r *createTaskRequest) entity() *domain.Task {
	return &domain.Task{
		RoadmapID:        r.RoadmapID,
		MilestoneID:      r.MilestoneID,
		Title:            r.Title,
		Description:      r.Description,
		Status:           domain.TaskStatus(r.Status),
		Priority:         r.Priority,
		DueDate:          utc(r.DueDate),
		EstimatedMinutes: r.EstimatedMinutes,
	}
}

type updateTaskRequest struct {
	RoadmapID        *string    `json:"roadmapId"`
	MilestoneID      *string    `json:"milestoneId"`
	Title            *string    `json:"title" binding:"omitempty,min=1,max=200"`
	Description      *string    `json:"description" binding:"omitempty,max=5000"`
	Status           *string    `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority         *string    `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate          *time.Time `json:"dueDate"`
	EstimatedMinutes *int       `json:"estimatedMinutes" binding:"omitempty,gte=0"`
}

func (r *updateTaskRequest) fields() repository.Fields {
	f := repository.Fields{}
	setRef(f, "roadmap_id", r.RoadmapID)
	setRef(f, "milestone_id", r.MilestoneID)
	setIf(f, "title", r.Title)
	setIf(f, "description", r.Description)
	setIf(f, "status", r.Status)
	setIf(f, "priority", r.Priority)
	setIf(f, "estimated_minutes", r.EstimatedMinutes)
	if r.DueDate != nil {
		f["due_date"] = *utc(r.DueDate)
	}
	return f
}

type createTimeLogRequest struct {
	TaskID   string     `json:"taskId" binding:"required"`
	Minutes  int        `json:"minutes" binding:"required,gt=0,lte=1440"`
	Note     string     `json:"note" binding:"max=2000"`
	LoggedAt *time.Time `json:"loggedAt"`
}

func (r *createTimeLogRequest) entity() *domain.TimeLog {
	l := &domain.TimeLog{TaskID: r.TaskID, Minutes: r.Minutes, Note: r.Note}
	if r.LoggedAt != nil {
		l.LoggedAt = r.LoggedAt.UTC()
	}
	return l
}

type updateTimeLogRequest struct {
	Minutes  *int       `json:"minutes" binding:"omitempty,gt=0,lte=1440"`
	Note     *string    `json:"note" binding:"omitempty,max=2000"`
	LoggedAt *time.Time `json:"loggedAt"`
}

func (r *updateTimeLogRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "minutes", r.Minutes)
	setIf(f, "note", r.Note)
	if r.LoggedAt != nil {
		f["logged_at"] = *utc(r.LoggedAt)
	}
	return f
}

type createResourceRequest struct {
	RoadmapID   *string `json:"roadmapId"`
	Title       string  `json:"title" binding:"required,max=200"`
	URL         string  `json:"url" binding:"omitempty,url,max=2048"`
	Type        string  `json:"type" binding:"omitempty,oneof=article video book course documentation other"`
	Notes       string  `json:"notes" binding:"max=5000"`
	IsCompleted bool    `json:"isCompleted"`
}

func (r *createResourceRequest) entity() *domain.Resource {
	return &domain.Resource{
		RoadmapID:   r.RoadmapID,
		Title:       r.Title,
		URL:         r.URL,
		Type:        r.Type,
		Notes:       r.Notes,
		IsCompleted: r.IsCompleted,
	}
}

type updateResourceRequest struct {
	RoadmapID   *string `json:"roadmapId"`
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	URL         *string `json:"url" binding:"omitempty,url,max=2048"`
	Type        *string `json:"type" binding:"omitempty,oneof=article video book course documentation other"`
	Notes       *string `json:"notes" binding:"omitempty,max=5000"`
	IsCompleted *bool   `json:"isCompleted"`
}

func (r *updateResourceRequest) fields() repository.Fields {
	f := repository.Fields{}
	setRef(f, "roadmap_id", r.RoadmapID)
	setIf(f, "title", r.Title)
	setIf(f, "url", r.URL)
	setIf(f, "type", r.Type)
	setIf(f, "notes", r.Notes)
	setIf(f, "is_completed", r.IsCompleted)
	return f
}

type createTagRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}

func (r *createTagRequest) entity() *domain.Tag {
	return &domain.Tag{Name: r.Name, Color: r.Color}
}

type updateTagRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=50"`
	Color *string `json:"color" binding:"omitempty,hexcolor"`
}

func (r *updateTagRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "name", r.Name)
	setIf(f, "color", r.Color)
	return f
}

type createSkillRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Category    string `json:"category" binding:"max=100"`
	Description string `json:"description" binding:"max=2000"`
}

func (r *createSkillRequest) entity() *domain.Skill {
	return &domain.Skill{Name: r.Name, Category: r.Category, Description: r.Description}
}

type updateSkillRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Category    *string `json:"category" binding:"omitempty,max=100"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

func (r *updateSkillRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "name", r.Name)
	setIf(f, "category", r.Category)
	setIf(f, "description", r.Description)
	return f
}

type createAchievementRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=2000"`
	Icon        string     `json:"icon" binding:"max=100"`
	UnlockedAt  *time.Time `json:"unlockedAt"`
}

func (r *createAchievementRequest) entity() *domain.Achievement {
	a := &domain.Achievement{Title: r.Title, Description: r.Description, Icon: r.Icon}
	if r.UnlockedAt != nil {
		a.UnlockedAt = r.UnlockedAt.UTC()
	}
	return a
}

type updateAchievementRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Icon        *string `json:"icon" binding:"omitempty,max=100"`
}

func (r *updateAchievementRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "title", r.Title)
	setIf(f, "description", r.Description)
	setIf(f, "icon", r.Icon)
	return f
}

type updateSettingsRequest struct {
	Theme              *string `json:"theme" binding:"omitempty,oneof=light dark system"`
	DailyGoalMinutes   *int    `json:"dailyGoalMinutes" binding:"omitempty,gte=0,lte=1440"`
	WeeklyGoalMinutes  *int    `json:"weeklyGoalMinutes" binding:"omitempty,gte=0,lte=10080"`
	EmailNotifications *bool   `json:"emailNotifications"`
	Timezone           *string `json:"timezone" binding:"omitempty,timezone"`
}

func (r *updateSettingsRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "theme", r.Theme)
	setIf(f, "daily_goal_minutes", r.DailyGoalMinutes)
	setIf(f, "weekly_goal_minutes", r.WeeklyGoalMinutes)
	setIf(f, "email_notifications", r.EmailNotifications)
	setIf(f, "timezone", r.Timezone)
	return f
}

type updateProgressRequest struct {
	Level        *int    `json:"level" binding:"omitempty,gte=1"`
	Experience   *int    `json:"experience" binding:"omitempty,gte=0"`
	CurrentFocus *string `json:"currentFocus" binding:"omitempty,max=200"`
}

func (r *updateProgressRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "level", r.Level)
	setIf(f, "experience", r.Experience)
	setIf(f, "current_focus", r.CurrentFocus)
	return f
}

type updateStatsRequest struct {
	TotalMinutes  *int `json:"totalMinutes" binding:"omitempty,gte=0"`
	CurrentStreak *int `json:"currentStreak" binding:"omitempty,gte=0"`
	LongestStreak *int `json:"longestStreak" binding:"omitempty,gte=0"`
}

func (r *updateStatsRequest) fields() repository.Fields {
	f := repository.Fields{}
	setIf(f, "total_minutes", r.TotalMinutes)
	setIf(f, "current_streak", r.CurrentStreak)
	setIf(f, "longest_streak", r.LongestStreak)
	return f
}

func setIf[V any](f repository.Fields, column string, v *V) {
	if v != nil {
		f[column] = *v
	}
}

// setRef stores an optional reference; an empty id clears it.
func setRef(f repository.Fields, column string, v *string) {
	if v == nil {
		return
	}
	if *v == "" {
		f[column] = nil
		return
	}
	f[column] = *v
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

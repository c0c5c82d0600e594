package sqlite

import (
	"database/sql"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createRoadmapsTable = `
CREATE TABLE IF NOT EXISTS roadmaps (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	difficulty TEXT NOT NULL DEFAULT 'beginner',
	status TEXT NOT NULL DEFAULT 'not_started',
	is_public INTEGER NOT NULL DEFAULT 0,
	target_date DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_roadmaps_user_id ON roadmaps(user_id, created_at);
`

const createMilestonesTable = `
CREATE TABLE IF NOT EXISTS milestones (
	id TEXT PRIMARY KEY,
	roadmap_id TEXT NOT NULL REFERENCES roadmaps(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	due_date DATETIME NULL,
	completed_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_milestones_roadmap_id ON milestones(roadmap_id, position);
`

var roadmapRef = Ref{Table: "roadmaps", Owner: Direct("user_id")}

func NewRoadmapRepository(db *sql.DB) *OwnedStore[domain.Roadmap] {
	return NewOwnedStore(db, Table[domain.Roadmap]{
		Name:    "roadmaps",
		Schema:  createRoadmapsTable,
		Owner:   Direct("user_id"),
		Columns: []string{"title", "description", "category", "difficulty", "status", "is_public", "target_date"},
		Mutable: []string{"title", "description", "category", "difficulty", "status", "is_public", "target_date"},
		Filters: []string{"status", "category", "difficulty"},
		OrderBy: "created_at DESC, rowid DESC",
		Stamp: func(r *domain.Roadmap, id, userID string, now time.Time) {
			r.ID, r.UserID, r.CreatedAt, r.UpdatedAt = id, userID, now, now
			if r.Difficulty == "" {
				r.Difficulty = "beginner"
			}
			if r.Status == "" {
				r.Status = domain.RoadmapStatusNotStarted
			}
		},
		Values: func(r *domain.Roadmap) []any {
			return []any{r.Title, r.Description, r.Category, r.Difficulty, r.Status, r.IsPublic, nullTime(r.TargetDate)}
		},
		Scan: scanRoadmap,
	})
}

func scanRoadmap(s rowScanner) (*domain.Roadmap, error) {
	var (
		r      domain.Roadmap
		target sql.NullTime
	)
	if err := s.Scan(
		&r.ID,
		&r.UserID,
		&r.Title,
		&r.Description,
		&r.Category,
		&r.Difficulty,
		&r.Status,
		&r.IsPublic,
		&target,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.TargetDate = timePtr(target)
	return &r, nil
}

func NewMilestoneRepository(db *sql.DB) *OwnedStore[domain.Milestone] {
	return NewOwnedStore(db, Table[domain.Milestone]{
		Name:    "milestones",
		Schema:  createMilestonesTable,
		Owner:   Through("roadmap_id", "roadmaps"),
		Columns: []string{"roadmap_id", "title", "description", "position", "status", "due_date", "completed_at"},
		Mutable: []string{"title", "description", "position", "status", "due_date", "completed_at"},
		Filters: []string{"roadmap_id", "status"},
		Refs:    map[string]Ref{"roadmap_id": roadmapRef},
		OrderBy: "position ASC, created_at ASC",
		Stamp: func(m *domain.Milestone, id, _ string, now time.Time) {
			m.ID, m.CreatedAt, m.UpdatedAt = id, now, now
			if m.Status == "" {
				m.Status = domain.MilestoneStatusPending
			}
		},
		Values: func(m *domain.Milestone) []any {
			return []any{m.RoadmapID, m.Title, m.Description, m.Position, m.Status, nullTime(m.DueDate), nullTime(m.CompletedAt)}
		},
		Scan: scanMilestone,
	})
}

func scanMilestone(s rowScanner) (*domain.Milestone, error) {
	var (
		m         domain.Milestone
		due, done sql.NullTime
	)
	if err := s.Scan(
		&m.ID,
		&m.RoadmapID,
		&m.Title,
		&m.Description,
		&m.Position,
		&m.Status,
		&due,
		&done,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.DueDate = timePtr(due)
	m.CompletedAt = timePtr(done)
	return &m, nil
}

var (
	_ repository.Owned[domain.Roadmap]   = (*OwnedStore[domain.Roadmap])(nil)
	_ repository.Owned[domain.Milestone] = (*OwnedStore[domain.Milestone])(nil)
)

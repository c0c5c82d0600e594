package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createResourcesTable = `
CREATE TABLE IF NOT EXISTS resources (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	roadmap_id TEXT NULL REFERENCES roadmaps(id) ON DELETE SET NULL,
	title TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'other',
	notes TEXT NOT NULL DEFAULT '',
	is_completed INTEGER NOT NULL DEFAULT 0,
	attachment_key TEXT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resources_user_id ON resources(user_id, created_at);
`

const createTagsTable = `
CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (user_id, name)
);
`

const createSkillsTable = `
CREATE TABLE IF NOT EXISTS skills (
	id TEXT PRIMARY KEY,
	created_by TEXT NOT NULL REFERENCES users(id),
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// ResourceRepository is the owned resource store plus attachment bookkeeping.
type ResourceRepository struct {
	*OwnedStore[domain.Resource]
}

func NewResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{OwnedStore: NewOwnedStore(db, Table[domain.Resource]{
		Name:    "resources",
		Schema:  createResourcesTable,
		Owner:   Direct("user_id"),
		Columns: []string{"roadmap_id", "title", "url", "type", "notes", "is_completed", "attachment_key"},
		Mutable: []string{"roadmap_id", "title", "url", "type", "notes", "is_completed"},
		Filters: []string{"roadmap_id", "type", "is_completed"},
		Refs:    map[string]Ref{"roadmap_id": roadmapRef},
		OrderBy: "created_at DESC, rowid DESC",
		Stamp: func(r *domain.Resource, id, userID string, now time.Time) {
			r.ID, r.UserID, r.CreatedAt, r.UpdatedAt = id, userID, now, now
			if r.Type == "" {
				r.Type = "other"
			}
		},
		Values: func(r *domain.Resource) []any {
			return []any{nullString(r.RoadmapID), r.Title, r.URL, r.Type, r.Notes, r.IsCompleted, nullString(r.AttachmentKey)}
		},
		Scan: scanResource,
	})}
}

// SetAttachment records (or clears, with a nil key) the stored object of a resource.
func (r *ResourceRepository) SetAttachment(ctx context.Context, userID, id string, key *string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE resources
SET attachment_key = ?, updated_at = ?
WHERE id = ? AND user_id = ?`,
		nullString(key),
		r.now().UTC(),
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("set resource attachment: %w", err)
	}
	return expectRow(res, "resources", id)
}

func scanResource(s rowScanner) (*domain.Resource, error) {
	var (
		r                   domain.Resource
		roadmapID, attachID sql.NullString
	)
	if err := s.Scan(
		&r.ID,
		&r.UserID,
		&roadmapID,
		&r.Title,
		&r.URL,
		&r.Type,
		&r.Notes,
		&r.IsCompleted,
		&attachID,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.RoadmapID = stringPtr(roadmapID)
	r.AttachmentKey = stringPtr(attachID)
	return &r, nil
}

func NewTagRepository(db *sql.DB) *OwnedStore[domain.Tag] {
	return NewOwnedStore(db, Table[domain.Tag]{
		Name:    "tags",
		Schema:  createTagsTable,
		Owner:   Direct("user_id"),
		Columns: []string{"name", "color"},
		Mutable: []string{"name", "color"},
		Filters: []string{"name"},
		OrderBy: "created_at DESC, rowid DESC",
		Stamp: func(t *domain.Tag, id, userID string, now time.Time) {
			t.ID, t.UserID, t.CreatedAt, t.UpdatedAt = id, userID, now, now
		},
		Values: func(t *domain.Tag) []any { return []any{t.Name, t.Color} },
		Scan: func(s rowScanner) (*domain.Tag, error) {
			var t domain.Tag
			if err := s.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt); err != nil {
				return nil, err
			}
			return &t, nil
		},
	})
}

// NewSkillRepository backs the shared skill catalog: reads are global,
// writes are limited to the creating user.
func NewSkillRepository(db *sql.DB) *OwnedStore[domain.Skill] {
	return NewOwnedStore(db, Table[domain.Skill]{
		Name:        "skills",
		Schema:      createSkillsTable,
		Owner:       Direct("created_by"),
		Columns:     []string{"name", "category", "description"},
		Mutable:     []string{"name", "category", "description"},
		Filters:     []string{"category"},
		OrderBy:     "name ASC",
		SharedReads: true,
		Stamp: func(sk *domain.Skill, id, userID string, now time.Time) {
			sk.ID, sk.CreatedBy, sk.CreatedAt, sk.UpdatedAt = id, userID, now, now
		},
		Values: func(sk *domain.Skill) []any { return []any{sk.Name, sk.Category, sk.Description} },
		Scan: func(s rowScanner) (*domain.Skill, error) {
			var sk domain.Skill
			if err := s.Scan(&sk.ID, &sk.CreatedBy, &sk.Name, &sk.Category, &sk.Description, &sk.CreatedAt, &sk.UpdatedAt); err != nil {
				return nil, err
			}
			return &sk, nil
		},
	})
}

var (
	_ repository.ResourceRepository = (*ResourceRepository)(nil)
	_ repository.Owned[domain.Tag]   = (*OwnedStore[domain.Tag])(nil)
	_ repository.Owned[domain.Skill] = (*OwnedStore[domain.Skill])(nil)
)

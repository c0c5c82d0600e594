package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// SingletonTable describes a 1:1 per-user table keyed by user_id. Column
// defaults in Schema provide the initial values. Scan receives user_id,
// Columns and updated_at in that order.
type SingletonTable[T any] struct {
	Name    string
	Schema  string
	Columns []string
	Mutable []string
	Scan    func(s rowScanner) (*T, error)
}

type SingletonStore[T any] struct {
	db    *sql.DB
	table SingletonTable[T]
	now   func() time.Time
}

func NewSingletonStore[T any](db *sql.DB, table SingletonTable[T]) *SingletonStore[T] {
	return &SingletonStore[T]{db: db, table: table, now: time.Now}
}

func (s *SingletonStore[T]) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.table.Schema); err != nil {
		return fmt.Errorf("create %s table: %w", s.table.Name, err)
	}
	return nil
}

func (s *SingletonStore[T]) ensure(ctx context.Context, userID string) error {
	query := fmt.Sprintf("INSERT INTO %s (user_id, updated_at) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING", s.table.Name)
	if _, err := s.db.ExecContext(ctx, query, userID, s.now().UTC()); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "foreign key") {
			return fmt.Errorf("%s for user %s: %w", s.table.Name, userID, domain.ErrNotFound)
		}
		return fmt.Errorf("ensure %s: %w", s.table.Name, err)
	}
	return nil
}

func (s *SingletonStore[T]) Get(ctx context.Context, userID string) (*T, error) {
	if err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT user_id, %s, updated_at FROM %s WHERE user_id = ?",
		strings.Join(s.table.Columns, ", "), s.table.Name)
	item, err := s.table.Scan(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s for user %s: %w", s.table.Name, userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan %s: %w", s.table.Name, err)
	}
	return item, nil
}

func (s *SingletonStore[T]) Update(ctx context.Context, userID string, fields repository.Fields) (*T, error) {
	if err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}
	var (
		sets []string
		args []any
	)
	for _, key := range sortedKeys(fields) {
		if !contains(s.table.Mutable, key) {
			return nil, fmt.Errorf("update %s: column %q is not mutable", s.table.Name, key)
		}
		sets = append(sets, key+" = ?")
		args = append(args, fields[key])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().UTC(), userID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE user_id = ?", s.table.Name, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", s.table.Name, err)
	}
	if err := expectRow(res, s.table.Name, userID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

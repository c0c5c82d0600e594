package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

// Ownership describes how rows of a table lead back to their user.
type Ownership struct {
	// Column holds the user id for directly owned tables, or the parent
	// foreign key for nested tables.
	Column string
	// Parent is the directly owned table Column points to. Empty for
	// direct ownership.
	Parent string
}

func Direct(column string) Ownership { return Ownership{Column: column} }

func Through(column, parent string) Ownership { return Ownership{Column: column, Parent: parent} }

func (o Ownership) nested() bool { return o.Parent != "" }

// predicate takes exactly one argument: the user id.
func (o Ownership) predicate() string {
	if !o.nested() {
		return o.Column + " = ?"
	}
	return fmt.Sprintf("%s IN (SELECT id FROM %s WHERE user_id = ?)", o.Column, o.Parent)
}

// Ref points a foreign key column at another owned table.
type Ref struct {
	Table string
	Owner Ownership
}

// exists takes two arguments: the referenced id and the user id.
func (r Ref) exists() string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE id = ? AND %s)", r.Table, r.Owner.predicate())
}

// Table describes how an entity maps onto its sqlite table.
//
// Selected columns are, in order: id, the owner column for directly owned
// tables, Columns, created_at, updated_at. Scan must follow that order and
// Values must follow Columns.
type Table[T any] struct {
	Name    string
	Schema  string
	Owner   Ownership
	Columns []string
	// Mutable lists the columns an update may touch.
	Mutable []string
	// Filters lists the columns List may filter on by equality.
	Filters []string
	// Refs lists foreign keys that must point at rows owned by the same user.
	Refs    map[string]Ref
	OrderBy string
	// SharedReads makes Get and List ignore ownership. Writes stay scoped.
	SharedReads bool

	Stamp  func(e *T, id, userID string, now time.Time)
	Values func(e *T) []any
	Scan   func(s rowScanner) (*T, error)
}

func (t *Table[T]) selectColumns() string {
	cols := []string{"id"}
	if !t.Owner.nested() {
		cols = append(cols, t.Owner.Column)
	}
	cols = append(cols, t.Columns...)
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

// OwnedStore implements repository.Owned for any Table. Every read and write
// is a single statement whose WHERE clause carries the ownership check, so
// "missing" and "owned by someone else" are the same zero-row outcome.
type OwnedStore[T any] struct {
	db    *sql.DB
	table Table[T]
	now   func() time.Time
}

func NewOwnedStore[T any](db *sql.DB, table Table[T]) *OwnedStore[T] {
	return &OwnedStore[T]{db: db, table: table, now: time.Now}
}

func (s *OwnedStore[T]) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.table.Schema); err != nil {
		return fmt.Errorf("create %s table: %w", s.table.Name, err)
	}
	return nil
}

func (s *OwnedStore[T]) Create(ctx context.Context, userID string, entity *T) error {
	t := &s.table
	id := uuid.NewString()
	now := s.now().UTC()
	t.Stamp(entity, id, userID, now)

	cols := []string{"id"}
	args := []any{id}
	if !t.Owner.nested() {
		cols = append(cols, t.Owner.Column)
		args = append(args, userID)
	}
	values := t.Values(entity)
	cols = append(cols, t.Columns...)
	args = append(args, values...)
	cols = append(cols, "created_at", "updated_at")
	args = append(args, now, now)

	var conds []string
	for i, col := range t.Columns {
		ref, ok := t.Refs[col]
		if !ok {
			continue
		}
		if col != t.Owner.Column && !present(values[i]) {
			continue
		}
		conds = append(conds, ref.exists())
		args = append(args, values[i], userID)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s",
		t.Name, strings.Join(cols, ", "), placeholders(len(cols)))
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Errorf(domain.ErrConflict, "%s already exists", singular(t.Name))
		}
		return fmt.Errorf("insert %s: %w", t.Name, err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s insert rows affected: %w", t.Name, err)
	}
	if aff == 0 {
		return fmt.Errorf("insert %s: referenced row: %w", t.Name, domain.ErrNotFound)
	}
	return nil
}

func (s *OwnedStore[T]) List(ctx context.Context, userID string, filter repository.Fields) ([]T, error) {
	t := &s.table
	var (
		conds []string
		args  []any
	)
	if !t.SharedReads {
		conds = append(conds, t.Owner.predicate())
		args = append(args, userID)
	}
	for _, key := range sortedKeys(filter) {
		if !contains(t.Filters, key) {
			return nil, fmt.Errorf("list %s: unsupported filter %q", t.Name, key)
		}
		conds = append(conds, key+" = ?")
		args = append(args, filter[key])
	}

	query := fmt.Sprintf("SELECT %s FROM %s", t.selectColumns(), t.Name)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if t.OrderBy != "" {
		query += " ORDER BY " + t.OrderBy
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.Name, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := t.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.Name, err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *OwnedStore[T]) Get(ctx context.Context, userID, id string) (*T, error) {
	t := &s.table
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.selectColumns(), t.Name)
	args := []any{id}
	if !t.SharedReads {
		query += " AND " + t.Owner.predicate()
		args = append(args, userID)
	}

	item, err := t.Scan(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", singular(t.Name), id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan %s: %w", t.Name, err)
	}
	return item, nil
}

// Update writes only the supplied fields in one conditional statement.
func (s *OwnedStore[T]) Update(ctx context.Context, userID, id string, fields repository.Fields) (*T, error) {
	t := &s.table
	var (
		sets  []string
		args  []any
		conds = []string{"id = ?", t.Owner.predicate()}
	)
	for _, key := range sortedKeys(fields) {
		if !contains(t.Mutable, key) {
			return nil, fmt.Errorf("update %s: column %q is not mutable", t.Name, key)
		}
		if v, ok := fields[key].(repository.IfNull); ok {
			sets = append(sets, fmt.Sprintf("%s = COALESCE(%s, ?)", key, key))
			args = append(args, v.Value)
			continue
		}
		sets = append(sets, key+" = ?")
		args = append(args, fields[key])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().UTC())
	args = append(args, id, userID)

	for _, key := range sortedKeys(fields) {
		if ref, ok := t.Refs[key]; ok && present(fields[key]) {
			conds = append(conds, ref.exists())
			args = append(args, fields[key], userID)
		}
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		t.Name, strings.Join(sets, ", "), strings.Join(conds, " AND "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Errorf(domain.ErrConflict, "%s already exists", singular(t.Name))
		}
		return nil, fmt.Errorf("update %s: %w", t.Name, err)
	}
	if err := expectRow(res, t.Name, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

func (s *OwnedStore[T]) Delete(ctx context.Context, userID, id string) error {
	t := &s.table
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ? AND %s", t.Name, t.Owner.predicate())
	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.Name, err)
	}
	return expectRow(res, t.Name, id)
}

func expectRow(res sql.Result, table, id string) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", table, err)
	}
	if aff == 0 {
		return fmt.Errorf("%s %s: %w", singular(table), id, domain.ErrNotFound)
	}
	return nil
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case *string:
		return x != nil && *x != ""
	default:
		return true
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedKeys(fields repository.Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func singular(table string) string {
	switch {
	case strings.HasSuffix(table, "ies"):
		return strings.TrimSuffix(table, "ies") + "y"
	case strings.HasSuffix(table, "s"):
		return strings.TrimSuffix(table, "s")
	default:
		return table
	}
}

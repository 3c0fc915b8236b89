package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Store persists one record kind in its own table.
type Store[T any] struct {
	db     DBTX
	schema *Schema[T]
	sql    statements
	now    func() time.Time
}

// NewStore binds a schema to a database connection.
func NewStore[T any](db DBTX, schema *Schema[T]) *Store[T] {
	return &Store[T]{
		db:     db,
		schema: schema,
		sql:    buildStatements(schema.Info.Table, schema.FieldSpecs),
		now:    time.Now,
	}
}

// Upsert normalizes the payload and creates or replaces the record with its id.
// A payload without an id creates a new record. The stored row is returned.
func (s *Store[T]) Upsert(ctx context.Context, p Payload) (T, error) {
	var zero T

	rec := s.schema.Normalize(p)
	values := s.schema.Values(rec)
	if err := s.schema.validate(values); err != nil {
		return zero, err
	}

	id := p.ID()
	if id == "" {
		id = NewID()
	}
	now := s.now().UTC()

	args := make([]any, 0, len(values)+3)
	args = append(args, id)
	args = append(args, values...)
	args = append(args, now, now)

	rows, err := s.db.Query(ctx, s.sql.upsert, args...)
	if err != nil {
		return zero, fmt.Errorf("upsert %s: %w", s.schema.Info.Key, err)
	}
	stored, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if err != nil {
		return zero, fmt.Errorf("upsert %s: %w", s.schema.Info.Key, err)
	}
	return stored, nil
}

// List returns every record, newest date first.
func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	rows, err := s.db.Query(ctx, s.sql.list)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.schema.Info.Key, err)
	}
	recs, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.schema.Info.Key, err)
	}
	if recs == nil {
		recs = []T{}
	}
	return recs, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	rows, err := s.db.Query(ctx, s.sql.get, id)
	if err != nil {
		return zero, fmt.Errorf("get %s %q: %w", s.schema.Info.Key, id, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, fmt.Errorf("get %s %q: %w", s.schema.Info.Key, id, ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("get %s %q: %w", s.schema.Info.Key, id, err)
	}
	return rec, nil
}

// Remove deletes the record with the given id.
// Returns false without error when no such record exists.
func (s *Store[T]) Remove(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, s.sql.remove, id)
	if err != nil {
		return false, fmt.Errorf("remove %s %q: %w", s.schema.Info.Key, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Clear deletes every record of the kind.
func (s *Store[T]) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.sql.clear); err != nil {
		return fmt.Errorf("clear %s: %w", s.schema.Info.Key, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, s.sql.count).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", s.schema.Info.Key, err)
	}
	return n, nil
}

// Export renders the current list as CSV.
func (s *Store[T]) Export(ctx context.Context) ([]byte, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Project(s.schema.CSVHeader, s.schema.Rows(recs)), nil
}

// EnsureTable creates the kind's table if it does not exist.
func (s *Store[T]) EnsureTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.sql.createTable); err != nil {
		return fmt.Errorf("create table %s: %w", s.schema.Info.Table, err)
	}
	return nil
}

package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// validate rejects records whose required fields normalized to empty text.
// values must be in FieldSpecs order.
func (s *Schema[T]) validate(values []any) error {
	for i, spec := range s.FieldSpecs {
		if !spec.Required || i >= len(values) {
			continue
		}
		if text, ok := values[i].(string); ok && text == "" {
			return fmt.Errorf("%w: required field %q is empty", ErrInvalidPayload, spec.Name)
		}
	}
	return nil
}

// Canonical normalizes a payload and stamps it with meta, producing the
// client-facing record the store would return for the same write.
func (s *Schema[T]) Canonical(p Payload, meta Meta) (T, error) {
	rec := s.Normalize(p)
	if err := s.validate(s.Values(rec)); err != nil {
		var zero T
		return zero, err
	}
	*s.Meta(&rec) = meta
	return rec, nil
}

// Rows converts records to CSV rows.
func (s *Schema[T]) Rows(recs []T) [][]string {
	rows := make([][]string, len(recs))
	for i, rec := range recs {
		rows[i] = s.CSVRow(rec)
	}
	return rows
}

// Define erases the record type of a schema so it can be registered.
func Define[T any](s *Schema[T]) TableDefinition {
	return TableDefinition{
		Info:       s.Info,
		FieldSpecs: s.FieldSpecs,
		Open: func(db DBTX) Collection {
			return collection[T]{store: NewStore(db, s)}
		},
		Canonical: func(p Payload, meta Meta) (Document, error) {
			rec, err := s.Canonical(p, meta)
			if err != nil {
				return nil, err
			}
			return json.Marshal(rec)
		},
		Project: func(docs []Document) ([]byte, error) {
			recs := make([]T, 0, len(docs))
			for _, doc := range docs {
				p, err := ParsePayload(doc)
				if err != nil {
					return nil, fmt.Errorf("project %s: %w", s.Info.Key, err)
				}
				recs = append(recs, s.Normalize(p))
			}
			return Project(s.CSVHeader, s.Rows(recs)), nil
		},
	}
}

// collection adapts a typed Store to the kind-erased Collection interface.
type collection[T any] struct {
	store *Store[T]
}

func (c collection[T]) Info() TableInfo { return c.store.schema.Info }

func (c collection[T]) Upsert(ctx context.Context, p Payload) (any, error) {
	return c.store.Upsert(ctx, p)
}

func (c collection[T]) List(ctx context.Context) (any, error) {
	return c.store.List(ctx)
}

func (c collection[T]) Get(ctx context.Context, id string) (any, error) {
	return c.store.Get(ctx, id)
}

func (c collection[T]) Remove(ctx context.Context, id string) (bool, error) {
	return c.store.Remove(ctx, id)
}

func (c collection[T]) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c collection[T]) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}

func (c collection[T]) Export(ctx context.Context) ([]byte, error) {
	return c.store.Export(ctx)
}

func (c collection[T]) EnsureTable(ctx context.Context) error {
	return c.store.EnsureTable(ctx)
}

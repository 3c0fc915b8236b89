// Package core provides the record persistence layer for the ledger.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// FieldType represents the stored data type of a record field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldNumeric
)

// FieldSpec describes a single persisted field of a record kind.
// The id and timestamp columns are implicit and never listed.
type FieldSpec struct {
	Name     string    // Client-facing JSON name: "orderNumber"
	Aliases  []string  // Alternative payload spellings, tried in order after Name
	DBColumn string    // Database column name (if different from Name, otherwise derived)
	Type     FieldType // Stored data type
	Required bool      // Upserts with an empty value are rejected
}

// Column returns the database column for the field.
func (f FieldSpec) Column() string {
	if f.DBColumn != "" {
		return f.DBColumn
	}
	return toDBColumnName(f.Name)
}

// TableInfo contains display information about a record kind.
type TableInfo struct {
	Key   string // Kind key used in URLs and datasets: "expenses"
	Table string // Database table: "expenses"
	Label string // Display name: "Expenses"

	// Attachments allows files to be stored against records of the kind.
	Attachments bool
}

// Meta holds the store-assigned identity and timestamps shared by every record.
// Record types embed it so pgx can scan the implicit columns by name.
type Meta struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Document is a record encoded in its client-facing JSON shape.
type Document = json.RawMessage

// Dataset is a bundle of client-facing records keyed by kind, as shipped
// with the client and as accepted by Seed.
type Dataset map[string][]Document

// Schema declares everything the store, projector and client mirror need
// to know about one record kind of type T.
type Schema[T any] struct {
	Info       TableInfo
	FieldSpecs []FieldSpec

	// Normalize maps an arbitrary payload to a canonical record, applying
	// defaults, coercion and alias resolution. It never fails.
	Normalize func(p Payload) T

	// Values returns the record's field values in FieldSpecs order.
	Values func(rec T) []any

	// Meta exposes the embedded identity and timestamps of a record.
	Meta func(rec *T) *Meta

	CSVHeader []string
	CSVRow    func(rec T) []string
}

// Collection is a kind-erased view of a Store, used by the transport
// layer, seeding and administrative operations.
type Collection interface {
	Info() TableInfo
	Upsert(ctx context.Context, p Payload) (any, error)
	List(ctx context.Context) (any, error)
	Get(ctx context.Context, id string) (any, error)
	Remove(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	Export(ctx context.Context) ([]byte, error)
	EnsureTable(ctx context.Context) error
}

// OpenFunc binds a record kind to a database connection.
type OpenFunc func(db DBTX) Collection

// CanonicalFunc normalizes a payload into a client-facing document stamped
// with the given identity and timestamps.
type CanonicalFunc func(p Payload, meta Meta) (Document, error)

// ProjectFunc renders client-facing documents as CSV.
type ProjectFunc func(docs []Document) ([]byte, error)

// TableDefinition contains everything needed to serve one record kind.
// It is built from a Schema by Define, which erases the record type.
type TableDefinition struct {
	Info       TableInfo
	FieldSpecs []FieldSpec
	Open       OpenFunc
	Canonical  CanonicalFunc
	Project    ProjectFunc
}

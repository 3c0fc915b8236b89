package core

import (
	"fmt"
	"strings"
)

// Implicit columns present in every record table.
const (
	colID        = "id"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
	colDate      = "date"
)

// statements holds the SQL for one record table, built once per Store.
type statements struct {
	createTable string
	upsert      string
	list        string
	get         string
	remove      string
	clear       string
	count       string
}

func buildStatements(table string, specs []FieldSpec) statements {
	t := quoteIdentifier(table)
	cols := selectColumns(specs)

	return statements{
		createTable: createTableSQL(table, specs),
		upsert:      upsertSQL(table, specs),
		list:        fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", cols, t, orderBy(specs)),
		get:         fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", cols, t, quoteIdentifier(colID)),
		remove:      fmt.Sprintf("DELETE FROM %s WHERE %s = $1", t, quoteIdentifier(colID)),
		clear:       fmt.Sprintf("DELETE FROM %s", t),
		count:       fmt.Sprintf("SELECT COUNT(*) FROM %s", t),
	}
}

// columnNames returns every column in storage order: id, fields, timestamps.
func columnNames(specs []FieldSpec) []string {
	names := make([]string, 0, len(specs)+3)
	names = append(names, colID)
	for _, spec := range specs {
		names = append(names, spec.Column())
	}
	return append(names, colCreatedAt, colUpdatedAt)
}

func selectColumns(specs []FieldSpec) string {
	names := columnNames(specs)
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}

// upsertSQL builds an insert that merges on id. Every field and updated_at
// are replaced on conflict; created_at keeps its original value.
func upsertSQL(table string, specs []FieldSpec) string {
	names := columnNames(specs)
	placeholders := make([]string, len(names))
	for i := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, 0, len(specs)+1)
	for _, spec := range specs {
		col := quoteIdentifier(spec.Column())
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	updated := quoteIdentifier(colUpdatedAt)
	sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", updated, updated))

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s",
		quoteIdentifier(table),
		selectColumns(specs),
		strings.Join(placeholders, ", "),
		quoteIdentifier(colID),
		strings.Join(sets, ", "),
		selectColumns(specs),
	)
}

// orderBy sorts newest first: date, then last update, then id.
func orderBy(specs []FieldSpec) string {
	var keys []string
	for _, spec := range specs {
		if spec.Type == FieldDate {
			keys = append(keys, quoteIdentifier(spec.Column())+" DESC")
			break
		}
	}
	keys = append(keys,
		quoteIdentifier(colUpdatedAt)+" DESC",
		quoteIdentifier(colID)+" DESC",
	)
	return strings.Join(keys, ", ")
}

func createTableSQL(table string, specs []FieldSpec) string {
	defs := make([]string, 0, len(specs)+3)
	defs = append(defs, quoteIdentifier(colID)+" TEXT PRIMARY KEY")
	for _, spec := range specs {
		defs = append(defs, quoteIdentifier(spec.Column())+" "+columnType(spec.Type))
	}
	defs = append(defs,
		quoteIdentifier(colCreatedAt)+" TIMESTAMPTZ NOT NULL DEFAULT now()",
		quoteIdentifier(colUpdatedAt)+" TIMESTAMPTZ NOT NULL DEFAULT now()",
	)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdentifier(table), strings.Join(defs, ", "))
}

func columnType(t FieldType) string {
	switch t {
	case FieldNumeric:
		return "DOUBLE PRECISION NOT NULL DEFAULT 0"
	default:
		// Dates stay text; they are sorted lexically and never validated.
		return "TEXT NOT NULL DEFAULT ''"
	}
}

// quoteIdentifier safely quotes a PostgreSQL identifier to prevent SQL injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

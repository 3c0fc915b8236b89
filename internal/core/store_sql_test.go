package core

import (
	"strings"
	"testing"
)

var testSpecs = []FieldSpec{
	{Name: "date", Type: FieldDate, Required: true},
	{Name: "orderNumber", DBColumn: "order_number", Type: FieldText},
	{Name: "total", Type: FieldNumeric},
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"expenses", `"expenses"`},
		{"order_number", `"order_number"`},
		{`weird"name`, `"weird""name"`},
	}

	for _, tt := range tests {
		if got := quoteIdentifier(tt.input); got != tt.want {
			t.Errorf("quoteIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestColumnNames(t *testing.T) {
	got := strings.Join(columnNames(testSpecs), ",")
	want := "id,date,order_number,total,created_at,updated_at"
	if got != want {
		t.Errorf("columnNames() = %q, want %q", got, want)
	}
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("expenses", testSpecs)

	want := `INSERT INTO "expenses" ("id", "date", "order_number", "total", "created_at", "updated_at") ` +
		`VALUES ($1, $2, $3, $4, $5, $6) ` +
		`ON CONFLICT ("id") DO UPDATE SET "date" = EXCLUDED."date", "order_number" = EXCLUDED."order_number", ` +
		`"total" = EXCLUDED."total", "updated_at" = EXCLUDED."updated_at" ` +
		`RETURNING "id", "date", "order_number", "total", "created_at", "updated_at"`
	if got != want {
		t.Errorf("upsertSQL()\n got: %s\nwant: %s", got, want)
	}

	if strings.Contains(got, `"created_at" = EXCLUDED`) {
		t.Error("upsert must not overwrite created_at")
	}
}

func TestBuildStatements(t *testing.T) {
	stmts := buildStatements("expenses", testSpecs)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "list orders newest first",
			got:  stmts.list,
			want: `SELECT "id", "date", "order_number", "total", "created_at", "updated_at" FROM "expenses" ` +
				`ORDER BY "date" DESC, "updated_at" DESC, "id" DESC`,
		},
		{
			name: "get by id",
			got:  stmts.get,
			want: `SELECT "id", "date", "order_number", "total", "created_at", "updated_at" FROM "expenses" WHERE "id" = $1`,
		},
		{
			name: "remove by id",
			got:  stmts.remove,
			want: `DELETE FROM "expenses" WHERE "id" = $1`,
		},
		{
			name: "clear",
			got:  stmts.clear,
			want: `DELETE FROM "expenses"`,
		},
		{
			name: "count",
			got:  stmts.count,
			want: `SELECT COUNT(*) FROM "expenses"`,
		},
		{
			name: "create table",
			got:  stmts.createTable,
			want: `CREATE TABLE IF NOT EXISTS "expenses" ("id" TEXT PRIMARY KEY, ` +
				`"date" TEXT NOT NULL DEFAULT '', "order_number" TEXT NOT NULL DEFAULT '', ` +
				`"total" DOUBLE PRECISION NOT NULL DEFAULT 0, ` +
				`"created_at" TIMESTAMPTZ NOT NULL DEFAULT now(), "updated_at" TIMESTAMPTZ NOT NULL DEFAULT now())`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("\n got: %s\nwant: %s", tt.got, tt.want)
			}
		})
	}
}

func TestOrderBy_NoDateField(t *testing.T) {
	got := orderBy([]FieldSpec{{Name: "notes"}})
	want := `"updated_at" DESC, "id" DESC`
	if got != want {
		t.Errorf("orderBy() = %q, want %q", got, want)
	}
}

// Package core holds the ledger's record model and persistence.
//
// # Record Kinds
//
// Each record kind (income, expenses, payroll) is declared once as a
// [Schema] and registered at init time with [Register]. [Define] erases the
// record type so the rest of the system works with [TableDefinition] values:
//
//	core.Register(core.Define(&core.Schema[Payroll]{
//	    Info:       core.TableInfo{Key: "payroll", Table: "payroll", Label: "Payroll"},
//	    FieldSpecs: payrollFields,
//	    Normalize:  normalizePayroll,
//	    ...
//	}))
//
// # Store
//
// [Store] persists one kind in one table. Upsert merges on id and keeps the
// original creation time; List returns records by date, then last update,
// then id, all descending. The implicit id, created_at and updated_at
// columns are never listed in a schema.
//
// # Payload Coercion
//
// Writes accept loose JSON. [Payload] resolves field aliases and coerces
// values so that normalization never fails; only required fields that end
// up empty are rejected with [ErrInvalidPayload].
//
// # Projection
//
// [Project] renders rows as CSV with minimal quoting and a trailing newline.
// Amounts are formatted with [FormatAmount].
//
// # Seeding
//
// [Service.Seed] loads a [Dataset] into kinds whose tables are empty.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - REC001-REC004: Record errors (not found, invalid payload, unknown kind)
//   - DB004-DB007: Database availability errors
//   - REQ001-REQ002: Cancelled or timed-out requests
//   - RATE001: Rate limiting
package core

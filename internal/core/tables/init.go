// Package tables registers the ledger's record kinds with the core registry.
// Import it for side effects wherever records are read or written.
package tables

import "github.com/FireMarshmellow/Mellow-labs-dashboard/internal/core"

// Fields shared by every kind.
var dateField = core.FieldSpec{Name: "date", Type: core.FieldDate, Required: true}

func text(name string, aliases ...string) core.FieldSpec {
	return core.FieldSpec{Name: name, Aliases: aliases, Type: core.FieldText}
}

func number(name string, aliases ...string) core.FieldSpec {
	return core.FieldSpec{Name: name, Aliases: aliases, Type: core.FieldNumeric}
}

// column overrides the derived column name.
func column(spec core.FieldSpec, col string) core.FieldSpec {
	spec.DBColumn = col
	return spec
}

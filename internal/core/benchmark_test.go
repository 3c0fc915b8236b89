package core

import (
	"fmt"
	"testing"
)

// ============================================================================
// Coercion Benchmarks
// ============================================================================

// BenchmarkParseAmount benchmarks amount parsing.
// Every numeric field of every upsert goes through it.
func BenchmarkParseAmount(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"$1,234.56",
		"(123.45)",     // Accounting negative
		"1,234,567.89", // Thousands separators
		"  999.99  ",   // Whitespace
		"£1234.56",     // Pound
		"not a number",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			ParseAmount(tc)
		}
	}
}

// BenchmarkParseAmount_Simple benchmarks the most common case: plain integers.
func BenchmarkParseAmount_Simple(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ParseAmount("12345")
	}
}

// BenchmarkFormatAmount benchmarks two-decimal rendering used by exports.
func BenchmarkFormatAmount(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FormatAmount(1234.5)
	}
}

// ============================================================================
// Payload Benchmarks
// ============================================================================

// BenchmarkPayloadAliases benchmarks alias resolution when the
// canonical name is missing and the last alias holds the value.
func BenchmarkPayloadAliases(b *testing.B) {
	p, err := ParsePayload([]byte(`{"date":"2024-01-01","order_number":"A-1","price":"$12.50"}`))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Text("orderNumber", "order_number")
		p.Number("total", "price")
	}
}

// BenchmarkParsePayload benchmarks validating and indexing a request body.
func BenchmarkParsePayload(b *testing.B) {
	body := []byte(`{"id":"abc","date":"2024-01-01","seller":"Shop","items":"PLA, PETG","total":42.5,"notes":"say \"hi\""}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParsePayload(body); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Projection Benchmarks
// ============================================================================

// BenchmarkProject benchmarks CSV rendering of a year of daily records.
func BenchmarkProject(b *testing.B) {
	header := []string{"Date", "Seller", "Items", "TotalGBP", "Notes"}
	rows := make([][]string, 365)
	for i := range rows {
		rows[i] = []string{
			fmt.Sprintf("2024-01-%02d", i%28+1),
			"Shop",
			"PLA, PETG", // needs quoting
			FormatAmount(float64(i) * 1.25),
			`12" ruler`,
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Project(header, rows)
	}
}

// ============================================================================
// SQL Builder Benchmarks
// ============================================================================

// BenchmarkBuildStatements benchmarks statement generation for one kind.
func BenchmarkBuildStatements(b *testing.B) {
	specs := []FieldSpec{
		{Name: "date", Type: FieldDate, Required: true},
		{Name: "orderNumber", DBColumn: "order_number", Type: FieldText},
		{Name: "total", Type: FieldNumeric},
		{Name: "notes", Type: FieldText},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buildStatements("expenses", specs)
	}
}

// BenchmarkQuoteIdentifier benchmarks SQL identifier quoting.
func BenchmarkQuoteIdentifier(b *testing.B) {
	identifiers := []string{
		"simple",
		"with spaces",
		"with\"quotes",
		"users\"; DROP TABLE users; --", // SQL injection attempt
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, id := range identifiers {
			quoteIdentifier(id)
		}
	}
}

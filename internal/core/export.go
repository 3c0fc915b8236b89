package core

import "strings"

// Project renders a header and rows as CSV.
//
// Fields containing a comma, double quote, CR or LF are wrapped in double
// quotes with inner quotes doubled; all others are written verbatim. Every
// line, including the last, ends with "\n".
func Project(header []string, rows [][]string) []byte {
	var b strings.Builder
	writeCSVLine(&b, header)
	for _, row := range rows {
		writeCSVLine(&b, row)
	}
	return []byte(b.String())
}

func writeCSVLine(b *strings.Builder, fields []string) {
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeCSV(field))
	}
	b.WriteByte('\n')
}

func escapeCSV(field string) string {
	if !strings.ContainsAny(field, ",\"\r\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Package ingest turns line-oriented delimited text into activities.
package ingest

import "strings"

// ParseLine splits one comma-delimited line into fields. A double quote toggles
// quoted mode, in which commas are kept as data. Doubled-quote escapes and
// multi-line fields are not supported; an unbalanced quote simply leaves the
// rest of the line quoted. An empty line yields a single empty field.
func ParseLine(line string) []string {
	fields := make([]string, 0, 10)
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, cleanField(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(fields, cleanField(current.String()))
}

func cleanField(raw string) string {
	field := strings.TrimSpace(raw)
	field = strings.TrimPrefix(field, `"`)
	return strings.TrimSuffix(field, `"`)
}

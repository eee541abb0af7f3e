package ingest

import (
	"regexp"
	"strings"

	"example.com/sitetracker/internal/domain"
)

var lineBreak = regexp.MustCompile(`\r\n|\n`)

// headerTokens mark the first non-blank line as a header row.
var headerTokens = []string{"id", "categoria", "category"}

// Batch is the outcome of decoding one text payload.
type Batch struct {
	Activities []domain.Activity
	// Lines counts the non-blank data lines examined, header excluded.
	Lines    int
	Rejected int
}

// Decode parses every data line of text with c. Blank lines are skipped and
// malformed rows are counted as rejected; decoding never fails as a whole.
func Decode(text string, c Coercer) Batch {
	var batch Batch
	headerChecked := false

	for _, line := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !headerChecked {
			headerChecked = true
			if isHeader(line) {
				continue
			}
		}

		batch.Lines++
		activity, ok := c.Coerce(ParseLine(line))
		if !ok {
			batch.Rejected++
			continue
		}
		batch.Activities = append(batch.Activities, activity)
	}
	return batch
}

func isHeader(line string) bool {
	lower := strings.ToLower(line)
	for _, token := range headerTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

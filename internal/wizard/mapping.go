package wizard

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// hintThreshold bounds the normalized edit distance for a header to count
// as a near-miss of a configured column name.
const hintThreshold = 0.4

// DeriveMapping resolves a schema's default mappings against the detected
// header row. For each standard field the configured custom column name is
// looked up by exact string match; names absent from the headers stay
// unmapped.
func DeriveMapping(defaults map[string]string, columns []string) map[string]int {
	mapping := make(map[string]int)
	for field, custom := range defaults {
		for i, col := range columns {
			if col == custom {
				mapping[field] = i
				break
			}
		}
	}
	return mapping
}

// Hint is a near-miss suggestion for an unmapped field: the header that most
// closely resembles the name the schema expected. Hints are advisory only
// and never applied automatically.
type Hint struct {
	Field    string
	Header   string
	Column   int
	Distance float64 // normalized edit distance, lower is closer
}

// SuggestHints ranks headers against the wanted column names for each
// unmapped field and returns the best near-miss per field, when one exists
// within the threshold, ordered by field name so renders are stable.
// wanted maps field name -> the name the schema (or the standard field
// itself) expects to find.
func SuggestHints(wanted map[string]string, columns []string, mapped map[string]int) []Hint {
	fields := make([]string, 0, len(wanted))
	for field := range wanted {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var hints []Hint
	for _, field := range fields {
		want := wanted[field]
		if _, ok := mapped[field]; ok {
			continue
		}
		best := Hint{Field: field, Column: -1, Distance: 1}
		for i, col := range columns {
			d := normalizedDistance(want, col)
			if d < best.Distance {
				best = Hint{Field: field, Header: col, Column: i, Distance: d}
			}
		}
		if best.Column >= 0 && best.Distance < hintThreshold {
			hints = append(hints, best)
		}
	}
	return hints
}

func normalizedDistance(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxlen := len(a)
	if len(b) > maxlen {
		maxlen = len(b)
	}
	return float64(dist) / float64(maxlen)
}

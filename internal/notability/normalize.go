// Package notability implements the search-plus-LLM gate that decides
// whether a business has enough independent public references to warrant
// a knowledge-base entry.
package notability

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Names elsewhere in the system get a millisecond-timestamp uniqueness
// suffix appended. A trailing run of 8+ digits is that noise, not part of
// the human-readable name.
var trailingDigitRun = regexp.MustCompile(`[\s_-]*\d{8,}$`)

// NormalizeName strips uniqueness suffixes and normalizes unicode so the
// search query uses only the human-readable business name.
func NormalizeName(name string) string {
	name = norm.NFKC.String(name)
	name = trailingDigitRun.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	return strings.TrimSpace(name)
}

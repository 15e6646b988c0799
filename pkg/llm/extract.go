package llm

import "strings"

// ExtractJSON returns the last balanced top-level JSON object in raw,
// stripping markdown code fences first. Judge models wrap their structured
// answers in fences or prose; callers decode the returned payload.
func ExtractJSON(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	end := strings.LastIndex(s, "}")
	if end < 0 {
		return ""
	}

	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return s[i : end+1]
			}
		}
	}
	return ""
}

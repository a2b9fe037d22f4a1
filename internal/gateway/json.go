package gateway

import (
	"encoding/json"
	"strings"
)

// ExtractJSON isolates the first complete JSON value (object or array) inside a
// model response. Models occasionally wrap the requested JSON in prose or a
// markdown fence; the surrounding text is discarded rather than failing the
// whole call. Returns the trimmed input unchanged when no candidate is found.
func ExtractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}

	objStart := strings.Index(trimmed, "{")
	arrStart := strings.Index(trimmed, "[")
	start, end := -1, -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(trimmed, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(trimmed, "]")
	}
	if start < 0 || end <= start {
		return trimmed
	}

	candidate := trimmed[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return trimmed
	}
	return candidate
}

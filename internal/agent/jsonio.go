package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON reports model text with no recoverable JSON object.
var ErrNoJSON = errors.New("agent: model response contains no JSON object")

// ParseModelJSON recovers the structured output document from raw model
// text. Models wrap JSON in markdown fences more often than not, so the
// fenced block is preferred; otherwise the outermost brace span is tried.
func ParseModelJSON(text string) (Output, error) {
	candidate := fencedBlock(text)
	if candidate == "" {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, ErrNoJSON
		}
		candidate = text[start : end+1]
	}

	var out Output
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, fmt.Errorf("agent: decoding model response: %w", err)
	}
	return out, nil
}

// fencedBlock returns the body of the first ```json (or bare ```) fence,
// empty when the text has none.
func fencedBlock(text string) string {
	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(text, marker)
		if start < 0 {
			continue
		}
		rest := text[start+len(marker):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(rest[:end])
	}
	return ""
}

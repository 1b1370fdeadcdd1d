package matcher

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonesrussell/grant-matcher/internal/orchestrator"
)

// maxRepairCloses bounds how many unterminated braces or brackets the repair
// pass will close. Anything deeper is not a truncated reply, it is garbage.
const maxRepairCloses = 8

// decodeModelJSON parses a model reply into out. Models occasionally wrap the
// JSON in prose or truncate the tail, so after a strict parse fails it
// extracts the outermost object and closes unterminated braces before giving
// up. Giving up is a structural failure: the reply will not improve on retry.
func decodeModelJSON(text string, out any) error {
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	candidate := extractObject(text)
	if candidate == "" {
		return orchestrator.Structural(fmt.Errorf("no JSON object in model reply"))
	}

	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	repaired, ok := closeUnterminated(candidate)
	if !ok {
		return orchestrator.Structural(fmt.Errorf("model reply beyond repair"))
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return orchestrator.Structural(fmt.Errorf("parse repaired model reply: %w", err))
	}
	return nil
}

// extractObject returns the substring from the first '{' to the last '}'
// inclusive, or from the first '{' to the end when no '}' follows.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}

// closeUnterminated appends the closers a truncated object is missing, in
// nesting order. Reports false when the text is more broken than truncated.
func closeUnterminated(text string) (string, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", false
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > maxRepairCloses {
		return "", false
	}

	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), true
}

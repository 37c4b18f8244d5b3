// README: Best-effort extraction of a trailing TRAVEL_PLAN_JSON object from model output.
package plan

import (
	"encoding/json"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"wayfarer/internal/logger"
)

// Marker is the literal token the prompt asks the model to emit before the plan object.
const Marker = "TRAVEL_PLAN_JSON:"

// Extract splits raw model output into the text to show the user and an optional plan.
//
// Without a marker followed by an object, raw is returned untouched with a nil plan.
// When the object parses, the text before the marker (trimmed) is returned with the plan.
// When it does not, raw is returned untouched with a nil plan and the failure is logged.
func Extract(raw string) (string, *TripPlan) {
	markerAt, objStart, ok := locate(raw)
	if !ok {
		return raw, nil
	}

	candidate := raw[objStart:]
	if end := balancedEnd(candidate); end > 0 {
		candidate = candidate[:end]
	}

	var p TripPlan
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		logger.Log.Warn("plan extraction: malformed plan object",
			zap.Error(err),
			zap.Int("marker_offset", markerAt),
			zap.Int("candidate_len", len(candidate)),
		)
		return raw, nil
	}

	return strings.TrimSpace(raw[:markerAt]), &p
}

// locate finds the first marker occurrence that is followed, after optional whitespace and
// code fence, by '{'. It returns the marker offset and the offset of the opening brace.
func locate(raw string) (markerAt, objStart int, ok bool) {
	from := 0
	for {
		i := strings.Index(raw[from:], Marker)
		if i < 0 {
			return 0, 0, false
		}
		markerAt = from + i
		after := markerAt + len(Marker)
		rest := strings.TrimLeftFunc(raw[after:], unicode.IsSpace)
		rest = stripFence(rest)
		if strings.HasPrefix(rest, "{") {
			return markerAt, len(raw) - len(rest), true
		}
		from = after
	}
}

// stripFence drops a leading markdown code fence (```json or ```) some models wrap the object in.
func stripFence(s string) string {
	for _, fence := range []string{"```json", "```JSON", "```"} {
		if strings.HasPrefix(s, fence) {
			return strings.TrimLeftFunc(s[len(fence):], unicode.IsSpace)
		}
	}
	return s
}

// balancedEnd returns the length of the brace-balanced object at the start of s,
// or -1 if the object never closes. Braces inside JSON strings are ignored.
func balancedEnd(s string) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

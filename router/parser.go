package router

import (
	"encoding/json"
	"strings"
)

// TerminateToken is the sentinel a router may emit in place of an agent id.
const TerminateToken = "terminate"

// wireDecision is the structured form routers are prompted to produce.
type wireDecision struct {
	NextAgent string `json:"next_agent"`
	Terminate bool   `json:"terminate"`
	Reason    string `json:"reason"`
}

// ParseDecision parses raw router output into a tagged Decision.
//
// The primary format is a JSON object {"next_agent": "...", "terminate":
// bool, "reason": "..."}. Model routers wrap JSON in prose or code fences
// often enough that a tolerant pass follows: the first line that is exactly
// a known agent id, or the terminate token, is accepted. Anything else is
// ParseFailed with the raw output preserved; parse failure is a recoverable
// condition handled by the caller, never a silent termination.
func ParseDecision(raw string, knownAgents map[string]struct{}) Decision {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ParseFailed(raw)
	}

	if jsonText, ok := extractJSONObject(trimmed); ok {
		var wd wireDecision
		if err := json.Unmarshal([]byte(jsonText), &wd); err == nil {
			switch {
			case wd.Terminate:
				return Terminate(wd.Reason, raw)
			case wd.NextAgent != "":
				if _, known := knownAgents[wd.NextAgent]; known {
					return ContinueWith(wd.NextAgent, raw)
				}
				return ParseFailed(raw)
			}
		}
	}

	// Tolerant pass over bare-token output.
	for _, line := range strings.Split(trimmed, "\n") {
		token := strings.ToLower(strings.TrimSpace(line))
		if token == "" {
			continue
		}
		if token == TerminateToken {
			return Terminate("", raw)
		}
		if _, known := knownAgents[token]; known {
			return ContinueWith(token, raw)
		}
	}

	return ParseFailed(raw)
}

// extractJSONObject returns the first balanced {...} block in s.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

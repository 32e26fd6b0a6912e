package ai

import (
	"fmt"
	"regexp"
	"strings"
)

var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls the JSON object out of a model reply. Models sometimes
// wrap output in markdown fences or pad it with prose despite instructions.
func extractJSON(reply string) (string, error) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return "", fmt.Errorf("empty reply")
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, nil
	}

	if m := jsonFencePattern.FindStringSubmatch(trimmed); m != nil {
		return m[1], nil
	}

	// Last resort: take the outermost brace pair.
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON object found in reply")
}

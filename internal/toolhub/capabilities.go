package toolhub

import "strings"

// capabilityKeywords maps words found in tool names and descriptions to
// capability tags.
var capabilityKeywords = map[string]string{
	"search":     "search",
	"web":        "web",
	"lookup":     "search",
	"research":   "research",
	"find":       "search",
	"calculate":  "calculate",
	"calculator": "calculate",
	"math":       "calculate",
	"arithmetic": "calculate",
	"compute":    "calculate",
	"time":       "time",
	"date":       "time",
	"clock":      "time",
	"weather":    "weather",
	"forecast":   "weather",
	"document":   "document",
	"file":       "filesystem",
	"files":      "filesystem",
	"directory":  "filesystem",
	"extract":    "extract",
	"scrape":     "extract",
	"parse":      "extract",
	"analyze":    "analyze",
	"analysis":   "analyze",
	"summarize":  "analyze",
	"history":    "history",
	"conversation": "history",
	"memory":     "history",
}

// ExtractCapabilities derives capability tags from free text (a tool
// name plus description, or a task description). Unknown text yields
// the generic "general" tag so every tool remains reachable.
func ExtractCapabilities(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, word := range tokenize(text) {
		tag, ok := capabilityKeywords[word]
		if !ok {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		out = append(out, "general")
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

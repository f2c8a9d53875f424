package jsonx

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractObject pulls the outermost JSON object out of model output,
// dropping markdown fences and surrounding prose. Returns "" when no
// object-shaped region exists.
func ExtractObject(text string) string {
	text = stripFences(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// UnmarshalTolerant decodes model output into v, repairing common LLM
// JSON defects (trailing commas, single quotes, unquoted keys) before
// giving up.
func UnmarshalTolerant(text string, v any) error {
	candidate := ExtractObject(text)
	if candidate == "" {
		candidate = strings.TrimSpace(stripFences(text))
	}
	if err := Unmarshal([]byte(candidate), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return err
	}
	return Unmarshal([]byte(repaired), v)
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		// Drop the language tag line (```json).
		first := strings.TrimSpace(text[:idx])
		if first == "json" || first == "" {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

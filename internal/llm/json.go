package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject finds the first valid JSON object in model output.
// Models wrap their JSON in markdown fences or commentary often enough that
// a strict json.Unmarshal on the raw content is not viable.
func ExtractJSONObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(text), &obj); err == nil {
			return obj, true
		}
	}

	start := strings.Index(text, "{")
	for start != -1 {
		depth := 0
		for i := start; i < len(text); i++ {
			switch text[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					var obj map[string]any
					if err := json.Unmarshal([]byte(text[start:i+1]), &obj); err == nil {
						return obj, true
					}
					i = len(text)
				}
			}
		}
		next := strings.Index(text[start+1:], "{")
		if next == -1 {
			break
		}
		start += 1 + next
	}
	return nil, false
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

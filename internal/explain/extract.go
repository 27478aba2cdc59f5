package explain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseExplanation decodes a model reply. The JSON object may be bare,
// inside a ```json or ``` fence, or embedded in surrounding prose.
func ParseExplanation(text string) (*Explanation, error) {
	var exp Explanation
	if err := json.Unmarshal([]byte(extractJSON(text)), &exp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(exp.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}
	if exp.AlternativeRecommendations == nil {
		exp.AlternativeRecommendations = []string{}
	}
	return &exp, nil
}

func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text
	}
	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

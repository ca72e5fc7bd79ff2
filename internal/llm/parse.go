package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/abaykopenov/llm-scorm/internal/course"
)

var trailingCommas = regexp.MustCompile(`,\s*([}\]])`)

// ParseDocument decodes raw model output into a course document. It tolerates
// the common failure modes of LLM output: markdown code fences, trailing
// commas, and prose surrounding the JSON value. Structural validation runs on
// the decoded document; any failure maps to ErrUpstreamMalformed.
func ParseDocument(raw string) (*course.Document, error) {
	cleaned := sanitizeJSONText(raw)
	cleaned = trailingCommas.ReplaceAllString(cleaned, "$1")

	var doc course.Document
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		// Fall back to the outermost object boundaries.
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("%w: no JSON object in response", ErrUpstreamMalformed)
		}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
		}
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}

	return &doc, nil
}

// sanitizeJSONText strips a surrounding markdown code fence if present.
func sanitizeJSONText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	firstNL := strings.IndexByte(s, '\n')
	if firstNL == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[firstNL+1:]

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

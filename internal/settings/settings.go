// Package settings manages the runtime-editable connection settings for the
// LLM provider and the LMS. Values live in Postgres so they survive restarts;
// secrets never leave the store unmasked.
package settings

import "strings"

// MaskPlaceholder is what secret fields are replaced with when settings are
// read for display. Posting the placeholder back preserves the stored value.
const MaskPlaceholder = "••••"

// Settings holds every runtime-editable value. LLMAPIKey and LMSPassword are
// secrets and subject to masking.
type Settings struct {
	LLMBaseURL string `json:"llm_base_url"`
	LLMAPIKey  string `json:"llm_api_key"`
	LLMModel   string `json:"llm_model"`

	LMSBaseURL    string `json:"lms_base_url"`
	LMSUsername   string `json:"lms_username"`
	LMSPassword   string `json:"lms_password"`
	LMSCourseCode string `json:"lms_course_code"`

	CourseLanguage string `json:"course_language"`
}

// Masked returns a display copy with non-empty secrets replaced by the
// placeholder. Empty secrets stay empty so the UI can tell "unset" from
// "set but hidden".
func (s Settings) Masked() Settings {
	out := s
	if out.LLMAPIKey != "" {
		out.LLMAPIKey = MaskPlaceholder
	}
	if out.LMSPassword != "" {
		out.LMSPassword = MaskPlaceholder
	}
	return out
}

// merge overlays incoming values onto the current settings. Secret fields
// carrying the mask placeholder keep their stored value; everything else is
// taken verbatim, including empty strings, so fields can be cleared.
func merge(current, incoming Settings) Settings {
	out := incoming
	if strings.TrimSpace(incoming.LLMAPIKey) == MaskPlaceholder {
		out.LLMAPIKey = current.LLMAPIKey
	}
	if strings.TrimSpace(incoming.LMSPassword) == MaskPlaceholder {
		out.LMSPassword = current.LMSPassword
	}
	return out
}

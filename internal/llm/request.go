package llm

import (
	"fmt"
	"strings"

	"github.com/abaykopenov/llm-scorm/internal/course"
)

// Detail levels accepted by Request.DetailLevel.
const (
	DetailBrief    = "brief"
	DetailNormal   = "normal"
	DetailDetailed = "detailed"
	DetailExpert   = "expert"
)

// Request describes one course generation. Flat and hierarchical structure
// parameters are mutually exclusive: Modules > 0 selects the hierarchical
// shape, otherwise the flat page parameters apply.
type Request struct {
	Topic             string `json:"topic"`
	Language          string `json:"language"`
	DetailLevel       string `json:"detail_level"`
	ExtraInstructions string `json:"extra_instructions,omitempty"`
	SystemPrompt      string `json:"system_prompt,omitempty"`

	Pages            int `json:"pages,omitempty"`
	BlocksPerPage    int `json:"blocks_per_page,omitempty"`
	QuestionsPerPage int `json:"questions_per_page,omitempty"`

	Modules            int `json:"modules,omitempty"`
	SectionsPerModule  int `json:"sections_per_module,omitempty"`
	SCOsPerSection     int `json:"scos_per_section,omitempty"`
	ScreensPerSCO      int `json:"screens_per_sco,omitempty"`
	QuestionsPerSCO    int `json:"questions_per_sco,omitempty"`
	FinalTestQuestions int `json:"final_test_questions,omitempty"`
}

// Shape resolves which document shape the request asks for.
func (r *Request) Shape() course.Shape {
	if r.Modules > 0 {
		return course.ShapeHierarchical
	}
	return course.ShapeFlat
}

// Normalize trims the topic, fills defaults, and validates counts. Flat
// structure counts must be positive once defaults are applied; hierarchical
// question counts may be zero.
func (r *Request) Normalize() error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}

	if r.Language == "" {
		r.Language = "ru"
	}
	if r.DetailLevel == "" {
		r.DetailLevel = DetailNormal
	}
	switch r.DetailLevel {
	case DetailBrief, DetailNormal, DetailDetailed, DetailExpert:
	default:
		return fmt.Errorf("%w: unknown detail_level %q", ErrInvalidRequest, r.DetailLevel)
	}

	if r.Shape() == course.ShapeHierarchical {
		if r.SectionsPerModule == 0 {
			r.SectionsPerModule = 1
		}
		if r.SCOsPerSection == 0 {
			r.SCOsPerSection = 1
		}
		if r.ScreensPerSCO == 0 {
			r.ScreensPerSCO = 2
		}
		for name, v := range map[string]int{
			"modules":              r.Modules,
			"sections_per_module":  r.SectionsPerModule,
			"scos_per_section":     r.SCOsPerSection,
			"screens_per_sco":      r.ScreensPerSCO,
			"questions_per_sco":    r.QuestionsPerSCO,
			"final_test_questions": r.FinalTestQuestions,
		} {
			if v < 0 {
				return fmt.Errorf("%w: %s must not be negative", ErrInvalidRequest, name)
			}
		}
		return nil
	}

	if r.Pages == 0 {
		r.Pages = 5
	}
	if r.BlocksPerPage == 0 {
		r.BlocksPerPage = 3
	}
	if r.QuestionsPerPage == 0 {
		r.QuestionsPerPage = 1
	}
	for name, v := range map[string]int{
		"pages":              r.Pages,
		"blocks_per_page":    r.BlocksPerPage,
		"questions_per_page": r.QuestionsPerPage,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidRequest, name)
		}
	}
	if r.QuestionsPerPage > r.BlocksPerPage {
		return fmt.Errorf("%w: questions_per_page cannot exceed blocks_per_page", ErrInvalidRequest)
	}

	return nil
}

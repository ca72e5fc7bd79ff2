// Package course defines the course document model shared by the generation
// pipeline: a tagged union of a flat page list and a full SCORM hierarchy
// (modules, sections, SCOs, screens), plus validation and pure outline
// projections over either shape.
package course

import "encoding/json"

// BlockKind identifies the content type of a single block.
type BlockKind string

const (
	KindText      BlockKind = "text"
	KindMCQ       BlockKind = "mcq"
	KindTrueFalse BlockKind = "truefalse"
)

// Valid reports whether the kind is one of the recognized block types.
func (k BlockKind) Valid() bool {
	switch k {
	case KindText, KindMCQ, KindTrueFalse:
		return true
	}
	return false
}

// Question reports whether the kind is an assessment block.
func (k BlockKind) Question() bool {
	return k == KindMCQ || k == KindTrueFalse
}

// Option is a single multiple-choice answer.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Block is the smallest unit of course content: a theory text, a
// multiple-choice question, or a true/false question.
type Block struct {
	Type              BlockKind `json:"type"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	Options           []Option  `json:"options,omitempty"`
	CorrectAnswer     *bool     `json:"correct_answer,omitempty"`
	FeedbackCorrect   string    `json:"feedback_correct,omitempty"`
	FeedbackIncorrect string    `json:"feedback_incorrect,omitempty"`
}

// Page is one screen of a flat course.
type Page struct {
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

// Screen is one page inside a SCO.
type Screen struct {
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

// SCO is the smallest independently trackable unit of a hierarchical course.
// Its optional Questions form the knowledge check for the unit.
type SCO struct {
	Title     string   `json:"title"`
	Screens   []Screen `json:"screens"`
	Questions []Block  `json:"questions,omitempty"`
}

// Section groups SCOs inside a module.
type Section struct {
	Title string `json:"title"`
	SCOs  []SCO  `json:"scos"`
}

// Module is the top level of a hierarchical course.
type Module struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Document is the internal representation of course content prior to
// packaging. Exactly one of Pages or Modules is populated; FinalTest is the
// optional course-level assessment and only meaningful for the hierarchical
// shape.
type Document struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	Pages       []Page   `json:"pages,omitempty"`
	Modules     []Module `json:"modules,omitempty"`
	FinalTest   []Block  `json:"final_test,omitempty"`
}

// Shape identifies which variant of the document union is populated.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeFlat
	ShapeHierarchical
)

func (s Shape) String() string {
	switch s {
	case ShapeFlat:
		return "flat"
	case ShapeHierarchical:
		return "hierarchical"
	default:
		return "unknown"
	}
}

// Shape resolves the document variant. It returns ErrInvalidDocument when
// both or neither of Pages and Modules are populated; consumers resolve the
// shape once at the boundary and branch on the result.
func (d *Document) Shape() (Shape, error) {
	switch {
	case len(d.Pages) > 0 && len(d.Modules) > 0:
		return ShapeUnknown, errShape("both pages and modules are populated")
	case len(d.Pages) > 0:
		return ShapeFlat, nil
	case len(d.Modules) > 0:
		return ShapeHierarchical, nil
	default:
		return ShapeUnknown, errShape("neither pages nor modules are populated")
	}
}

// Clone returns a deep copy of the document. The orchestrator hands out
// clones so readers can never mutate the authoritative document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	// Round-tripping through JSON is the simplest correct deep copy for a
	// pure data tree and is nowhere near a hot path.
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return &out
}

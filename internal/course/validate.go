package course

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument is the sentinel wrapped by every structural validation
// failure. Callers map it to a 422 at the API boundary.
var ErrInvalidDocument = errors.New("invalid course document")

func errShape(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, msg)
}

func errAt(path, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidDocument, path, msg)
}

// Validate checks the document's structural invariants: a non-empty title,
// exactly one populated shape, recognized block kinds, and well-formed
// questions. It returns the first violation found wrapped in
// ErrInvalidDocument.
func (d *Document) Validate() error {
	if d == nil {
		return errShape("document is nil")
	}
	if d.Title == "" {
		return errShape("title is required")
	}

	shape, err := d.Shape()
	if err != nil {
		return err
	}

	switch shape {
	case ShapeFlat:
		if len(d.FinalTest) > 0 {
			return errShape("final_test is only valid for hierarchical courses")
		}
		for i, page := range d.Pages {
			if err := validatePage(fmt.Sprintf("pages[%d]", i), page); err != nil {
				return err
			}
		}
	case ShapeHierarchical:
		for i, mod := range d.Modules {
			if err := validateModule(fmt.Sprintf("modules[%d]", i), mod); err != nil {
				return err
			}
		}
		for i, b := range d.FinalTest {
			path := fmt.Sprintf("final_test[%d]", i)
			if err := validateBlock(path, b); err != nil {
				return err
			}
			if !b.Type.Question() {
				return errAt(path, "final_test blocks must be questions")
			}
		}
	}

	return nil
}

func validatePage(path string, p Page) error {
	if p.Title == "" {
		return errAt(path, "title is required")
	}
	if len(p.Blocks) == 0 {
		return errAt(path, "at least one block is required")
	}
	for i, b := range p.Blocks {
		if err := validateBlock(fmt.Sprintf("%s.blocks[%d]", path, i), b); err != nil {
			return err
		}
	}
	return nil
}

func validateModule(path string, m Module) error {
	if m.Title == "" {
		return errAt(path, "title is required")
	}
	if len(m.Sections) == 0 {
		return errAt(path, "at least one section is required")
	}
	for i, sec := range m.Sections {
		if err := validateSection(fmt.Sprintf("%s.sections[%d]", path, i), sec); err != nil {
			return err
		}
	}
	return nil
}

func validateSection(path string, s Section) error {
	if s.Title == "" {
		return errAt(path, "title is required")
	}
	if len(s.SCOs) == 0 {
		return errAt(path, "at least one sco is required")
	}
	for i, sco := range s.SCOs {
		if err := validateSCO(fmt.Sprintf("%s.scos[%d]", path, i), sco); err != nil {
			return err
		}
	}
	return nil
}

func validateSCO(path string, s SCO) error {
	if s.Title == "" {
		return errAt(path, "title is required")
	}
	if len(s.Screens) == 0 {
		return errAt(path, "at least one screen is required")
	}
	for i, scr := range s.Screens {
		scrPath := fmt.Sprintf("%s.screens[%d]", path, i)
		if scr.Title == "" {
			return errAt(scrPath, "title is required")
		}
		if len(scr.Blocks) == 0 {
			return errAt(scrPath, "at least one block is required")
		}
		for j, b := range scr.Blocks {
			if err := validateBlock(fmt.Sprintf("%s.blocks[%d]", scrPath, j), b); err != nil {
				return err
			}
		}
	}
	for i, b := range s.Questions {
		qPath := fmt.Sprintf("%s.questions[%d]", path, i)
		if err := validateBlock(qPath, b); err != nil {
			return err
		}
		if !b.Type.Question() {
			return errAt(qPath, "sco questions must be mcq or truefalse")
		}
	}
	return nil
}

func validateBlock(path string, b Block) error {
	if !b.Type.Valid() {
		return errAt(path, fmt.Sprintf("unrecognized block type %q", string(b.Type)))
	}

	switch b.Type {
	case KindText:
		if b.Body == "" {
			return errAt(path, "text block requires a body")
		}
	case KindMCQ:
		if b.Body == "" {
			return errAt(path, "mcq block requires a question body")
		}
		if len(b.Options) < 2 {
			return errAt(path, "mcq block requires at least two options")
		}
		correct := 0
		for _, opt := range b.Options {
			if opt.Text == "" {
				return errAt(path, "mcq option requires text")
			}
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return errAt(path, fmt.Sprintf("mcq block requires exactly one correct option, got %d", correct))
		}
	case KindTrueFalse:
		if b.Body == "" {
			return errAt(path, "truefalse block requires a statement body")
		}
		if b.CorrectAnswer == nil {
			return errAt(path, "truefalse block requires correct_answer")
		}
	}

	return nil
}

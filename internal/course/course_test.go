package course

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func textBlock(title, body string) Block {
	return Block{Type: KindText, Title: title, Body: body}
}

func mcqBlock(body string) Block {
	return Block{
		Type: KindMCQ,
		Body: body,
		Options: []Option{
			{Text: "chlorophyll", Correct: true},
			{Text: "hemoglobin"},
			{Text: "keratin"},
		},
		FeedbackCorrect:   "Correct.",
		FeedbackIncorrect: "Not quite.",
	}
}

func trueFalseBlock(body string) Block {
	return Block{
		Type:          KindTrueFalse,
		Body:          body,
		CorrectAnswer: boolPtr(true),
	}
}

func flatDocument() *Document {
	return &Document{
		Title: "Photosynthesis",
		Pages: []Page{
			{
				Title: "Light Reactions",
				Blocks: []Block{
					textBlock("Overview", "Light reactions capture photons."),
					mcqBlock("Which pigment absorbs light?"),
				},
			},
			{
				Title: "Dark Reactions",
				Blocks: []Block{
					textBlock("Calvin Cycle", "Carbon fixation happens here."),
					trueFalseBlock("The Calvin cycle requires direct light."),
				},
			},
		},
	}
}

func hierarchicalDocument() *Document {
	sco := SCO{
		Title: "Chloroplast Structure",
		Screens: []Screen{
			{Title: "Thylakoids", Blocks: []Block{textBlock("Membranes", "Stacked membrane discs.")}},
			{Title: "Stroma", Blocks: []Block{textBlock("Fluid", "The enzyme-rich interior.")}},
		},
		Questions: []Block{mcqBlock("Where do light reactions occur?")},
	}

	return &Document{
		Title: "Photosynthesis",
		Modules: []Module{
			{
				Title: "Foundations",
				Sections: []Section{
					{Title: "Cell Biology", SCOs: []SCO{sco}},
				},
			},
			{
				Title: "Energy Transfer",
				Sections: []Section{
					{Title: "Reactions", SCOs: []SCO{sco}},
				},
			},
		},
		FinalTest: []Block{
			mcqBlock("What is the primary output of photosynthesis?"),
			trueFalseBlock("Oxygen is a byproduct."),
		},
	}
}

func TestShape(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		want    Shape
		wantErr bool
	}{
		{"flat", flatDocument(), ShapeFlat, false},
		{"hierarchical", hierarchicalDocument(), ShapeHierarchical, false},
		{"empty", &Document{Title: "Empty"}, ShapeUnknown, true},
		{
			"both populated",
			&Document{
				Title:   "Both",
				Pages:   flatDocument().Pages,
				Modules: hierarchicalDocument().Modules,
			},
			ShapeUnknown,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.doc.Shape()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidDocument) {
					t.Errorf("error = %v, want ErrInvalidDocument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("shape = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document)
		doc     *Document
		wantErr string
	}{
		{name: "valid flat", doc: flatDocument()},
		{name: "valid hierarchical", doc: hierarchicalDocument()},
		{
			name:    "missing title",
			doc:     flatDocument(),
			mutate:  func(d *Document) { d.Title = "" },
			wantErr: "title is required",
		},
		{
			name:    "unrecognized block type",
			doc:     flatDocument(),
			mutate:  func(d *Document) { d.Pages[0].Blocks[0].Type = "video" },
			wantErr: "unrecognized block type",
		},
		{
			name:    "mcq with one option",
			doc:     flatDocument(),
			mutate:  func(d *Document) { d.Pages[0].Blocks[1].Options = d.Pages[0].Blocks[1].Options[:1] },
			wantErr: "at least two options",
		},
		{
			name: "mcq with no correct option",
			doc:  flatDocument(),
			mutate: func(d *Document) {
				for i := range d.Pages[0].Blocks[1].Options {
					d.Pages[0].Blocks[1].Options[i].Correct = false
				}
			},
			wantErr: "exactly one correct option",
		},
		{
			name: "mcq with two correct options",
			doc:  flatDocument(),
			mutate: func(d *Document) {
				d.Pages[0].Blocks[1].Options[1].Correct = true
			},
			wantErr: "exactly one correct option",
		},
		{
			name:    "truefalse without answer",
			doc:     flatDocument(),
			mutate:  func(d *Document) { d.Pages[1].Blocks[1].CorrectAnswer = nil },
			wantErr: "requires correct_answer",
		},
		{
			name:    "final_test on flat course",
			doc:     flatDocument(),
			mutate:  func(d *Document) { d.FinalTest = []Block{mcqBlock("q")} },
			wantErr: "final_test is only valid",
		},
		{
			name:    "text block as sco question",
			doc:     hierarchicalDocument(),
			mutate:  func(d *Document) { d.Modules[0].Sections[0].SCOs[0].Questions[0] = textBlock("t", "b") },
			wantErr: "must be mcq or truefalse",
		},
		{
			name:    "empty screen",
			doc:     hierarchicalDocument(),
			mutate:  func(d *Document) { d.Modules[0].Sections[0].SCOs[0].Screens[0].Blocks = nil },
			wantErr: "at least one block",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.doc.Clone()
			if tt.mutate != nil {
				tt.mutate(doc)
			}

			err := doc.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("error = %v, want ErrInvalidDocument", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestOutline(t *testing.T) {
	t.Run("flat counts", func(t *testing.T) {
		out := flatDocument().Outline()

		if out.Shape != "flat" {
			t.Errorf("shape = %q, want flat", out.Shape)
		}
		if len(out.Pages) != 2 {
			t.Fatalf("pages = %d, want 2", len(out.Pages))
		}
		if out.Blocks != 4 {
			t.Errorf("blocks = %d, want 4", out.Blocks)
		}
		if out.Questions != 2 {
			t.Errorf("questions = %d, want 2", out.Questions)
		}
		if out.TextBlocks != 2 {
			t.Errorf("text blocks = %d, want 2", out.TextBlocks)
		}
	})

	t.Run("hierarchical counts", func(t *testing.T) {
		out := hierarchicalDocument().Outline()

		if out.Shape != "hierarchical" {
			t.Errorf("shape = %q, want hierarchical", out.Shape)
		}
		if len(out.Modules) != 2 {
			t.Fatalf("modules = %d, want 2", len(out.Modules))
		}
		if out.FinalTest != 2 {
			t.Errorf("final test questions = %d, want 2", out.FinalTest)
		}
		sco := out.Modules[0].Sections[0].SCOs[0]
		if sco.Screens != 2 {
			t.Errorf("screens = %d, want 2", sco.Screens)
		}
		if sco.Questions != 1 {
			t.Errorf("questions = %d, want 1", sco.Questions)
		}
	})
}

func TestClone(t *testing.T) {
	original := hierarchicalDocument()
	clone := original.Clone()

	clone.Title = "Changed"
	clone.Modules[0].Title = "Changed Module"
	clone.FinalTest[0].Body = "Changed question"

	if original.Title != "Photosynthesis" {
		t.Error("clone mutation leaked into original title")
	}
	if original.Modules[0].Title != "Foundations" {
		t.Error("clone mutation leaked into original module")
	}
	if original.FinalTest[0].Body == "Changed question" {
		t.Error("clone mutation leaked into original final test")
	}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	original := hierarchicalDocument()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if err := decoded.Validate(); err != nil {
		t.Fatalf("decoded document invalid: %v", err)
	}
	if decoded.Title != original.Title {
		t.Errorf("title = %q, want %q", decoded.Title, original.Title)
	}
	if len(decoded.Modules) != len(original.Modules) {
		t.Errorf("modules = %d, want %d", len(decoded.Modules), len(original.Modules))
	}
}

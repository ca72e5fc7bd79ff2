package course

// Outline is a lightweight projection of a document used by the UI and the
// history ledger: titles and counts only, no block content.
type Outline struct {
	Title      string          `json:"title"`
	Shape      string          `json:"shape"`
	Pages      []OutlinePage   `json:"pages,omitempty"`
	Modules    []OutlineModule `json:"modules,omitempty"`
	FinalTest  int             `json:"final_test_questions,omitempty"`
	Blocks     int             `json:"block_count"`
	Questions  int             `json:"question_count"`
	TextBlocks int             `json:"text_count"`
}

type OutlinePage struct {
	Title  string `json:"title"`
	Blocks int    `json:"block_count"`
}

type OutlineModule struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
}

type OutlineSection struct {
	Title string       `json:"title"`
	SCOs  []OutlineSCO `json:"scos"`
}

type OutlineSCO struct {
	Title     string `json:"title"`
	Screens   int    `json:"screen_count"`
	Questions int    `json:"question_count"`
}

// Outline projects the document into its outline form. It never mutates the
// receiver and tolerates documents that fail Validate; counts reflect what is
// actually present.
func (d *Document) Outline() Outline {
	out := Outline{Title: d.Title}

	shape, err := d.Shape()
	if err != nil {
		out.Shape = ShapeUnknown.String()
		return out
	}
	out.Shape = shape.String()

	tally := func(blocks []Block) {
		for _, b := range blocks {
			out.Blocks++
			if b.Type.Question() {
				out.Questions++
			}
			if b.Type == KindText {
				out.TextBlocks++
			}
		}
	}

	switch shape {
	case ShapeFlat:
		for _, p := range d.Pages {
			out.Pages = append(out.Pages, OutlinePage{Title: p.Title, Blocks: len(p.Blocks)})
			tally(p.Blocks)
		}
	case ShapeHierarchical:
		for _, m := range d.Modules {
			om := OutlineModule{Title: m.Title}
			for _, sec := range m.Sections {
				os := OutlineSection{Title: sec.Title}
				for _, sco := range sec.SCOs {
					osco := OutlineSCO{
						Title:     sco.Title,
						Screens:   len(sco.Screens),
						Questions: len(sco.Questions),
					}
					for _, scr := range sco.Screens {
						tally(scr.Blocks)
					}
					tally(sco.Questions)
					os.SCOs = append(os.SCOs, osco)
				}
				om.Sections = append(om.Sections, os)
			}
			out.Modules = append(out.Modules, om)
		}
		out.FinalTest = len(d.FinalTest)
		tally(d.FinalTest)
	}

	return out
}

package scorm

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/abaykopenov/llm-scorm/internal/course"
)

//go:embed templates
var templateFS embed.FS

var indexTemplate = template.Must(
	template.ParseFS(templateFS, "templates/index.html.tmpl"))

type renderData struct {
	Title        string
	Description  string
	Language     string
	MasteryScore int
	Pages        []renderPage
}

type renderPage struct {
	Title      string
	Breadcrumb string
	Blocks     []renderBlock
}

type renderBlock struct {
	Kind              string
	Title             string
	Body              template.HTML
	Options           []course.Option
	CorrectAnswer     bool
	FeedbackCorrect   string
	FeedbackIncorrect string
	QuestionID        string
}

// flattenPages projects either document shape onto the linear page sequence
// the player renders. Hierarchical courses become one page per screen, a
// knowledge-check page per SCO with questions, and a final test page.
func flattenPages(doc *course.Document, shape course.Shape) []renderPage {
	var pages []renderPage
	questionSeq := 0

	toBlocks := func(blocks []course.Block) []renderBlock {
		out := make([]renderBlock, 0, len(blocks))
		for _, b := range blocks {
			rb := renderBlock{
				Kind:              string(b.Type),
				Title:             b.Title,
				Body:              template.HTML(b.Body),
				Options:           b.Options,
				FeedbackCorrect:   b.FeedbackCorrect,
				FeedbackIncorrect: b.FeedbackIncorrect,
			}
			if b.CorrectAnswer != nil {
				rb.CorrectAnswer = *b.CorrectAnswer
			}
			if b.Type.Question() {
				questionSeq++
				rb.QuestionID = fmt.Sprintf("q%d", questionSeq)
			}
			out = append(out, rb)
		}
		return out
	}

	switch shape {
	case course.ShapeFlat:
		for _, p := range doc.Pages {
			pages = append(pages, renderPage{
				Title:  p.Title,
				Blocks: toBlocks(p.Blocks),
			})
		}

	case course.ShapeHierarchical:
		for _, mod := range doc.Modules {
			for _, sec := range mod.Sections {
				for _, sco := range sec.SCOs {
					crumb := mod.Title + " › " + sec.Title
					for _, scr := range sco.Screens {
						pages = append(pages, renderPage{
							Title:      sco.Title + " — " + scr.Title,
							Breadcrumb: crumb,
							Blocks:     toBlocks(scr.Blocks),
						})
					}
					if len(sco.Questions) > 0 {
						pages = append(pages, renderPage{
							Title:      sco.Title,
							Breadcrumb: crumb,
							Blocks:     toBlocks(sco.Questions),
						})
					}
				}
			}
		}
		if len(doc.FinalTest) > 0 {
			title := "Final Test"
			if doc.Language == "ru" {
				title = "Итоговый тест"
			}
			pages = append(pages, renderPage{
				Title:  title,
				Blocks: toBlocks(doc.FinalTest),
			})
		}
	}

	return pages
}

func renderHTML(doc *course.Document, shape course.Shape) ([]byte, error) {
	language := doc.Language
	if language == "" {
		language = "ru"
	}

	data := renderData{
		Title:        doc.Title,
		Description:  doc.Description,
		Language:     language,
		MasteryScore: masteryScore,
		Pages:        flattenPages(doc, shape),
	}

	var buf bytes.Buffer
	if err := indexTemplate.ExecuteTemplate(&buf, "index.html.tmpl", data); err != nil {
		return nil, fmt.Errorf("render index.html: %w", err)
	}
	return buf.Bytes(), nil
}

func staticAsset(name string) ([]byte, error) {
	return templateFS.ReadFile("templates/" + name)
}

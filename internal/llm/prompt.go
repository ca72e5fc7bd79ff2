package llm

import (
	"fmt"
	"strings"
)

const defaultSystemPrompt = "You are a course generator. " +
	"Respond with valid JSON only, without comments or markdown."

var detailInstructions = map[string]string{
	DetailBrief:    "Each text block is 2-3 sentences covering only the essentials.",
	DetailNormal:   "Each text block is 1-2 paragraphs with theory and examples.",
	DetailDetailed: "Each text block is 2-3 paragraphs with thorough explanations, examples, and definitions.",
	DetailExpert:   "Each text block is 3-5 paragraphs with in-depth analysis, code samples, tables, and references.",
}

var languageNames = map[string]string{
	"ru": "Russian",
	"en": "English",
}

const blockFormatSpec = `Blocks come in three types: "text", "mcq" (multiple choice), "truefalse".
For MCQ questions: 3-5 options with exactly one "correct": true.
Block formats:
{"type": "text", "title": "Heading", "body": "<p>HTML theory text. You may use <strong>, <em>, <ul>, <li>, <code>.</p>"}
{"type": "mcq", "title": "Question", "body": "Question text", "options": [{"text": "Option 1", "correct": true}, {"text": "Option 2", "correct": false}], "feedback_correct": "Correct, because...", "feedback_incorrect": "Incorrect. The right answer is..."}
{"type": "truefalse", "title": "True or false", "body": "Statement to evaluate", "correct_answer": true, "feedback_correct": "Right!", "feedback_incorrect": "Wrong. In fact..."}`

// BuildPrompt renders the user prompt for a normalized request. The prompt
// pins the exact structure counts so the response can be validated against
// them.
func BuildPrompt(r *Request) string {
	lang := languageNames[r.Language]
	if lang == "" {
		lang = r.Language
	}

	detail := detailInstructions[r.DetailLevel]

	var b strings.Builder
	fmt.Fprintf(&b, "Create an educational course on the topic %q in %s.\n\n", r.Topic, lang)

	if r.Modules > 0 {
		buildHierarchicalPrompt(&b, r)
	} else {
		buildFlatPrompt(&b, r)
	}

	b.WriteString("\n")
	b.WriteString(detail)
	b.WriteString("\n\n")
	b.WriteString(blockFormatSpec)

	if r.ExtraInstructions != "" {
		b.WriteString("\n\nAdditional requirements:\n")
		b.WriteString(r.ExtraInstructions)
	}

	b.WriteString("\n\nReturn ONLY the JSON, without explanations or markdown.")
	return b.String()
}

func buildFlatPrompt(b *strings.Builder, r *Request) {
	textBlocks := r.BlocksPerPage - r.QuestionsPerPage
	if textBlocks < 1 {
		textBlocks = 1
	}

	fmt.Fprintf(b, "The course must contain exactly %d pages.\n", r.Pages)
	fmt.Fprintf(b, "Each page must contain %d text block(s) with theory and %d question(s) (mcq or truefalse).\n",
		textBlocks, r.QuestionsPerPage)
	fmt.Fprintf(b, "That is %d blocks per page in total.\n", r.BlocksPerPage)

	fmt.Fprintf(b, `
Return JSON in this format:
{
    "title": "Course title",
    "description": "Short course description (1-2 sentences)",
    "language": %q,
    "pages": [
        {"title": "Page title", "blocks": [ ... ]}
    ]
}`, r.Language)
}

func buildHierarchicalPrompt(b *strings.Builder, r *Request) {
	fmt.Fprintf(b, "The course must contain exactly %d modules.\n", r.Modules)
	fmt.Fprintf(b, "Each module must contain exactly %d section(s).\n", r.SectionsPerModule)
	fmt.Fprintf(b, "Each section must contain exactly %d SCO(s) (shareable content objects).\n", r.SCOsPerSection)
	fmt.Fprintf(b, "Each SCO must contain exactly %d screen(s) with content blocks.\n", r.ScreensPerSCO)
	if r.QuestionsPerSCO > 0 {
		fmt.Fprintf(b, "Each SCO must additionally have a \"questions\" list with exactly %d knowledge-check question(s) (mcq or truefalse).\n", r.QuestionsPerSCO)
	}
	if r.FinalTestQuestions > 0 {
		fmt.Fprintf(b, "The course must end with a \"final_test\" list of exactly %d question(s) (mcq or truefalse).\n", r.FinalTestQuestions)
	}

	fmt.Fprintf(b, `
Return JSON in this format:
{
    "title": "Course title",
    "description": "Short course description (1-2 sentences)",
    "language": %q,
    "modules": [
        {
            "title": "Module title",
            "sections": [
                {
                    "title": "Section title",
                    "scos": [
                        {
                            "title": "SCO title",
                            "screens": [
                                {"title": "Screen title", "blocks": [ ... ]}
                            ],
                            "questions": [ ... ]
                        }
                    ]
                }
            ]
        }
    ],
    "final_test": [ ... ]
}`, r.Language)
}

// Command coursegen generates and packages a course from the terminal,
// without a running service. A document is either read from a JSON file or
// generated from a topic using the OPENAI_* environment configuration; the
// resulting SCORM package lands in the output directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/abaykopenov/llm-scorm/internal/config"
	"github.com/abaykopenov/llm-scorm/internal/course"
	"github.com/abaykopenov/llm-scorm/internal/generation"
	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/internal/llm"
	"github.com/abaykopenov/llm-scorm/internal/progress"
	"github.com/abaykopenov/llm-scorm/internal/scorm"
	"github.com/abaykopenov/llm-scorm/pkg/logging"
	"github.com/abaykopenov/llm-scorm/pkg/storage"
)

// stdoutLedger prints each built package instead of persisting it; the CLI
// has no database.
type stdoutLedger struct{}

func (stdoutLedger) Record(ctx context.Context, entry history.Entry) (history.Entry, error) {
	fmt.Printf("built %s (%s, %d blocks, %d questions)\n",
		entry.Filename, entry.Shape, entry.Blocks, entry.Questions)
	return entry, nil
}

func main() {
	var (
		input     = flag.String("input", "", "Course document JSON file (skips generation)")
		topic     = flag.String("topic", "", "Topic to generate a course for")
		language  = flag.String("language", "", "Course language (default ru)")
		detail    = flag.String("detail", "", "Detail level: brief, normal, detailed, expert")
		pages     = flag.Int("pages", 0, "Pages for a flat course")
		blocks    = flag.Int("blocks", 0, "Content blocks per page")
		questions = flag.Int("questions", 0, "Questions per page")
		modules   = flag.Int("modules", 0, "Modules for a hierarchical course")
		finalTest = flag.Int("final-test", 0, "Final test question count (hierarchical)")
		output    = flag.String("output", ".", "Output directory for the package")
		verbose   = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	level := logging.LevelWarn
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(&logging.Config{Level: level, Format: logging.FormatText})

	store, err := storage.New(&storage.Config{BasePath: *output}, logger)
	if err != nil {
		log.Fatal("output directory: ", err)
	}

	sizeCfg := storage.Config{}
	if err := sizeCfg.Finalize(nil); err != nil {
		log.Fatal(err)
	}
	builder := scorm.NewBuilder(store, stdoutLedger{}, sizeCfg.MaxArtifactSizeBytes(), logger)

	ctx := context.Background()

	var doc *course.Document
	switch {
	case *input != "":
		doc, err = readDocument(*input)
	case *topic != "":
		doc, err = generateDocument(ctx, logger, llm.Request{
			Topic:              *topic,
			Language:           *language,
			DetailLevel:        *detail,
			Pages:              *pages,
			BlocksPerPage:      *blocks,
			QuestionsPerPage:   *questions,
			Modules:            *modules,
			FinalTestQuestions: *finalTest,
		}, builder)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}

	artifact, err := builder.Build(ctx, doc)
	if err != nil {
		log.Fatal("build failed: ", err)
	}

	path, err := store.Path(ctx, artifact.Filename)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(path)
}

func readDocument(path string) (*course.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var doc course.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// generateDocument runs one generation through the orchestrator, reporting
// progress on stderr until a terminal phase is observed.
func generateDocument(ctx context.Context, logger *slog.Logger, req llm.Request, builder generation.Builder) (*course.Document, error) {
	llmCfg := config.LLMConfig{}
	if err := llmCfg.Finalize(); err != nil {
		return nil, fmt.Errorf("llm config: %w", err)
	}
	if req.Language == "" {
		req.Language = llmCfg.DefaultLanguage
	}

	client, err := llm.New(llm.Params{
		BaseURL:     llmCfg.BaseURL,
		APIKey:      llmCfg.APIKey,
		Model:       llmCfg.Model,
		Timeout:     llmCfg.TimeoutDuration(),
		Temperature: llmCfg.Temperature,
		MaxTokens:   llmCfg.MaxTokens,
	}, logger)
	if err != nil {
		return nil, err
	}

	factory := func(ctx context.Context) (generation.Generator, error) {
		return client, nil
	}
	orch := generation.New(ctx, factory, builder, logger)
	if err := orch.Start(req); err != nil {
		return nil, err
	}

	done := make(chan progress.Update, 1)
	poller := progress.NewPoller(500*time.Millisecond, logger)
	poller.Start(ctx,
		func(ctx context.Context) (progress.Status, error) {
			snap := orch.Status()
			return progress.Status{
				Terminal: !snap.Generating(),
				Failed:   snap.Phase == generation.PhaseFailed,
				Percent:  snap.Percent,
				Message:  snap.Message,
			}, nil
		},
		func(u progress.Update) {
			fmt.Fprintf(os.Stderr, "\r%3d%% %-60s", u.Percent, u.Message)
			if u.Terminal {
				fmt.Fprintln(os.Stderr)
				done <- u
			}
		},
	)

	u := <-done
	poller.Cancel()

	if u.Failed {
		snap := orch.Status()
		return nil, fmt.Errorf("generation failed: %s", snap.Error)
	}
	return orch.Current()
}

package scorm

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/abaykopenov/llm-scorm/internal/course"
	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/pkg/storage"
)

type fakeLedger struct {
	entries []history.Entry
	fail    error
}

func (f *fakeLedger) Record(_ context.Context, entry history.Entry) (history.Entry, error) {
	if f.fail != nil {
		return history.Entry{}, f.fail
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) storage.System {
	t.Helper()

	store, err := storage.New(&storage.Config{BasePath: t.TempDir()}, testLogger())
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	return store
}

func boolPtr(b bool) *bool { return &b }

func flatDoc() *course.Document {
	return &course.Document{
		Title:       "Основы Go",
		Description: "Введение в язык Go.",
		Language:    "ru",
		Pages: []course.Page{
			{
				Title: "Переменные",
				Blocks: []course.Block{
					{Type: course.KindText, Title: "Теория", Body: "<p>Переменные хранят значения.</p>"},
					{
						Type: course.KindMCQ,
						Body: "Какое ключевое слово объявляет переменную?",
						Options: []course.Option{
							{Text: "var", Correct: true},
							{Text: "let"},
							{Text: "def"},
						},
					},
				},
			},
		},
	}
}

func hierarchicalDoc() *course.Document {
	return &course.Document{
		Title:    "Photosynthesis",
		Language: "en",
		Modules: []course.Module{
			{
				Title: "Foundations",
				Sections: []course.Section{
					{
						Title: "Cells",
						SCOs: []course.SCO{
							{
								Title: "Chloroplasts",
								Screens: []course.Screen{
									{Title: "Structure", Blocks: []course.Block{
										{Type: course.KindText, Body: "<p>Membrane-bound organelles.</p>"},
									}},
								},
								Questions: []course.Block{
									{Type: course.KindTrueFalse, Body: "Chloroplasts contain chlorophyll.", CorrectAnswer: boolPtr(true)},
								},
							},
						},
					},
				},
			},
		},
		FinalTest: []course.Block{
			{Type: course.KindTrueFalse, Body: "Plants emit oxygen.", CorrectAnswer: boolPtr(true)},
		},
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		files[f.Name] = string(content)
	}
	return files
}

func TestBuild(t *testing.T) {
	t.Run("flat package contents", func(t *testing.T) {
		store := testStore(t)
		ledger := &fakeLedger{}
		builder := NewBuilder(store, ledger, 0, testLogger())

		artifact, err := builder.Build(context.Background(), flatDoc())
		if err != nil {
			t.Fatalf("build: %v", err)
		}

		if !strings.HasPrefix(artifact.Filename, "osnovy-go-") {
			t.Errorf("filename = %q, want osnovy-go- prefix", artifact.Filename)
		}
		if !strings.HasSuffix(artifact.Filename, ".zip") {
			t.Errorf("filename = %q, want .zip suffix", artifact.Filename)
		}

		data, err := store.Retrieve(context.Background(), artifact.Filename)
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}
		if int64(len(data)) != artifact.Size {
			t.Errorf("stored size = %d, artifact size = %d", len(data), artifact.Size)
		}

		files := readZip(t, data)
		for _, name := range []string{"imsmanifest.xml", "index.html", "style.css", "scorm_api.js"} {
			if files[name] == "" {
				t.Errorf("zip missing %s", name)
			}
		}
		if !strings.Contains(files["index.html"], "Переменные") {
			t.Error("index.html missing page title")
		}
		if !strings.Contains(files["imsmanifest.xml"], `<schemaversion>1.2</schemaversion>`) {
			t.Error("manifest missing schema version")
		}

		if len(ledger.entries) != 1 {
			t.Fatalf("ledger entries = %d, want 1", len(ledger.entries))
		}
		entry := ledger.entries[0]
		if entry.Filename != artifact.Filename {
			t.Errorf("ledger filename = %q, want %q", entry.Filename, artifact.Filename)
		}
		if entry.Shape != "flat" {
			t.Errorf("ledger shape = %q, want flat", entry.Shape)
		}
		if entry.Blocks != 2 || entry.Questions != 1 {
			t.Errorf("ledger counts = %d/%d, want 2/1", entry.Blocks, entry.Questions)
		}
	})

	t.Run("hierarchical package renders all levels", func(t *testing.T) {
		store := testStore(t)
		builder := NewBuilder(store, &fakeLedger{}, 0, testLogger())

		artifact, err := builder.Build(context.Background(), hierarchicalDoc())
		if err != nil {
			t.Fatalf("build: %v", err)
		}

		data, err := store.Retrieve(context.Background(), artifact.Filename)
		if err != nil {
			t.Fatalf("retrieve: %v", err)
		}

		index := readZip(t, data)["index.html"]
		for _, want := range []string{"Foundations", "Chloroplasts", "Final Test", "Plants emit oxygen."} {
			if !strings.Contains(index, want) {
				t.Errorf("index.html missing %q", want)
			}
		}
	})

	t.Run("rebuild produces distinct artifacts", func(t *testing.T) {
		store := testStore(t)
		ledger := &fakeLedger{}
		builder := NewBuilder(store, ledger, 0, testLogger())

		first, err := builder.Build(context.Background(), flatDoc())
		if err != nil {
			t.Fatalf("first build: %v", err)
		}
		second, err := builder.Build(context.Background(), flatDoc())
		if err != nil {
			t.Fatalf("second build: %v", err)
		}

		if first.Filename == second.Filename {
			t.Errorf("rebuild reused filename %q", first.Filename)
		}
		if len(ledger.entries) != 2 {
			t.Errorf("ledger entries = %d, want 2", len(ledger.entries))
		}
	})

	t.Run("invalid document rejected", func(t *testing.T) {
		store := testStore(t)
		ledger := &fakeLedger{}
		builder := NewBuilder(store, ledger, 0, testLogger())

		_, err := builder.Build(context.Background(), &course.Document{Title: "Empty"})
		if !errors.Is(err, course.ErrInvalidDocument) {
			t.Fatalf("error = %v, want ErrInvalidDocument", err)
		}
		if len(ledger.entries) != 0 {
			t.Error("invalid build must not append history")
		}
	})

	t.Run("size limit enforced", func(t *testing.T) {
		store := testStore(t)
		builder := NewBuilder(store, &fakeLedger{}, 64, testLogger())

		_, err := builder.Build(context.Background(), flatDoc())
		if !errors.Is(err, ErrBuild) {
			t.Fatalf("error = %v, want ErrBuild", err)
		}
	})

	t.Run("ledger failure surfaces", func(t *testing.T) {
		store := testStore(t)
		ledger := &fakeLedger{fail: errors.New("db down")}
		builder := NewBuilder(store, ledger, 0, testLogger())

		_, err := builder.Build(context.Background(), flatDoc())
		if !errors.Is(err, ErrBuild) {
			t.Fatalf("error = %v, want ErrBuild", err)
		}
	})
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Photosynthesis", "photosynthesis"},
		{"Основы Go", "osnovy-go"},
		{"Курс по Python", "kurs-po-python"},
		{"Hello,  World!", "hello-world"},
		{"---", "course"},
		{"", "course"},
		{"Щука и ёж", "shchuka-i-yozh"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateManifest(t *testing.T) {
	data, err := generateManifest("Основы Go")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	manifest := string(data)

	for _, want := range []string{
		`identifier="osnovy-go"`,
		`<schemaversion>1.2</schemaversion>`,
		`<adlcp:masteryscore>80</adlcp:masteryscore>`,
		`adlcp:scormtype="sco"`,
		`href="index.html"`,
		`href="style.css"`,
		`href="scorm_api.js"`,
		`default="default-org"`,
	} {
		if !strings.Contains(manifest, want) {
			t.Errorf("manifest missing %q", want)
		}
	}
}

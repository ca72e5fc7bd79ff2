package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abaykopenov/llm-scorm/internal/config"
	"github.com/abaykopenov/llm-scorm/internal/course"
	"github.com/abaykopenov/llm-scorm/internal/generation"
	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/internal/llm"
	"github.com/abaykopenov/llm-scorm/internal/scorm"
	"github.com/abaykopenov/llm-scorm/internal/settings"
	"github.com/abaykopenov/llm-scorm/pkg/routes"
	"github.com/abaykopenov/llm-scorm/pkg/storage"
)

type memSettings struct {
	mu      sync.Mutex
	current settings.Settings
}

func (m *memSettings) Get(ctx context.Context) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *memSettings) Save(ctx context.Context, incoming settings.Settings) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(incoming.LLMAPIKey) == settings.MaskPlaceholder {
		incoming.LLMAPIKey = m.current.LLMAPIKey
	}
	if strings.TrimSpace(incoming.LMSPassword) == settings.MaskPlaceholder {
		incoming.LMSPassword = m.current.LMSPassword
	}
	m.current = incoming
	return incoming, nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (m *memHistory) Record(ctx context.Context, entry history.Entry) (history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]history.Entry{entry}, m.entries...)
	return entry, nil
}

func (m *memHistory) GetByFilename(ctx context.Context, filename string) (history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Filename == filename {
			return e, nil
		}
	}
	return history.Entry{}, history.ErrNotFound
}

func (m *memHistory) List(ctx context.Context, limit int) ([]history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]history.Entry, len(m.entries))
	copy(out, m.entries)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubGenerator struct {
	doc     *course.Document
	err     error
	release chan struct{}
}

func (g *stubGenerator) GenerateCourse(ctx context.Context, req *llm.Request) (*course.Document, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.doc.Clone(), nil
}

func sampleDocument() *course.Document {
	correct := true
	return &course.Document{
		Title:    "Основы Go",
		Language: "ru",
		Pages: []course.Page{
			{
				Title: "Введение",
				Blocks: []course.Block{
					{Type: course.KindText, Title: "Что такое Go", Body: "Компилируемый язык."},
					{
						Type:  course.KindMCQ,
						Title: "Проверка",
						Body:  "Кто создал Go?",
						Options: []course.Option{
							{Text: "Google", Correct: true},
							{Text: "Microsoft"},
						},
					},
				},
			},
			{
				Title: "Типы",
				Blocks: []course.Block{
					{Type: course.KindTrueFalse, Title: "Вопрос", Body: "Go статически типизирован.", CorrectAnswer: &correct},
				},
			},
		},
	}
}

type testEnv struct {
	srv      *httptest.Server
	rt       *Runtime
	settings *memSettings
	history  *memHistory
	gen      *stubGenerator
	store    storage.System
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		LLM: config.LLMConfig{Timeout: "5s", Temperature: 0.7, MaxTokens: 1024},
		LMS: config.LMSConfig{UploadTimeout: "5s"},
	}

	store, err := storage.New(&storage.Config{BasePath: t.TempDir()}, logger)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	hist := &memHistory{}
	builder := scorm.NewBuilder(store, hist, 100<<20, logger)

	gen := &stubGenerator{doc: sampleDocument()}
	factory := func(ctx context.Context) (generation.Generator, error) {
		return gen, nil
	}

	orch := generation.New(context.Background(), factory, builder, logger)
	set := &memSettings{}

	rt := NewRuntime(cfg, orch, set, hist, store, logger)
	sys := routes.New()
	rt.Register(sys)

	srv := httptest.NewServer(sys.Build())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, rt: rt, settings: set, history: hist, gen: gen, store: store}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	res, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return res, decodeObject(t, res)
}

func (e *testEnv) getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()

	res, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return res, decodeObject(t, res)
}

func decodeObject(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (e *testEnv) waitForIdle(t *testing.T) map[string]any {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, body := e.getJSON(t, "/api/generate/status")
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status endpoint returned %d", res.StatusCode)
		}
		if body["generating"] == false {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("generation did not finish in time")
	return nil
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.postJSON(t, "/api/settings", settings.Settings{
		LLMBaseURL: "https://api.example.com",
		LLMAPIKey:  "sk-secret",
		LLMModel:   "gpt-4o-mini",
	})
	if body["llm_api_key"] != settings.MaskPlaceholder {
		t.Fatalf("expected masked api key in save response, got %v", body["llm_api_key"])
	}

	_, body = env.getJSON(t, "/api/settings")
	if body["llm_api_key"] != settings.MaskPlaceholder {
		t.Fatalf("expected masked api key, got %v", body["llm_api_key"])
	}
	if body["llm_base_url"] != "https://api.example.com" {
		t.Fatalf("expected base url to round-trip, got %v", body["llm_base_url"])
	}

	// Posting the placeholder back keeps the stored secret.
	env.postJSON(t, "/api/settings", settings.Settings{
		LLMBaseURL: "https://api.example.com",
		LLMAPIKey:  settings.MaskPlaceholder,
		LLMModel:   "gpt-4o-mini",
	})
	if env.settings.current.LLMAPIKey != "sk-secret" {
		t.Fatalf("placeholder overwrote the stored key: %q", env.settings.current.LLMAPIKey)
	}
}

func TestStartGenerationSingleFlight(t *testing.T) {
	env := newTestEnv(t)
	env.gen.release = make(chan struct{})

	req := map[string]any{"topic": "Фотосинтез"}

	res, body := env.postJSON(t, "/api/generate", req)
	if res.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("first start rejected: %d %v", res.StatusCode, body)
	}

	res, body = env.postJSON(t, "/api/generate", req)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for concurrent start, got %d", res.StatusCode)
	}
	if body["ok"] != false || body["error"] == "" {
		t.Fatalf("expected failure envelope, got %v", body)
	}

	close(env.gen.release)
	env.waitForIdle(t)
}

func TestGenerationStatusDeliversCourse(t *testing.T) {
	env := newTestEnv(t)

	res, _ := env.postJSON(t, "/api/generate", map[string]any{"topic": "Основы Go"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start failed: %d", res.StatusCode)
	}

	body := env.waitForIdle(t)
	if body["error"] != nil {
		t.Fatalf("unexpected error in status: %v", body["error"])
	}
	if body["pct"] != float64(100) {
		t.Fatalf("expected pct 100, got %v", body["pct"])
	}
	courseBody, ok := body["course"].(map[string]any)
	if !ok {
		t.Fatalf("expected course in terminal status, got %T", body["course"])
	}
	if courseBody["title"] != "Основы Go" {
		t.Fatalf("unexpected course title %v", courseBody["title"])
	}
}

func TestGenerationStatusReportsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errors.New("model exploded")

	env.postJSON(t, "/api/generate", map[string]any{"topic": "Основы Go"})
	body := env.waitForIdle(t)

	if body["error"] == nil || body["error"] == "" {
		t.Fatalf("expected error in status, got %v", body)
	}
	if body["course"] != nil {
		t.Fatalf("failed generation must not carry a course, got %v", body["course"])
	}
}

func TestStartGenerationRejectsBadParameters(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.postJSON(t, "/api/generate", map[string]any{"topic": "", "pages": 3})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty topic, got %d", res.StatusCode)
	}
	if body["ok"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
}

func TestLoadCourse(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.postJSON(t, "/api/course/load", sampleDocument())
	if res.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("valid document rejected: %d %v", res.StatusCode, body)
	}

	// Shapeless document is rejected and the working document survives.
	res, _ = env.postJSON(t, "/api/course/load", course.Document{Title: "Пусто"})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for shapeless document, got %d", res.StatusCode)
	}

	_, status := env.getJSON(t, "/api/generate/status")
	courseBody, ok := status["course"].(map[string]any)
	if !ok || courseBody["title"] != "Основы Go" {
		t.Fatalf("working document lost after rejected load: %v", status["course"])
	}
}

func TestUpdateBuildDownloadPreview(t *testing.T) {
	env := newTestEnv(t)

	if res, _ := env.postJSON(t, "/api/course/load", sampleDocument()); res.StatusCode != http.StatusOK {
		t.Fatal("load failed")
	}

	edited := sampleDocument()
	edited.Pages[0].Blocks[0].Body = "Отредактировано."

	res, body := env.postJSON(t, "/api/course", edited)
	if res.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("update failed: %d %v", res.StatusCode, body)
	}
	filename, _ := body["filename"].(string)
	if !strings.HasPrefix(filename, "osnovy-go-") || !strings.HasSuffix(filename, ".zip") {
		t.Fatalf("unexpected artifact filename %q", filename)
	}

	download, err := http.Get(env.srv.URL + "/api/download/" + filename)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer download.Body.Close()
	if download.StatusCode != http.StatusOK {
		t.Fatalf("download returned %d", download.StatusCode)
	}
	if ct := download.Header.Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("unexpected content type %q", ct)
	}
	data, _ := io.ReadAll(download.Body)
	if len(data) < 2 || data[0] != 'P' || data[1] != 'K' {
		t.Fatal("download is not a zip archive")
	}

	preview, err := http.Get(env.srv.URL + "/api/preview/" + filename + "/index.html")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	defer preview.Body.Close()
	if preview.StatusCode != http.StatusOK {
		t.Fatalf("preview returned %d", preview.StatusCode)
	}
	page, _ := io.ReadAll(preview.Body)
	if !strings.Contains(string(page), "Отредактировано.") {
		t.Fatal("preview does not reflect the edited document")
	}

	// The bare trailing-slash form serves index.html.
	root, err := http.Get(env.srv.URL + "/api/preview/" + filename + "/")
	if err != nil {
		t.Fatalf("preview root: %v", err)
	}
	defer root.Body.Close()
	if root.StatusCode != http.StatusOK {
		t.Fatalf("preview root returned %d", root.StatusCode)
	}
	rootPage, _ := io.ReadAll(root.Body)
	if !strings.Contains(string(rootPage), "Отредактировано.") {
		t.Fatal("preview root did not serve index.html")
	}

	// A second build produces a distinct artifact and a second history entry.
	res, body = env.postJSON(t, "/api/build", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("build failed: %d", res.StatusCode)
	}
	if body["filename"] == filename {
		t.Fatal("rebuild reused the previous artifact filename")
	}

	_, err = http.Get(env.srv.URL + "/api/history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	entries, err := env.history.List(context.Background(), 0)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected 2 history entries, got %d (%v)", len(entries), err)
	}
}

func TestBuildWithoutDocument(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.postJSON(t, "/api/build", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without a document, got %d", res.StatusCode)
	}
	if body["ok"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
}

func TestDownloadMissingArtifact(t *testing.T) {
	env := newTestEnv(t)

	res, err := http.Get(env.srv.URL + "/api/download/nope.zip")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.postJSON(t, "/api/course/load", sampleDocument())
	env.postJSON(t, "/api/build", nil)
	env.postJSON(t, "/api/build", nil)

	res, err := http.Get(env.srv.URL + "/api/history?limit=1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer res.Body.Close()

	var body struct {
		OK    bool            `json:"ok"`
		Items []history.Entry `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if !body.OK {
		t.Fatalf("expected ok envelope, got %+v", body)
	}
	if len(body.Items) != 1 {
		t.Fatalf("expected 1 entry with limit=1, got %d", len(body.Items))
	}
	if body.Items[0].Title != "Основы Go" {
		t.Fatalf("unexpected history title %q", body.Items[0].Title)
	}
}

func TestUploadRejectsMissingConfigLocally(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.postJSON(t, "/api/upload", map[string]any{})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unset LMS settings, got %d", res.StatusCode)
	}
	if body["ok"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
}

func TestUploadWithoutBuiltPackages(t *testing.T) {
	env := newTestEnv(t)
	env.settings.current = settings.Settings{
		LMSBaseURL:  "http://chamilo.local",
		LMSUsername: "admin",
		LMSPassword: "secret",
	}

	res, _ := env.postJSON(t, "/api/upload", map[string]any{})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 with empty history, got %d", res.StatusCode)
	}

	// An unrecorded filename is rejected before any network call too.
	res, _ = env.postJSON(t, "/api/upload", map[string]any{"filename": "ghost.zip"})
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unrecorded filename, got %d", res.StatusCode)
	}
}

func TestLLMProbeMessage(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		models []string
		want   string
	}{
		{"no models listed", "gpt-4o", nil, "LLM provider reachable"},
		{"model found", "llama3", []string{"llama3:8b", "phi3"}, "LLM provider reachable, 2 models, model llama3 found"},
		{"model missing", "gpt-4o", []string{"llama3:8b"}, "LLM provider reachable, 1 models, model gpt-4o not listed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := llmProbeMessage(tt.model, tt.models); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTestConnectionUnknownKind(t *testing.T) {
	env := newTestEnv(t)

	res, _ := env.postJSON(t, "/api/test-connection", map[string]any{"kind": "ftp"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", res.StatusCode)
	}
}

// Package api exposes the HTTP surface of the course generation pipeline:
// settings, generation control, document editing, package building,
// downloads, previews, history, and LMS uploads.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/abaykopenov/llm-scorm/internal/config"
	"github.com/abaykopenov/llm-scorm/internal/generation"
	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/internal/llm"
	"github.com/abaykopenov/llm-scorm/internal/lms"
	"github.com/abaykopenov/llm-scorm/internal/settings"
	"github.com/abaykopenov/llm-scorm/pkg/routes"
	"github.com/abaykopenov/llm-scorm/pkg/storage"
)

// SettingsStore reads and persists application settings.
type SettingsStore interface {
	Get(ctx context.Context) (settings.Settings, error)
	Save(ctx context.Context, incoming settings.Settings) (settings.Settings, error)
}

// HistoryLog lists recorded package builds, newest first.
type HistoryLog interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
	GetByFilename(ctx context.Context, filename string) (history.Entry, error)
}

// Runtime wires the domain systems into HTTP handlers.
type Runtime struct {
	cfg      *config.Config
	orch     *generation.Orchestrator
	settings SettingsStore
	history  HistoryLog
	store    storage.System
	logger   *slog.Logger
}

func NewRuntime(
	cfg *config.Config,
	orch *generation.Orchestrator,
	settingsStore SettingsStore,
	historyRepo HistoryLog,
	store storage.System,
	logger *slog.Logger,
) *Runtime {
	return &Runtime{
		cfg:      cfg,
		orch:     orch,
		settings: settingsStore,
		history:  historyRepo,
		store:    store,
		logger:   logger.With("system", "api"),
	}
}

// Routes returns the full API route group.
func (rt *Runtime) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/api",
		Description: "Course generation pipeline",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/settings", Handler: rt.GetSettings},
			{Method: "POST", Pattern: "/settings", Handler: rt.SaveSettings},
			{Method: "POST", Pattern: "/test-connection", Handler: rt.TestConnection},
			{Method: "POST", Pattern: "/lms/courses", Handler: rt.ListRemoteCourses},
			{Method: "POST", Pattern: "/generate", Handler: rt.StartGeneration},
			{Method: "GET", Pattern: "/generate/status", Handler: rt.GenerationStatus},
			{Method: "POST", Pattern: "/course/load", Handler: rt.LoadCourse},
			{Method: "POST", Pattern: "/course", Handler: rt.UpdateCourse},
			{Method: "POST", Pattern: "/build", Handler: rt.BuildPackage},
			{Method: "GET", Pattern: "/download/{filename}", Handler: rt.Download},
			{Method: "GET", Pattern: "/preview/{filename}/{path...}", Handler: rt.Preview},
			{Method: "GET", Pattern: "/history", Handler: rt.History},
			{Method: "POST", Pattern: "/upload", Handler: rt.Upload},
		},
	}
}

// Register adds the API group to the route system.
func (rt *Runtime) Register(sys routes.System) {
	sys.RegisterGroup(rt.Routes())
}

// llmClient builds an LLM client from the current settings snapshot.
func (rt *Runtime) llmClient(ctx context.Context) (*llm.Client, error) {
	snap, err := rt.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	return llm.New(llm.Params{
		BaseURL:     snap.LLMBaseURL,
		APIKey:      snap.LLMAPIKey,
		Model:       snap.LLMModel,
		Timeout:     rt.cfg.LLM.TimeoutDuration(),
		Temperature: rt.cfg.LLM.Temperature,
		MaxTokens:   rt.cfg.LLM.MaxTokens,
	}, rt.logger)
}

// lmsClient builds a Chamilo client from the current settings snapshot.
func (rt *Runtime) lmsClient(ctx context.Context) (*lms.Client, string, error) {
	snap, err := rt.settings.Get(ctx)
	if err != nil {
		return nil, "", err
	}

	client, err := lms.New(lms.Params{
		BaseURL:  snap.LMSBaseURL,
		Username: snap.LMSUsername,
		Password: snap.LMSPassword,
		Timeout:  rt.cfg.LMS.UploadTimeoutDuration(),
	}, rt.logger)
	if err != nil {
		return nil, "", err
	}
	return client, snap.LMSCourseCode, nil
}

// NewGeneratorFactory builds the orchestrator's generator factory from the
// settings store, so every accepted generation picks up the latest saved
// provider settings.
func NewGeneratorFactory(cfg *config.Config, store SettingsStore, logger *slog.Logger) generation.GeneratorFactory {
	return func(ctx context.Context) (generation.Generator, error) {
		snap, err := store.Get(ctx)
		if err != nil {
			return nil, err
		}

		return llm.New(llm.Params{
			BaseURL:     snap.LLMBaseURL,
			APIKey:      snap.LLMAPIKey,
			Model:       snap.LLMModel,
			Timeout:     cfg.LLM.TimeoutDuration(),
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		}, logger)
	}
}

func mapStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case isLMSError(err):
		return mapLMSStatus(err)
	default:
		return generation.MapHTTPStatus(err)
	}
}

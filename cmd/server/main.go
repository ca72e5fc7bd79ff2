package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/abaykopenov/llm-scorm/internal/api"
	"github.com/abaykopenov/llm-scorm/internal/config"
	"github.com/abaykopenov/llm-scorm/internal/generation"
	"github.com/abaykopenov/llm-scorm/internal/history"
	"github.com/abaykopenov/llm-scorm/internal/infrastructure"
	"github.com/abaykopenov/llm-scorm/internal/migrations"
	"github.com/abaykopenov/llm-scorm/internal/scorm"
	"github.com/abaykopenov/llm-scorm/internal/server"
	"github.com/abaykopenov/llm-scorm/internal/settings"
	"github.com/abaykopenov/llm-scorm/pkg/middleware"
	"github.com/abaykopenov/llm-scorm/pkg/routes"
	"github.com/abaykopenov/llm-scorm/web/app"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed: ", err)
	}
	if err := cfg.Finalize(); err != nil {
		log.Fatal("config finalize failed: ", err)
	}

	infra, err := infrastructure.New(cfg)
	if err != nil {
		log.Fatal("infrastructure init failed: ", err)
	}
	logger := infra.Logger

	if err := infra.Start(); err != nil {
		logger.Error("infrastructure start failed", "error", err)
		os.Exit(1)
	}
	if err := infra.Database.Migrate(migrations.Files, migrations.Dir); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	settingsStore := settings.NewStore(infra.Database.DB(), cfg.DefaultSettings(), logger)
	historyRepo := history.NewRepo(infra.Database.DB(), logger)
	builder := scorm.NewBuilder(infra.Storage, historyRepo, cfg.Storage.MaxArtifactSizeBytes(), logger)

	factory := api.NewGeneratorFactory(cfg, settingsStore, logger)
	orch := generation.New(infra.Lifecycle.Context(), factory, builder, logger)

	runtime := api.NewRuntime(cfg, orch, settingsStore, historyRepo, infra.Storage, logger)

	routeSys := routes.New()
	runtime.Register(routeSys)
	routeSys.RegisterGroup(app.NewHandler().Routes())

	handler := buildHandler(cfg, routeSys, logger)
	srv := server.New(&cfg.Server, handler, cfg.ShutdownTimeoutDuration(), logger)
	if err := srv.Start(infra.Lifecycle); err != nil {
		logger.Error("server start failed", "error", err)
		os.Exit(1)
	}

	infra.Lifecycle.WaitForStartup()
	logger.Info("service started", "addr", cfg.Server.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	if err := infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("service stopped gracefully")
}

func buildHandler(cfg *config.Config, routeSys routes.System, logger *slog.Logger) http.Handler {
	handler := routeSys.Build()
	handler = middleware.TrimSlash("/api/")(handler)
	handler = middleware.CORS(&cfg.CORS)(handler)
	handler = middleware.Logger(logger)(handler)
	return handler
}

// Command procflow runs a single workflow tree to completion.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smilemakc/procflow/internal/config"
	"github.com/smilemakc/procflow/internal/infrastructure/localstorage"
	"github.com/smilemakc/procflow/internal/infrastructure/logger"
	"github.com/smilemakc/procflow/internal/infrastructure/storage"
	"github.com/smilemakc/procflow/pkg/engine"
	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == engine.InvokeSubcommand() {
		os.Exit(engine.RunInvoked(os.Args[2:]))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("starting procflow")

	var dbService service.DBService = service.NoDBService{}
	if cfg.Database.URL != "" {
		db, err := storage.Connect(cfg.Database)
		if err != nil {
			appLogger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		dbService = storage.New(db)
		appLogger.Info("database connected")
	}

	var storageService service.StorageService = service.NoStorageService{}
	if cfg.Storage.BasePath != "" {
		storageService = localstorage.New(cfg.Storage.BasePath)
		appLogger.Info("artifact storage ready", "path", cfg.Storage.BasePath)
	}

	wf, err := buildWorkflow()
	if err != nil {
		appLogger.Error("failed to build workflow", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(dbService, storageService, appLogger, cfg.Run)
	os.Exit(eng.Run(ctx, wf))
}

// buildWorkflow assembles the sample tree this binary runs. A real
// deployment would load this from whatever authoring layer sits upstream
// of the engine; that layer is out of scope here.
func buildWorkflow() (*models.Workflow, error) {
	root := models.NewNode("pipeline",
		models.NewNode("prepare").WithExecutable(models.NewCommand("echo preparing", 10*time.Second)),
		models.NewNode("stages",
			models.NewNode("build").WithExecutable(models.NewCommand("echo building", 30*time.Second)),
			models.NewNode("test").WithExecutable(models.NewCommand("echo testing", 30*time.Second)),
		).WithParallel(true),
		models.NewNode("publish").WithExecutable(models.NewCommand("echo publishing", 10*time.Second)),
	)

	wf, err := models.NewWorkflow(fmt.Sprintf("run-%d", os.Getpid()), root)
	if err != nil {
		return nil, fmt.Errorf("construct workflow: %w", err)
	}
	return wf, nil
}

package engine

import (
	"context"

	"github.com/smilemakc/procflow/internal/config"
	"github.com/smilemakc/procflow/internal/infrastructure/logger"
	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

// Engine is the top-level entry point: it persists a workflow, drives its
// root node to completion, and reports the outcome.
type Engine struct {
	db      service.DBService
	storage service.StorageService
	log     *logger.Logger
	run     config.RunConfig
}

// New builds an Engine. A nil db or storage falls back to the no-op
// implementations so the engine always runs even with no backing store
// configured.
func New(db service.DBService, storage service.StorageService, log *logger.Logger, run config.RunConfig) *Engine {
	if db == nil {
		db = service.NoDBService{}
	}
	if storage == nil {
		storage = service.NoStorageService{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Engine{db: db, storage: storage, log: log, run: run}
}

// Run persists wf and executes it to completion. It returns 0 if the
// workflow's root node succeeded, 1 otherwise — mirroring a process exit
// code so a thin cmd/ wrapper can pass it straight to os.Exit.
func (e *Engine) Run(ctx context.Context, wf *models.Workflow) int {
	log := e.log.With("workflow", wf.Name, "workflow_id", wf.ID())

	if _, err := e.db.AddWorkflow(ctx, wf); err != nil {
		log.Error("persist workflow failed", "err", err)
		return 1
	}

	log.Info("workflow started")

	executor := NewNodeExecutor(e.db, e.storage, e.log, e.run)
	result := executor.Execute(ctx, wf, wf.Root)

	log = log.With("outcome", result.Outcome.String())
	if result.Fail() {
		log.Error("workflow finished")
		return 1
	}
	log.Info("workflow finished")
	return 0
}

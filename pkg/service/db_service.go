// Package service defines the capability interfaces the engine consumes
// for persistence (DBService) and artifact storage (StorageService), plus
// their no-op default implementations. Concrete implementations live under
// internal/infrastructure.
package service

import (
	"context"

	"github.com/smilemakc/procflow/pkg/models"
)

// DBService persists workflow structure and execution lifecycle events.
// None of its methods are required to be thread-safe against themselves;
// the engine serialises calls for a given node.
type DBService interface {
	// AddWorkflow persists the workflow and all of its nodes (name, parent
	// linkage via lft/rgt, command/function descriptor where available)
	// and returns the persisted workflow id.
	AddWorkflow(ctx context.Context, wf *models.Workflow) (string, error)

	// StartExecution records the start timestamp for a node.
	StartExecution(ctx context.Context, wf *models.Workflow, node *models.Node) error

	// EndExecution records the end timestamp and outcome for a node.
	// Idempotent for a given node within one run.
	EndExecution(ctx context.Context, wf *models.Workflow, node *models.Node, outcome models.Outcome) error
}

// NoDBService satisfies DBService silently; it is the default when no
// database is configured.
type NoDBService struct{}

var _ DBService = NoDBService{}

func (NoDBService) AddWorkflow(ctx context.Context, wf *models.Workflow) (string, error) {
	return "", nil
}

func (NoDBService) StartExecution(ctx context.Context, wf *models.Workflow, node *models.Node) error {
	return nil
}

func (NoDBService) EndExecution(ctx context.Context, wf *models.Workflow, node *models.Node, outcome models.Outcome) error {
	return nil
}

// Package storage implements service.DBService against PostgreSQL via bun.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	storagemodels "github.com/smilemakc/procflow/internal/infrastructure/storage/models"
	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

var _ service.DBService = (*DBService)(nil)

// DBService persists workflows, their node trees and per-node execution
// lifecycle events using bun over a PostgreSQL connection.
type DBService struct {
	db *bun.DB

	mu         sync.Mutex
	openExecID map[string]string // workflowID+"/"+nodeID -> procflow_node_executions.id
}

// New wraps an already-opened bun.DB (see Connect) in a DBService.
func New(db *bun.DB) *DBService {
	return &DBService{db: db, openExecID: make(map[string]string)}
}

// AddWorkflow inserts the workflow and its full node tree in one
// transaction, flattening the tree by a pre-order walk and carrying each
// node's parent id along (the domain Node type itself has no parent
// pointer, so that linkage only exists at the persistence boundary).
func (s *DBService) AddWorkflow(ctx context.Context, wf *models.Workflow) (string, error) {
	if wf.Root == nil {
		return "", fmt.Errorf("add workflow: %w", models.ErrInvalidTree)
	}

	wfRow := &storagemodels.WorkflowModel{
		ID:   wf.ID(),
		Name: wf.Name,
	}

	rows := flattenNodes(wf.ID(), wf.Root, nil)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(wfRow).Exec(ctx); err != nil {
			return fmt.Errorf("insert workflow: %w", err)
		}
		if len(rows) > 0 {
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return fmt.Errorf("insert nodes: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDBUnavailable, err)
	}
	return wf.ID(), nil
}

// flattenNodes walks node's subtree pre-order, producing one row per node
// with parentID threaded through.
func flattenNodes(workflowID string, node *models.Node, parentID *string) []*storagemodels.NodeModel {
	row := &storagemodels.NodeModel{
		ID:         node.ID(),
		WorkflowID: workflowID,
		ParentID:   parentID,
		Name:       node.Name,
		Parallel:   node.Parallel,
		Lft:        node.Lft(),
		Rgt:        node.Rgt(),
	}
	if node.Executable != nil {
		row.ExecutableKind = string(node.Executable.Kind)
		row.Cmd = node.Executable.Cmd
		row.Target = node.Executable.Target
		if t := node.Executable.Timeout; t != nil {
			ms := t.Milliseconds()
			row.TimeoutMs = &ms
		}
	}

	rows := []*storagemodels.NodeModel{row}
	id := node.ID()
	for _, child := range node.Children {
		rows = append(rows, flattenNodes(workflowID, child, &id)...)
	}
	return rows
}

// StartExecution opens a node_executions row for node and remembers its
// id so the matching EndExecution call updates the same row.
func (s *DBService) StartExecution(ctx context.Context, wf *models.Workflow, node *models.Node) error {
	row := &storagemodels.NodeExecutionModel{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID(),
		NodeID:     node.ID(),
		StartedAt:  time.Now(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: start execution: %v", models.ErrDBUnavailable, err)
	}

	s.mu.Lock()
	s.openExecID[execKey(wf.ID(), node.ID())] = row.ID
	s.mu.Unlock()
	return nil
}

// EndExecution closes the node_executions row StartExecution opened,
// recording the terminal outcome and return code.
func (s *DBService) EndExecution(ctx context.Context, wf *models.Workflow, node *models.Node, outcome models.Outcome) error {
	key := execKey(wf.ID(), node.ID())

	s.mu.Lock()
	id, ok := s.openExecID[key]
	delete(s.openExecID, key)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: end execution: no open execution for node %s", models.ErrDBUnavailable, node.Name)
	}

	now := time.Now()
	var retcode *int
	if r := node.Result(); r != nil {
		retcode = r.Retcode
	}

	_, err := s.db.NewUpdate().
		Model((*storagemodels.NodeExecutionModel)(nil)).
		Set("ended_at = ?", now).
		Set("outcome = ?", outcome.String()).
		Set("retcode = ?", retcode).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: end execution: %v", models.ErrDBUnavailable, err)
	}
	return nil
}

func execKey(workflowID, nodeID string) string { return workflowID + "/" + nodeID }

// WorkflowStatistics summarizes node_executions for a workflow: counts per
// outcome (FAIL and CHILD_FAILED counted together in FailCount) plus the
// average duration of its finished executions, grouping nodes included.
type WorkflowStatistics struct {
	TotalExecutions int
	SuccessCount    int
	FailCount       int
	TimeoutCount    int
	CancelledCount  int
	AvgDurationSecs float64
}

// GetStatistics aggregates node_executions for workflowID. It is a
// supplemental read method, not part of the DBService interface the engine
// depends on; callers that only need engine semantics never reach it.
func (s *DBService) GetStatistics(ctx context.Context, workflowID string) (*WorkflowStatistics, error) {
	stats := &WorkflowStatistics{}

	total, err := s.db.NewSelect().
		Model((*storagemodels.NodeExecutionModel)(nil)).
		Where("workflow_id = ?", workflowID).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: count executions: %v", models.ErrDBUnavailable, err)
	}
	stats.TotalExecutions = total

	var outcomeCounts []struct {
		Outcome string
		Count   int
	}
	err = s.db.NewSelect().
		Model((*storagemodels.NodeExecutionModel)(nil)).
		Column("outcome").
		ColumnExpr("COUNT(*) AS count").
		Where("workflow_id = ?", workflowID).
		Group("outcome").
		Scan(ctx, &outcomeCounts)
	if err != nil {
		return nil, fmt.Errorf("%w: count by outcome: %v", models.ErrDBUnavailable, err)
	}
	for _, oc := range outcomeCounts {
		switch oc.Outcome {
		case models.Success.String():
			stats.SuccessCount = oc.Count
		case models.Fail.String(), models.ChildFailed.String():
			stats.FailCount += oc.Count
		case models.Timeout.String():
			stats.TimeoutCount = oc.Count
		case models.Cancelled.String():
			stats.CancelledCount = oc.Count
		}
	}

	var avg struct {
		AvgDuration float64
	}
	err = s.db.NewSelect().
		Model((*storagemodels.NodeExecutionModel)(nil)).
		ColumnExpr("AVG(EXTRACT(EPOCH FROM (ended_at - started_at))) AS avg_duration").
		Where("workflow_id = ? AND ended_at IS NOT NULL", workflowID).
		Scan(ctx, &avg)
	if err == nil {
		stats.AvgDurationSecs = avg.AvgDuration
	}

	return stats, nil
}

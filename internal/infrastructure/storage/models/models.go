// Package models holds the bun ORM row types backing the SQL DBService.
// They are a persistence-layer mirror of pkg/models, not a replacement
// for it: the engine never imports this package directly.
package models

import (
	"time"

	"github.com/uptrace/bun"
)

// WorkflowModel is one persisted workflow run.
type WorkflowModel struct {
	bun.BaseModel `bun:"table:procflow_workflows,alias:wf"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Nodes []*NodeModel `bun:"rel:has-many,join:id=workflow_id" json:"nodes,omitempty"`
}

// NodeModel is one persisted node within a workflow's tree, carrying its
// nested-set interval so ancestor/descendant queries don't need a
// recursive CTE.
type NodeModel struct {
	bun.BaseModel `bun:"table:procflow_nodes,alias:n"`

	ID         string `bun:"id,pk,type:uuid" json:"id"`
	WorkflowID string `bun:"workflow_id,notnull,type:uuid" json:"workflow_id"`
	ParentID   *string `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	Name       string `bun:"name,notnull" json:"name"`

	ExecutableKind string `bun:"executable_kind" json:"executable_kind,omitempty"`
	Cmd            string `bun:"cmd" json:"cmd,omitempty"`
	Target         string `bun:"target" json:"target,omitempty"`

	// TimeoutMs is nil when the node carries no timeout of its own (it
	// falls back to the run's default); present (even 0 or negative)
	// when the node has an explicit timeout.
	TimeoutMs *int64 `bun:"timeout_ms" json:"timeout_ms,omitempty"`

	Parallel bool `bun:"parallel,notnull,default:false" json:"parallel"`
	Lft      int  `bun:"lft,notnull" json:"lft"`
	Rgt      int  `bun:"rgt,notnull" json:"rgt"`
}

// NodeExecutionModel records one run of one node: its start, its end (nil
// while in flight), and the terminal outcome once known.
type NodeExecutionModel struct {
	bun.BaseModel `bun:"table:procflow_node_executions,alias:ne"`

	ID         string     `bun:"id,pk,type:uuid" json:"id"`
	WorkflowID string     `bun:"workflow_id,notnull,type:uuid" json:"workflow_id"`
	NodeID     string     `bun:"node_id,notnull,type:uuid" json:"node_id"`
	StartedAt  time.Time  `bun:"started_at,notnull,default:current_timestamp" json:"started_at"`
	EndedAt    *time.Time `bun:"ended_at" json:"ended_at,omitempty"`
	Outcome    string     `bun:"outcome" json:"outcome,omitempty"`
	Retcode    *int       `bun:"retcode" json:"retcode,omitempty"`
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/procflow/internal/config"
	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

func TestEngineRunReturnsZeroOnSuccess(t *testing.T) {
	root := models.NewNode("root", models.NewNode("a").WithExecutable(models.NewCommand("exit 0", time.Second)))
	wf, err := models.NewWorkflow("wf", root)
	require.NoError(t, err)

	e := New(service.NoDBService{}, service.NoStorageService{}, nil, config.RunConfig{TerminationGrace: time.Second})
	code := e.Run(context.Background(), wf)

	assert.Equal(t, 0, code)
}

func TestEngineRunReturnsOneOnFailure(t *testing.T) {
	root := models.NewNode("root", models.NewNode("a").WithExecutable(models.NewCommand("exit 1", time.Second)))
	wf, err := models.NewWorkflow("wf", root)
	require.NoError(t, err)

	e := New(service.NoDBService{}, service.NoStorageService{}, nil, config.RunConfig{TerminationGrace: time.Second})
	code := e.Run(context.Background(), wf)

	assert.Equal(t, 1, code)
}

type recordingDB struct {
	added  []string
	starts int
	ends   int
}

func (d *recordingDB) AddWorkflow(ctx context.Context, wf *models.Workflow) (string, error) {
	d.added = append(d.added, wf.Name)
	return wf.ID(), nil
}
func (d *recordingDB) StartExecution(ctx context.Context, wf *models.Workflow, node *models.Node) error {
	d.starts++
	return nil
}
func (d *recordingDB) EndExecution(ctx context.Context, wf *models.Workflow, node *models.Node, outcome models.Outcome) error {
	d.ends++
	return nil
}

func TestEngineRunPersistsWorkflowAndExecutions(t *testing.T) {
	root := models.NewNode("root",
		models.NewNode("a").WithExecutable(models.NewCommand("exit 0", time.Second)),
		models.NewNode("b").WithExecutable(models.NewCommand("exit 0", time.Second)),
	)
	wf, err := models.NewWorkflow("wf", root)
	require.NoError(t, err)

	db := &recordingDB{}
	e := New(db, service.NoStorageService{}, nil, config.RunConfig{TerminationGrace: time.Second})
	code := e.Run(context.Background(), wf)

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"wf"}, db.added)
	assert.Equal(t, 3, db.starts) // root + 2 children
	assert.Equal(t, 3, db.ends)
}

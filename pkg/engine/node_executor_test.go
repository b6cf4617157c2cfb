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

func newTestExecutor(run config.RunConfig) *NodeExecutor {
	return NewNodeExecutor(service.NoDBService{}, service.NoStorageService{}, nil, run)
}

func buildWorkflow(t *testing.T, root *models.Node) *models.Workflow {
	t.Helper()
	wf, err := models.NewWorkflow("wf", root)
	require.NoError(t, err)
	return wf
}

func TestSequentialStopsOnFirstFailure(t *testing.T) {
	root := models.NewNode("root",
		models.NewNode("ok").WithExecutable(models.NewCommand("exit 0", time.Second)),
		models.NewNode("bad").WithExecutable(models.NewCommand("exit 1", time.Second)),
		models.NewNode("never").WithExecutable(models.NewCommand("exit 0", time.Second)),
	)
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.ChildFailed, result.Outcome)

	nodes := wf.Nodes()
	assert.Equal(t, models.Success, nodes[1].Result().Outcome)
	assert.Equal(t, models.Fail, nodes[2].Result().Outcome)
	require.Nil(t, nodes[3].Result())
}

func TestSequentialIgnoreFailureRunsAllSiblings(t *testing.T) {
	root := models.NewNode("root",
		models.NewNode("bad").WithExecutable(models.NewCommand("exit 1", time.Second)),
		models.NewNode("after").WithExecutable(models.NewCommand("exit 0", time.Second)),
	)
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{IgnoreFailure: true, TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.ChildFailed, result.Outcome)

	nodes := wf.Nodes()
	assert.Equal(t, models.Fail, nodes[1].Result().Outcome)
	assert.Equal(t, models.Success, nodes[2].Result().Outcome)
}

func TestParallelCancelsSiblingsOnFailure(t *testing.T) {
	root := models.NewNode("root",
		models.NewNode("bad").WithExecutable(models.NewCommand("exit 1", time.Second)),
		models.NewNode("slow").WithExecutable(models.NewCommand("sleep 5", 10*time.Second)),
	).WithParallel(true)
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})

	start := time.Now()
	result := ex.Execute(context.Background(), wf, wf.Root)
	elapsed := time.Since(start)

	assert.Equal(t, models.ChildFailed, result.Outcome)
	assert.Less(t, elapsed, 4*time.Second, "the slow sibling should have been cancelled, not run to completion")

	nodes := wf.Nodes()
	assert.Equal(t, models.Fail, nodes[1].Result().Outcome)
	assert.Equal(t, models.Cancelled, nodes[2].Result().Outcome)
}

func TestOwnExecutableFailureShortCircuitsChildren(t *testing.T) {
	root := models.NewNode("root", models.NewNode("child").WithExecutable(models.NewCommand("exit 0", time.Second))).
		WithExecutable(models.NewCommand("exit 1", time.Second))
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.Fail, result.Outcome)
	assert.Nil(t, wf.Nodes()[1].Result())
}

func TestTimeoutProducesTimeoutOutcome(t *testing.T) {
	root := models.NewNode("slow").WithExecutable(models.NewCommand("sleep 5", 100*time.Millisecond))
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.Timeout, result.Outcome)
	assert.Nil(t, result.Retcode, "a killed node must not report a misleading zero retcode")
}

func TestContextCancellationProducesCancelledOutcome(t *testing.T) {
	root := models.NewNode("slow").WithExecutable(models.NewCommand("sleep 5", 10*time.Second))
	wf := buildWorkflow(t, root)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(ctx, wf, wf.Root)

	assert.Equal(t, models.Cancelled, result.Outcome)
	assert.Nil(t, result.Retcode, "a cancelled node must not report a misleading zero retcode")
}

func TestSuccessfulNodeCarriesItsRetcode(t *testing.T) {
	root := models.NewNode("ok").WithExecutable(models.NewCommand("exit 0", time.Second))
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.Success, result.Outcome)
	require.NotNil(t, result.Retcode)
	assert.Equal(t, 0, *result.Retcode)
}

func TestExplicitNonPositiveTimeoutProducesImmediateTimeout(t *testing.T) {
	root := models.NewNode("slow").WithExecutable(models.NewCommand("sleep 5", 0))
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})

	start := time.Now()
	result := ex.Execute(context.Background(), wf, wf.Root)
	elapsed := time.Since(start)

	assert.Equal(t, models.Timeout, result.Outcome)
	assert.Nil(t, result.Retcode)
	assert.Less(t, elapsed, time.Second, "an explicit non-positive timeout must not wait for the child at all")
}

func TestAbsentTimeoutFallsBackToRunDefault(t *testing.T) {
	root := models.NewNode("slow").WithExecutable(models.NewCommandNoTimeout("sleep 5"))
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second, DefaultTimeout: 100 * time.Millisecond})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.Timeout, result.Outcome)
}

func TestParallelCancellationLeavesPartialOutputOnly(t *testing.T) {
	root := models.NewNode("root",
		models.NewNode("bad").WithExecutable(models.NewCommand("no-such-cmd", time.Second)),
		models.NewNode("slow").WithExecutable(models.NewCommand("echo START; sleep 5; echo END", 10*time.Second)),
	).WithParallel(true)
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.ChildFailed, result.Outcome)

	nodes := wf.Nodes()
	slow := nodes[2].Result()
	assert.Equal(t, models.Cancelled, slow.Outcome)
	assert.Contains(t, string(slow.Stdout), "START\n")
	assert.NotContains(t, string(slow.Stdout), "END\n")
}

func TestTimeoutCapturesOnlyOutputBeforeDeadline(t *testing.T) {
	root := models.NewNode("slow").WithExecutable(models.NewCommand("echo one; sleep 2; echo two", 100*time.Millisecond))
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.Timeout, result.Outcome)
	assert.Equal(t, "one\n", string(result.Stdout))
}

func TestGroupingNodeWithNoExecutableSucceedsTrivially(t *testing.T) {
	root := models.NewNode("root", models.NewNode("a").WithExecutable(models.NewCommand("exit 0", time.Second)))
	wf := buildWorkflow(t, root)

	ex := newTestExecutor(config.RunConfig{TerminationGrace: time.Second})
	result := ex.Execute(context.Background(), wf, wf.Root)

	assert.Equal(t, models.Success, result.Outcome)
}

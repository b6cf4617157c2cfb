// Package engine implements the tree-walking workflow executor: it spawns
// a ProcessRunner per executable node, captures its output, applies
// timeout and cancellation, and aggregates child outcomes back up the
// tree (spec §4).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/smilemakc/procflow/internal/config"
	"github.com/smilemakc/procflow/internal/infrastructure/logger"
	"github.com/smilemakc/procflow/pkg/models"
	"github.com/smilemakc/procflow/pkg/service"
)

// NodeExecutor drives a single node's executable (if any) and recursively
// its children, honoring the node's sequential/parallel flag and the
// run's ignore-failure policy.
type NodeExecutor struct {
	db      service.DBService
	storage service.StorageService
	log     *logger.Logger

	ignoreFailure    bool
	defaultTimeout   time.Duration
	terminationGrace time.Duration
}

// NewNodeExecutor builds a NodeExecutor wired to the given services and
// run options.
func NewNodeExecutor(db service.DBService, storage service.StorageService, log *logger.Logger, run config.RunConfig) *NodeExecutor {
	if log == nil {
		log = logger.Default()
	}
	return &NodeExecutor{
		db:               db,
		storage:          storage,
		log:              log,
		ignoreFailure:    run.IgnoreFailure,
		defaultTimeout:   run.DefaultTimeout,
		terminationGrace: run.TerminationGrace,
	}
}

// Execute runs node (and, transitively, its subtree) to completion,
// assigns its one-shot Result, and returns that Result. It never returns
// a Go error: all failure modes are represented in the Result's Outcome.
func (ex *NodeExecutor) Execute(ctx context.Context, wf *models.Workflow, node *models.Node) *models.Result {
	if err := ex.db.StartExecution(ctx, wf, node); err != nil {
		ex.log.Warn("start execution failed", "node", node.Name, "err", err)
	}

	result := ex.execute(ctx, wf, node)
	node.SetResult(result)

	if err := ex.db.EndExecution(ctx, wf, node, result.Outcome); err != nil {
		ex.log.Warn("end execution failed", "node", node.Name, "err", err)
	}
	return result
}

func (ex *NodeExecutor) execute(ctx context.Context, wf *models.Workflow, node *models.Node) *models.Result {
	if ctx.Err() != nil {
		return &models.Result{Outcome: models.Cancelled}
	}

	var own *models.Result
	if node.Executable != nil {
		own = ex.runExecutable(ctx, wf, node)
	}

	if len(node.Children) == 0 {
		if own != nil {
			return own
		}
		return &models.Result{Outcome: models.Success}
	}

	// Fail-stop: an own-executable failure skips the children unless the
	// run is configured to push through failures.
	if own != nil && own.Fail() && !ex.ignoreFailure {
		return own
	}

	childrenFailed := ex.runChildren(ctx, wf, node)

	switch {
	case ctx.Err() != nil:
		return &models.Result{Outcome: models.Cancelled}
	case own != nil && own.Fail():
		// Own executable failed but the run pushed through to the
		// children anyway (ignore-failure); the failure still stands.
		return own
	case childrenFailed:
		return &models.Result{Outcome: models.ChildFailed}
	default:
		if own != nil {
			return own
		}
		return &models.Result{Outcome: models.Success}
	}
}

// runChildren dispatches node's children sequentially or in parallel and
// reports whether any of them failed.
func (ex *NodeExecutor) runChildren(ctx context.Context, wf *models.Workflow, node *models.Node) bool {
	if node.Parallel {
		return ex.runChildrenParallel(ctx, wf, node)
	}
	return ex.runChildrenSequential(ctx, wf, node)
}

func (ex *NodeExecutor) runChildrenSequential(ctx context.Context, wf *models.Workflow, node *models.Node) bool {
	failed := false
	for _, child := range node.Children {
		if ctx.Err() != nil {
			failed = true
			break
		}
		r := ex.Execute(ctx, wf, child)
		if r.Fail() {
			failed = true
			if !ex.ignoreFailure {
				break
			}
		}
	}
	return failed
}

func (ex *NodeExecutor) runChildrenParallel(ctx context.Context, wf *models.Workflow, node *models.Node) bool {
	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed bool
	)

	for _, child := range node.Children {
		wg.Add(1)
		go func(child *models.Node) {
			defer wg.Done()
			r := ex.Execute(childCtx, wf, child)
			if r.Fail() {
				mu.Lock()
				failed = true
				mu.Unlock()
				if !ex.ignoreFailure {
					cancel()
				}
			}
		}(child)
	}
	wg.Wait()

	return failed
}

// runExecutable runs node's own Executable via a ProcessRunner, captures
// its streams, and translates the outcome into a Result.
func (ex *NodeExecutor) runExecutable(ctx context.Context, wf *models.Workflow, node *models.Node) *models.Result {
	runner, err := NewProcessRunner(*node.Executable)
	if err != nil {
		ex.log.Error("build process runner failed", "node", node.Name, "err", err)
		return &models.Result{Outcome: models.Fail, Stderr: []byte(err.Error())}
	}

	if err := runner.Start(); err != nil {
		ex.log.Error("spawn failed", "node", node.Name, "err", err)
		return &models.Result{Outcome: models.Fail, Stderr: []byte(err.Error())}
	}

	var wg sync.WaitGroup
	stdoutBuf := captureStream(ctx, ex.storage, wf, node, service.StreamStdout, runner.Stdout(), &wg)
	stderrBuf := captureStream(ctx, ex.storage, wf, node, service.StreamStderr, runner.Stderr(), &wg)

	timeout := ex.effectiveTimeout(node)
	exitCode, waitErr := runner.Wait(ctx, timeout)

	var outcome models.Outcome
	var retcode *int
	switch {
	case waitErr == nil:
		wg.Wait()
		code := exitCode
		retcode = &code
		if exitCode != 0 {
			outcome = models.Fail
		} else {
			outcome = models.Success
		}
	case ctx.Err() != nil:
		_ = runner.Terminate(ex.terminationGrace)
		wg.Wait()
		outcome = models.Cancelled
	default:
		outcome = models.Timeout
		_ = runner.Terminate(ex.terminationGrace)
		wg.Wait()
	}
	_ = runner.Close()

	return &models.Result{
		Retcode: retcode,
		Stdout:  stdoutBuf.Bytes(),
		Stderr:  stderrBuf.Bytes(),
		Outcome: outcome,
	}
}

// effectiveTimeout resolves node's own timeout (if any) against the run's
// default: an explicit node timeout always wins, including an explicit
// zero-or-negative one (spec §8: that means "time out immediately", not
// "absent"). A node with no timeout of its own falls back to the run's
// default; a default of zero or less means none, and nil is returned (wait
// indefinitely).
func (ex *NodeExecutor) effectiveTimeout(node *models.Node) *time.Duration {
	if node.Executable.Timeout != nil {
		return node.Executable.Timeout
	}
	if ex.defaultTimeout > 0 {
		d := ex.defaultTimeout
		return &d
	}
	return nil
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/smilemakc/procflow/pkg/models"
)

// invokeSubcommand is the hidden CLI verb a FunctionExec child process
// re-enters to resolve and run a registered function by name. See
// RegisterFunction and RunInvoked.
const invokeSubcommand = "__procflow_invoke__"

// ProcessRunner is the per-executable process-supervision adapter (spec §4.2).
// Implementations spawn the child in its own process group/session so a
// single group-level signal reaps shelled-out grandchildren too.
type ProcessRunner interface {
	// Start spawns the child process.
	Start() error

	// Stdout and Stderr are readable until the child (and anything it
	// spawned) closes its end.
	Stdout() io.ReadCloser
	Stderr() io.ReadCloser

	// Wait blocks until the child exits, timeout elapses, or ctx is
	// cancelled — whichever comes first. timeout == nil means "no
	// timeout of its own, wait indefinitely"; a non-nil timeout of zero
	// or less means "time out immediately", matching spec §8's boundary
	// behaviour for an explicit non-positive timeout. It consumes the
	// runner's single exit notification at most once across its
	// lifetime, so callers must not call Wait concurrently with itself.
	// On timeout it returns ErrTimeoutElapsed; on ctx cancellation it
	// returns ctx.Err(). Either way the caller must then call Terminate.
	Wait(ctx context.Context, timeout *time.Duration) (exitCode int, err error)

	// Terminate sends SIGTERM to the whole process group, then escalates
	// to SIGKILL if the process is still alive after grace. It is the
	// follow-up to a Wait that timed out or was cancelled: after a Wait
	// that reported the exit, no exit notification is left to receive, so
	// Terminate signals a group that is already gone and returns nil only
	// after waiting out the grace period twice.
	Terminate(grace time.Duration) error

	// Close releases the runner's stdout/stderr pipe file descriptors.
	// Callers must only call it once Stdout()/Stderr() have been fully
	// drained; calling it earlier can truncate an in-flight read.
	Close() error
}

// ErrTimeoutElapsed is returned by ProcessRunner.Wait when the timeout
// elapses before the child exits.
var ErrTimeoutElapsed = fmt.Errorf("process runner: %w", models.ErrTimeout)

// NewProcessRunner builds the ProcessRunner appropriate for the
// executable's kind (spec's "small factory over the tag").
func NewProcessRunner(exe models.Executable) (ProcessRunner, error) {
	switch exe.Kind {
	case models.CommandExec:
		return newCmdRunner(exe.Cmd), nil
	case models.FunctionExec:
		return newFuncRunner(exe.Target, exe.Args, exe.Kwargs)
	default:
		return nil, fmt.Errorf("process runner: %w", models.ErrMalformedExecutable)
	}
}

// cmdRunner runs a shell-interpreted command string.
type cmdRunner struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
	waitCh chan error
}

func newCmdRunner(command string) *cmdRunner {
	cmd := exec.Command("sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
	return &cmdRunner{cmd: cmd}
}

// newFuncRunner builds a ProcessRunner that spawns a fresh copy of the
// current binary re-entering invokeSubcommand, never a fork of the
// parent's in-flight state (spec §4.2).
func newFuncRunner(target string, args []any, kwargs map[string]any) (*cmdRunner, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal function args: %w", err)
	}
	kwargsJSON, err := json.Marshal(kwargs)
	if err != nil {
		return nil, fmt.Errorf("marshal function kwargs: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}

	cmd := exec.Command(self, invokeSubcommand, target, string(argsJSON), string(kwargsJSON))
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pdeathsig: syscall.SIGKILL}
	return &cmdRunner{cmd: cmd}, nil
}

// Start spawns the child over a pipe pair we own per stream, rather than
// cmd.StdoutPipe()/StderrPipe(). Those convenience pipes are closed by
// cmd.Wait() the moment it reaps the child, which races whatever is still
// reading from them and can silently truncate buffered output (os/exec:
// "it is incorrect to call Wait before all reads from the pipe have
// completed"). Owning the pipe ourselves means cmd.Wait() never touches
// our read end, so reaping and draining can run concurrently without
// racing — matching the original's explicit os.pipe/fdopen-then-wait
// ordering.
func (r *cmdRunner) Start() error {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", models.ErrSpawnFailed, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("%w: stderr pipe: %v", models.ErrSpawnFailed, err)
	}

	r.cmd.Stdout = stdoutW
	r.cmd.Stderr = stderrW

	if err := r.cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return fmt.Errorf("%w: %v", models.ErrSpawnFailed, err)
	}

	// Our copy of the write end must close now: the child (and anything
	// it spawns) holds its own copy, and a read on stdoutR/stderrR only
	// sees EOF once every copy of the write end is closed. Holding ours
	// open would make EOF never arrive.
	stdoutW.Close()
	stderrW.Close()

	r.stdout, r.stderr = stdoutR, stderrR

	r.waitCh = make(chan error, 1)
	go func() { r.waitCh <- r.cmd.Wait() }()
	return nil
}

func (r *cmdRunner) Stdout() io.ReadCloser { return r.stdout }
func (r *cmdRunner) Stderr() io.ReadCloser { return r.stderr }

func (r *cmdRunner) Wait(ctx context.Context, timeout *time.Duration) (int, error) {
	if timeout != nil && *timeout <= 0 {
		return 0, ErrTimeoutElapsed
	}

	if timeout == nil {
		select {
		case err := <-r.waitCh:
			return exitCodeFromWaitErr(err), nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	timer := time.NewTimer(*timeout)
	defer timer.Stop()

	select {
	case err := <-r.waitCh:
		return exitCodeFromWaitErr(err), nil
	case <-timer.C:
		return 0, ErrTimeoutElapsed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// exitCodeFromWaitErr extracts a POSIX-style exit code from exec.Cmd.Wait's
// error: nil means 0, *exec.ExitError carries the real code (including the
// signal-encoded non-zero code a SIGTERM-killed child reports).
func exitCodeFromWaitErr(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return 1
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

func (r *cmdRunner) Terminate(grace time.Duration) error {
	if r.cmd.Process == nil {
		return nil
	}
	pid := r.cmd.Process.Pid

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("terminate: sigterm process group %d: %w", pid, err)
	}

	select {
	case <-r.waitCh:
		return nil
	case <-time.After(grace):
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("terminate: sigkill process group %d: %w", pid, err)
	}

	// Bounded final wait: the process group has been sent SIGKILL, so
	// this cannot block indefinitely.
	select {
	case <-r.waitCh:
	case <-time.After(grace):
	}
	return nil
}

// Close releases both pipe read ends. It is never called automatically
// by Wait or Terminate, since either may legitimately return while a
// reader is still draining the pipe; callers close only once they're
// done reading.
func (r *cmdRunner) Close() error {
	var first error
	if r.stdout != nil {
		if err := r.stdout.Close(); err != nil {
			first = err
		}
	}
	if r.stderr != nil {
		if err := r.stderr.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

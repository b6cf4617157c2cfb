package models

import "time"

// ExecutableKind discriminates the two Executable variants.
type ExecutableKind string

const (
	// CommandExec runs a shell-interpreted command string.
	CommandExec ExecutableKind = "command"
	// FunctionExec invokes a named in-process function out-of-process.
	FunctionExec ExecutableKind = "function"
)

// Executable describes what a Node runs: either a shell command or a
// named function, never both. It is immutable once constructed.
type Executable struct {
	Kind ExecutableKind

	// Cmd is set when Kind == CommandExec. The string is interpreted by
	// the shell, so pipelines and redirections are part of the contract.
	Cmd string

	// Target, Args and Kwargs are set when Kind == FunctionExec. Target
	// is a fully-qualified identifier resolved by the child process's
	// function registry; Args/Kwargs must be JSON-serialisable.
	Target string
	Args   []any
	Kwargs map[string]any

	// Timeout is optional: nil means "no timeout of its own, fall back to
	// the run's default timeout". A present Timeout of zero or less is a
	// deliberate, valid value meaning "time out immediately" (the node is
	// started, then terminated without waiting for it to produce
	// anything) — it is not malformed and must not be confused with
	// "absent".
	Timeout *time.Duration
}

// NewCommand builds a CommandExec with an explicit per-node timeout.
func NewCommand(cmd string, timeout time.Duration) Executable {
	return Executable{Kind: CommandExec, Cmd: cmd, Timeout: &timeout}
}

// NewCommandNoTimeout builds a CommandExec that falls back to the run's
// default timeout instead of carrying one of its own.
func NewCommandNoTimeout(cmd string) Executable {
	return Executable{Kind: CommandExec, Cmd: cmd}
}

// NewFunction builds a FunctionExec with an explicit per-node timeout.
func NewFunction(target string, args []any, kwargs map[string]any, timeout time.Duration) Executable {
	return Executable{Kind: FunctionExec, Target: target, Args: args, Kwargs: kwargs, Timeout: &timeout}
}

// NewFunctionNoTimeout builds a FunctionExec that falls back to the run's
// default timeout instead of carrying one of its own.
func NewFunctionNoTimeout(target string, args []any, kwargs map[string]any) Executable {
	return Executable{Kind: FunctionExec, Target: target, Args: args, Kwargs: kwargs}
}

// Validate checks the executable is well-formed, returning
// ErrMalformedExecutable wrapped with detail when it is not. A zero or
// negative Timeout is a legal (if unusual) explicit value, not an error.
func (e Executable) Validate() error {
	switch e.Kind {
	case CommandExec:
		if e.Cmd == "" {
			return &TreeError{Path: "executable.cmd", Err: ErrMalformedExecutable}
		}
	case FunctionExec:
		if e.Target == "" {
			return &TreeError{Path: "executable.target", Err: ErrMalformedExecutable}
		}
	default:
		return &TreeError{Path: "executable.kind", Err: ErrMalformedExecutable}
	}
	return nil
}

// String renders the executable the way it would appear in a log line.
func (e Executable) String() string {
	switch e.Kind {
	case CommandExec:
		return e.Cmd
	case FunctionExec:
		return e.Target
	default:
		return "<invalid executable>"
	}
}

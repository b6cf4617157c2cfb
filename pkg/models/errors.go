// Package models defines the public domain types for procflow: the
// Executable/Node/Workflow data model and the error taxonomy the engine
// and its services report through.
package models

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match these with errors.Is.
var (
	// Construction-time errors. A workflow that fails to build never runs.
	ErrInvalidTree        = errors.New("invalid tree")
	// The specific construction-time errors wrap ErrInvalidTree, so both
	// errors.Is(err, ErrInvalidTree) and the specific sentinel match.
	ErrDuplicateSibling   = fmt.Errorf("%w: duplicate sibling name", ErrInvalidTree)
	ErrMalformedExecutable = fmt.Errorf("%w: malformed executable descriptor", ErrInvalidTree)

	// Runtime errors, always converted to an Outcome before they leave the engine.
	ErrSpawnFailed       = errors.New("process spawn failed")
	ErrChildExitNonZero  = errors.New("child exited with non-zero status")
	ErrTimeout           = errors.New("node timed out")
	ErrCancelled         = errors.New("node execution cancelled")
	ErrStorageUnavailable = errors.New("storage service unavailable")
	ErrDBUnavailable     = errors.New("db service unavailable")
	ErrUnsupportedArtifact = errors.New("unsupported artifact name")
)

// NodeError wraps a runtime error with the node it occurred on.
type NodeError struct {
	NodeID   string
	NodeName string
	Err      error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (%s): %s", e.NodeName, e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// TreeError wraps a construction-time error with the path that caused it.
type TreeError struct {
	Path string
	Err  error
}

func (e *TreeError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *TreeError) Unwrap() error { return e.Err }

package models

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Node is one vertex of a workflow tree. It is built via NewNode (which takes
// the children), WithExecutable and WithParallel, and becomes immutable in shape (name, executable, parallel flag, children)
// once passed to NewWorkflow, which assigns ids and nested-set intervals.
// The only field mutated during execution is result, and only once.
type Node struct {
	Name       string
	Executable *Executable
	Parallel   bool
	Children   []*Node

	id  string
	lft int
	rgt int

	mu     sync.Mutex
	result *Result
}

// NewNode constructs a grouping node (no executable) with the given children.
func NewNode(name string, children ...*Node) *Node {
	return &Node{Name: name, Children: children}
}

// WithExecutable attaches an executable to the node and returns it for chaining.
func (n *Node) WithExecutable(e Executable) *Node {
	n.Executable = &e
	return n
}

// WithParallel sets the parallel dispatch flag and returns the node for chaining.
func (n *Node) WithParallel(parallel bool) *Node {
	n.Parallel = parallel
	return n
}

// ID returns the stable identifier assigned at workflow construction. Empty
// before the node is attached to a Workflow.
func (n *Node) ID() string { return n.id }

// Lft returns the nested-set left bound assigned at workflow construction.
func (n *Node) Lft() int { return n.lft }

// Rgt returns the nested-set right bound assigned at workflow construction.
func (n *Node) Rgt() int { return n.rgt }

// Result returns the node's result, or nil if the executor has not
// finished with the node (or never reached it). Grouping nodes receive a
// Result too, carrying their aggregated outcome.
func (n *Node) Result() *Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// SetResult assigns the node's result exactly once. Calling it a second
// time panics: result is a one-shot cell by construction, matching the
// invariant "result is assigned exactly once per run".
func (n *Node) SetResult(r *Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.result != nil {
		panic(fmt.Sprintf("node %s: result already assigned", n.Name))
	}
	n.result = r
}

// Contains reports whether n is an ancestor of (or equal to) other, using
// the nested-set interval invariant from the workflow's DFS numbering.
func (n *Node) Contains(other *Node) bool {
	return n.lft <= other.lft && other.rgt <= n.rgt
}

// nodeDoc is the JSON encoding used by MarshalJSON/NodeFromJSON,
// grounded on the original implementation's Node.to_dict/from_dict.
type nodeDoc struct {
	Name       string          `json:"name"`
	Executable *executableDoc  `json:"executable,omitempty"`
	Parallel   bool            `json:"parallel,omitempty"`
	Children   []*nodeDoc      `json:"children,omitempty"`
}

type executableDoc struct {
	Kind   ExecutableKind `json:"kind"`
	Cmd    string         `json:"cmd,omitempty"`
	Target string         `json:"target,omitempty"`
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`

	// TimeoutMs is nil when the node carries no timeout of its own (falls
	// back to the run default); present (even 0 or negative) otherwise.
	TimeoutMs *int64 `json:"timeout_ms,omitempty"`
}

// MarshalJSON encodes the node subtree (name, executable, parallel flag,
// children), intentionally omitting ids/intervals/results so the document
// round-trips through NodeFromJSON into an equivalent, unassembled tree.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(toNodeDoc(n))
}

func toNodeDoc(n *Node) *nodeDoc {
	doc := &nodeDoc{Name: n.Name, Parallel: n.Parallel}
	if n.Executable != nil {
		e := n.Executable
		doc.Executable = &executableDoc{
			Kind: e.Kind, Cmd: e.Cmd, Target: e.Target,
			Args: e.Args, Kwargs: e.Kwargs,
			TimeoutMs: timeoutMsPtr(e.Timeout),
		}
	}
	for _, c := range n.Children {
		doc.Children = append(doc.Children, toNodeDoc(c))
	}
	return doc
}

// NodeFromJSON decodes a node subtree previously produced by MarshalJSON.
func NodeFromJSON(data []byte) (*Node, error) {
	var doc nodeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return fromNodeDoc(&doc), nil
}

func fromNodeDoc(doc *nodeDoc) *Node {
	n := &Node{Name: doc.Name, Parallel: doc.Parallel}
	if doc.Executable != nil {
		e := doc.Executable
		n.Executable = &Executable{
			Kind: e.Kind, Cmd: e.Cmd, Target: e.Target,
			Args: e.Args, Kwargs: e.Kwargs,
			Timeout: durationFromMsPtr(e.TimeoutMs),
		}
	}
	for _, c := range doc.Children {
		n.Children = append(n.Children, fromNodeDoc(c))
	}
	return n
}

func newNodeID() string { return uuid.New().String() }

package models

import "github.com/google/uuid"

// Workflow is a named root-owning container. Construction assigns every
// reachable node a stable id and a nested-set (lft, rgt) interval in a
// single depth-first pass, per spec §4.1.
type Workflow struct {
	Name string
	Root *Node

	id string
}

// ID returns the stable identifier assigned to the workflow.
func (w *Workflow) ID() string { return w.id }

// NewWorkflow validates and assembles a workflow from a root node,
// assigning ids and nested-set intervals. Returns ErrInvalidTree (wrapped
// in a *TreeError) for duplicate sibling names or malformed executables.
func NewWorkflow(name string, root *Node) (*Workflow, error) {
	if root == nil {
		return nil, &TreeError{Path: name, Err: ErrInvalidTree}
	}

	counter := 1
	if err := assignIntervals(root, &counter); err != nil {
		return nil, err
	}

	w := &Workflow{Name: name, Root: root, id: uuid.New().String()}
	return w, nil
}

// assignIntervals performs the DFS numbering: pre-order lft, post-order
// rgt, validating sibling-name uniqueness and executable well-formedness
// along the way.
func assignIntervals(n *Node, counter *int) error {
	if n.Executable != nil {
		if err := n.Executable.Validate(); err != nil {
			return err
		}
	}

	n.id = newNodeID()
	n.lft = *counter
	*counter++

	seen := make(map[string]struct{}, len(n.Children))
	for _, child := range n.Children {
		if _, dup := seen[child.Name]; dup {
			return &TreeError{Path: n.Name + "/" + child.Name, Err: ErrDuplicateSibling}
		}
		seen[child.Name] = struct{}{}

		if err := assignIntervals(child, counter); err != nil {
			return err
		}
	}

	n.rgt = *counter
	*counter++
	return nil
}

// Nodes returns every node reachable from the root, pre-order.
func (w *Workflow) Nodes() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(w.Root)
	return out
}

// FindByID returns the node with the given stable id, or nil.
func (w *Workflow) FindByID(id string) *Node {
	for _, n := range w.Nodes() {
		if n.ID() == id {
			return n
		}
	}
	return nil
}

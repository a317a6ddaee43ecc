package graphapi

import (
	"sort"
	"strconv"
)

// NodeID identifies a node within one workflow.  The execution encoding keys
// nodes by string, the UI encoding by integer; both normalize to NodeID.
type NodeID string

// Node is the normalized form a graph node takes after loading, regardless of
// which encoding it arrived in.  Inputs holds every named input slot; Widgets
// holds positional widget values that could not be mapped to a name because no
// schema is known for the node's type.
type Node struct {
	ID      NodeID
	Type    string
	Title   string
	Inputs  map[string]InputSlot
	Widgets []interface{}
}

// Input returns the named input slot, reporting whether it exists.
func (n *Node) Input(name string) (InputSlot, bool) {
	s, ok := n.Inputs[name]
	return s, ok
}

// Workflow is the lookup table from node id to node for one graph.  It is
// built once per payload and never mutated during resolution.
type Workflow struct {
	Nodes map[NodeID]*Node
}

// NodeByID returns the node with the given id, or nil if it does not exist.
func (w *Workflow) NodeByID(id NodeID) *Node {
	val, ok := w.Nodes[id]
	if ok {
		return val
	}
	return nil
}

// NodesWithType returns all nodes whose declared type matches exactly.
func (w *Workflow) NodesWithType(nodeType string) []*Node {
	retv := make([]*Node, 0)
	for _, id := range w.OrderedIDs() {
		n := w.Nodes[id]
		if n.Type == nodeType {
			retv = append(retv, n)
		}
	}
	return retv
}

// OrderedIDs returns every node id in a stable order: numerically when both
// ids parse as integers, lexicographically otherwise.  Map iteration order is
// not stable in Go, and resolution results must be a pure function of the
// graph value, so every scan over the workflow goes through this.
func (w *Workflow) OrderedIDs() []NodeID {
	ids := make([]NodeID, 0, len(w.Nodes))
	for id := range w.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.Atoi(string(ids[i]))
		b, berr := strconv.Atoi(string(ids[j]))
		if aerr == nil && berr == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}

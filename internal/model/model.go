package model

import (
	"fmt"
)

// Model is an owned, topologically ordered collection of nodes forming a
// DAG. Construction is append-only: Add rejects any node whose inputs
// reference ports outside the model, so dependencies always precede
// dependents and the graph is acyclic by construction. Once fully built a
// model is treated as immutable; "editing" means building a new model
// through a Transformer.
type Model struct {
	nodes  []Node
	byID   map[NodeID]Node
	nextID NodeID
}

// New creates an empty model.
func New() *Model {
	return &Model{byID: make(map[NodeID]Node)}
}

// Add appends a node to the model, assigns its identity and validates its
// references. A node may belong to exactly one model; inputs must resolve to
// ports on nodes already present.
func (m *Model) Add(n Node) error {
	if n.ID() != 0 {
		return fmt.Errorf("node %q already belongs to a model: %w", n.Kind(), ErrProtocol)
	}
	for _, in := range n.Inputs() {
		for _, r := range in.Elements().Ranges() {
			owner := r.Port.Node()
			if got, ok := m.byID[owner.ID()]; !ok || got != owner {
				return fmt.Errorf("input %q of %q node references a port outside the model: %w",
					in.Name(), n.Kind(), ErrForwardReference)
			}
		}
	}
	m.nextID++
	n.setID(m.nextID)
	m.nodes = append(m.nodes, n)
	m.byID[n.ID()] = n
	return nil
}

// Nodes returns the model's nodes in dependency order (producers before
// consumers). The returned slice is a copy.
func (m *Model) Nodes() []Node {
	out := make([]Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// Len returns the number of nodes in the model.
func (m *Model) Len() int { return len(m.nodes) }

// Node looks a node up by identity.
func (m *Model) Node(id NodeID) (Node, bool) {
	n, ok := m.byID[id]
	return n, ok
}

// InputNodes returns the model's entry points in dependency order.
func (m *Model) InputNodes() []*InputNode {
	var out []*InputNode
	for _, n := range m.nodes {
		if in, ok := n.(*InputNode); ok {
			out = append(out, in)
		}
	}
	return out
}

// OutputNodes returns the model's exit points in dependency order.
func (m *Model) OutputNodes() []*OutputNode {
	var out []*OutputNode
	for _, n := range m.nodes {
		if on, ok := n.(*OutputNode); ok {
			out = append(out, on)
		}
	}
	return out
}

// ConsumerMap returns, for every output port in the model, the input ports
// that reference it. Ports with no consumers are absent from the map.
func (m *Model) ConsumerMap() map[*OutputPort][]*InputPort {
	consumers := make(map[*OutputPort][]*InputPort)
	for _, n := range m.nodes {
		for _, in := range n.Inputs() {
			for _, r := range in.Elements().Ranges() {
				consumers[r.Port] = append(consumers[r.Port], in)
			}
		}
	}
	return consumers
}

// Validate checks the model's structural invariants: every referenced port
// resolves to a node within the model, and the dependency relation is
// acyclic. Models built exclusively through Add cannot fail validation; the
// check exists to catch protocol bugs in transformer and pass code.
func (m *Model) Validate() error {
	for _, n := range m.nodes {
		for _, in := range n.Inputs() {
			for _, r := range in.Elements().Ranges() {
				owner := r.Port.Node()
				if got, ok := m.byID[owner.ID()]; !ok || got != owner {
					return fmt.Errorf("input %q of node %d references a port outside the model: %w",
						in.Name(), n.ID(), ErrForwardReference)
				}
			}
		}
	}

	// Classic depth-first search over producer edges with permanent and
	// temporary marks.
	permanent := make(map[NodeID]bool)
	temporary := make(map[NodeID]bool)

	var visit func(n Node) error
	visit = func(n Node) error {
		if permanent[n.ID()] {
			return nil
		}
		if temporary[n.ID()] {
			return fmt.Errorf("node %d participates in a dependency cycle: %w", n.ID(), ErrCycle)
		}
		temporary[n.ID()] = true
		for _, in := range n.Inputs() {
			for _, r := range in.Elements().Ranges() {
				if err := visit(r.Port.Node()); err != nil {
					return err
				}
			}
		}
		delete(temporary, n.ID())
		permanent[n.ID()] = true
		return nil
	}

	for _, n := range m.nodes {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

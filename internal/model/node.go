package model

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// NodeID identifies a node within one Model. IDs are assigned when a node is
// added to a model and are stable for that model's lifetime; they are not
// stable across transformations. Use the transformer's mapping, never raw
// IDs, to follow a port across a transformation boundary.
type NodeID int

// Node is the capability set every graph vertex implements. The transformer
// and the pass framework depend only on this interface, never on concrete
// kinds.
//
// Copy must emit an equivalent node into the transformer's model under
// construction and register a mapping for every output port. Refine may
// instead emit a lowered replacement subgraph; it reports whether it did so,
// with false meaning "no further refinement possible". Compute produces the
// node's output vectors from its gathered input vectors, one slice per port.
//
// Implementations embed NodeBase, which provides identity and port storage.
type Node interface {
	ID() NodeID
	Kind() string
	Inputs() []*InputPort
	Outputs() []*OutputPort
	Copy(t *Transformer) error
	Refine(t *Transformer) (bool, error)
	Compilable() bool
	Compute(in [][]float64) ([][]float64, error)

	setID(NodeID)
}

// NodeBase carries a node's identity and port lists. Ports are registered by
// the concrete kind's constructor via SetPorts.
type NodeBase struct {
	id      NodeID
	kind    string
	inputs  []*InputPort
	outputs []*OutputPort
}

// NewNodeBase creates the embedded base for a node of the given kind.
func NewNodeBase(kind string) NodeBase {
	return NodeBase{kind: kind}
}

// SetPorts registers the node's fixed port lists. Called once, from the
// concrete kind's constructor.
func (b *NodeBase) SetPorts(inputs []*InputPort, outputs []*OutputPort) {
	b.inputs = inputs
	b.outputs = outputs
}

// ID returns the node's identity within its owning model, or zero before the
// node has been added to one.
func (b *NodeBase) ID() NodeID { return b.id }

// Kind returns the discriminant naming the node's concrete variant.
func (b *NodeBase) Kind() string { return b.kind }

// Inputs returns the node's ordered input ports.
func (b *NodeBase) Inputs() []*InputPort { return b.inputs }

// Outputs returns the node's ordered output ports.
func (b *NodeBase) Outputs() []*OutputPort { return b.outputs }

func (b *NodeBase) setID(id NodeID) { b.id = id }

// InputNode is a graph entry point: it produces a vector fed in from outside
// the model. It lives in this package because the transformer resolves entry
// points directly (see Transformer.CorrespondingInputNode).
type InputNode struct {
	NodeBase
	name string
	out  *OutputPort
}

// NewInputNode creates an entry point producing size elements of the given
// type under the given feed name.
func NewInputNode(name string, typ cty.Type, size int) *InputNode {
	n := &InputNode{NodeBase: NewNodeBase("input"), name: name}
	n.out = NewOutputPort(n, "output", typ, size)
	n.SetPorts(nil, []*OutputPort{n.out})
	return n
}

// Name returns the feed name callers use to supply this node's values.
func (n *InputNode) Name() string { return n.name }

// Output returns the node's single output port.
func (n *InputNode) Output() *OutputPort { return n.out }

func (n *InputNode) Copy(t *Transformer) error {
	nn := NewInputNode(n.name, n.out.Type(), n.out.Size())
	if err := t.AddNode(nn); err != nil {
		return err
	}
	return t.MapNodeOutput(n.out, Elements(nn.out))
}

func (n *InputNode) Refine(t *Transformer) (bool, error) {
	return false, n.Copy(t)
}

func (n *InputNode) Compilable() bool { return true }

// Compute is never called for entry points; the evaluator seeds their output
// from the caller's feed map.
func (n *InputNode) Compute(in [][]float64) ([][]float64, error) {
	return nil, fmt.Errorf("input node %q takes its values from the caller", n.name)
}

// OutputNode is a graph exit point: it mirrors the elements it consumes on
// an output port of its own, giving a stable name to a model result.
type OutputNode struct {
	NodeBase
	name string
	in   *InputPort
	out  *OutputPort
}

// NewOutputNode creates an exit point exposing the given elements under the
// given result name.
func NewOutputNode(name string, elements PortElements) (*OutputNode, error) {
	n := &OutputNode{NodeBase: NewNodeBase("output"), name: name}
	in, err := NewInputPort(n, "input", elements.Type(), elements.Size(), elements)
	if err != nil {
		return nil, err
	}
	n.in = in
	n.out = NewOutputPort(n, "output", elements.Type(), elements.Size())
	n.SetPorts([]*InputPort{n.in}, []*OutputPort{n.out})
	return n, nil
}

// Name returns the result name callers use to read this node's values.
func (n *OutputNode) Name() string { return n.name }

// Input returns the node's single input port.
func (n *OutputNode) Input() *InputPort { return n.in }

// Output returns the node's single output port.
func (n *OutputNode) Output() *OutputPort { return n.out }

func (n *OutputNode) Copy(t *Transformer) error {
	elems, err := t.TransformPortElements(n.in.Elements())
	if err != nil {
		return err
	}
	nn, err := NewOutputNode(n.name, elems)
	if err != nil {
		return err
	}
	if err := t.AddNode(nn); err != nil {
		return err
	}
	return t.MapNodeOutput(n.out, Elements(nn.out))
}

func (n *OutputNode) Refine(t *Transformer) (bool, error) {
	return false, n.Copy(t)
}

func (n *OutputNode) Compilable() bool { return true }

func (n *OutputNode) Compute(in [][]float64) ([][]float64, error) {
	return [][]float64{in[0]}, nil
}

package model

import (
	"context"
	"fmt"

	"github.com/embedml/remodel/internal/ctxlog"
)

// DefaultMaxRefineIterations bounds RefineModel when the caller passes a
// non-positive iteration limit.
const DefaultMaxRefineIterations = 10

// TransformFunc is applied to every visited node by TransformModel. It must
// emit zero or more replacement nodes via AddNode and register a mapping for
// every output port of the visited node, exactly as a node's own Copy would.
type TransformFunc func(n Node, t *Transformer) error

// Transformer builds a new model from an old one, node by node, maintaining
// the mapping from old port elements to new ones. A Transformer is a
// transient, single-use object: create one, drive exactly one top-level
// CopyModel, CopySubmodel, RefineModel or TransformModel call, read the
// results, and discard it. It is not safe for concurrent use.
type Transformer struct {
	model *Model
	tctx  *TransformContext

	// current maps elements of the pass's source model to the model under
	// construction; cumulative composes those maps across refinement
	// iterations, so it always translates original-model references.
	current    map[elementRef]elementRef
	cumulative map[elementRef]elementRef

	compilable bool
	iterations int
	active     bool
	done       bool
}

// NewTransformer creates a transformer ready for one transformation.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// CopyModel returns a copy of the model, built by calling Copy on each of
// its nodes in dependency order.
func (t *Transformer) CopyModel(ctx context.Context, src *Model, tctx *TransformContext) (*Model, error) {
	if err := t.begin(tctx); err != nil {
		return nil, err
	}
	out, err := t.runPass(src, nil, func(n Node) error { return n.Copy(t) })
	if err != nil {
		return nil, err
	}
	t.finish(out)
	ctxlog.FromContext(ctx).Debug("model copied", "nodes", out.Len())
	return out, nil
}

// CopySubmodel returns a copy of the part of the model sufficient to compute
// the given output nodes: exactly their ancestor closure. Nodes not
// reachable backward from an output are absent from the result.
func (t *Transformer) CopySubmodel(ctx context.Context, src *Model, outputs []Node, tctx *TransformContext) (*Model, error) {
	if err := t.begin(tctx); err != nil {
		return nil, err
	}
	include, err := ancestorClosure(src, outputs)
	if err != nil {
		return nil, err
	}
	out, err := t.runPass(src, include, func(n Node) error { return n.Copy(t) })
	if err != nil {
		return nil, err
	}
	t.finish(out)
	ctxlog.FromContext(ctx).Debug("submodel copied", "nodes", out.Len(), "source_nodes", src.Len())
	return out, nil
}

// RefineModel repeatedly rewrites the model, lowering nodes toward
// compilable primitives. Each iteration copies the model, except that nodes
// the context marks for refinement, and nodes that are not yet compilable,
// are asked to Refine instead of Copy. Iteration stops when nothing refined
// (fixed point), when every node is compilable under the context, or after
// maxIterations; in the last case the latest model is still returned and
// IsModelCompilable reports false.
func (t *Transformer) RefineModel(ctx context.Context, src *Model, tctx *TransformContext, maxIterations int) (*Model, error) {
	if err := t.begin(tctx); err != nil {
		return nil, err
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxRefineIterations
	}
	logger := ctxlog.FromContext(ctx)

	cur := src
	for t.iterations < maxIterations {
		changed := false
		next, err := t.runPass(cur, nil, func(n Node) error {
			if t.tctx.NodeAction(n) == ActionCompile || t.tctx.IsNodeCompilable(n) {
				return n.Copy(t)
			}
			didRefine, err := n.Refine(t)
			if err != nil {
				return err
			}
			if didRefine {
				changed = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		t.iterations++
		cur = next
		compilable := t.allCompilable(cur)
		logger.Debug("refinement iteration complete",
			"iteration", t.iterations, "nodes", cur.Len(), "changed", changed, "compilable", compilable)
		if compilable || !changed {
			break
		}
	}

	t.finish(cur)
	return cur, nil
}

// TransformModel builds a new model by applying fn to every node in
// dependency order. It is the substrate for rewrite passes: fn decides per
// node whether to copy it, replace it, or absorb it into another mapping.
func (t *Transformer) TransformModel(ctx context.Context, src *Model, fn TransformFunc, tctx *TransformContext) (*Model, error) {
	if err := t.begin(tctx); err != nil {
		return nil, err
	}
	out, err := t.runPass(src, nil, func(n Node) error { return fn(n, t) })
	if err != nil {
		return nil, err
	}
	t.finish(out)
	ctxlog.FromContext(ctx).Debug("model transformed", "nodes", out.Len(), "source_nodes", src.Len())
	return out, nil
}

// begin guards single use and installs the context.
func (t *Transformer) begin(tctx *TransformContext) error {
	if t.active || t.done {
		return fmt.Errorf("transformer already used: %w", ErrProtocol)
	}
	if tctx == nil {
		tctx = NewTransformContext()
	}
	t.tctx = tctx
	return nil
}

// runPass visits the source nodes in dependency order, building one new
// model. After each node's visit, all of its output ports must have been
// mapped; a hole here would surface later as a dangling reference in some
// downstream node, so it is reported immediately.
func (t *Transformer) runPass(src *Model, include map[NodeID]bool, visit func(Node) error) (*Model, error) {
	t.model = New()
	t.current = make(map[elementRef]elementRef)
	t.active = true
	defer func() { t.active = false }()

	for _, n := range src.Nodes() {
		if include != nil && !include[n.ID()] {
			continue
		}
		if err := visit(n); err != nil {
			return nil, fmt.Errorf("transforming %q node %d: %w", n.Kind(), n.ID(), err)
		}
		for _, p := range n.Outputs() {
			for i := 0; i < p.Size(); i++ {
				if _, ok := t.current[elementRef{port: p, index: i}]; !ok {
					return nil, fmt.Errorf("%q node %d left element %d of port %q unmapped: %w",
						n.Kind(), n.ID(), i, p.Name(), ErrProtocol)
				}
			}
		}
	}

	t.compose()
	return t.model, nil
}

// compose folds the pass's mapping into the cumulative original-to-latest
// mapping. Entries whose intermediate target disappeared (e.g. outside a
// restricted copy) are dropped.
func (t *Transformer) compose() {
	if t.cumulative == nil {
		t.cumulative = t.current
		return
	}
	for k, mid := range t.cumulative {
		if v, ok := t.current[mid]; ok {
			t.cumulative[k] = v
		} else {
			delete(t.cumulative, k)
		}
	}
}

func (t *Transformer) finish(out *Model) {
	t.compilable = t.allCompilable(out)
	t.model = out
	t.done = true
}

func (t *Transformer) allCompilable(m *Model) bool {
	for _, n := range m.Nodes() {
		if !t.tctx.IsNodeCompilable(n) {
			return false
		}
	}
	return true
}

// ancestorClosure computes the backward slice of the requested outputs.
func ancestorClosure(src *Model, outputs []Node) (map[NodeID]bool, error) {
	include := make(map[NodeID]bool)
	stack := make([]Node, 0, len(outputs))
	for _, n := range outputs {
		if got, ok := src.Node(n.ID()); !ok || got != n {
			return nil, fmt.Errorf("output node %d is not part of the source model: %w", n.ID(), ErrProtocol)
		}
		stack = append(stack, n)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if include[n.ID()] {
			continue
		}
		include[n.ID()] = true
		for _, in := range n.Inputs() {
			for _, r := range in.Elements().Ranges() {
				stack = append(stack, r.Port.Node())
			}
		}
	}
	return include, nil
}

//
// Functions used by node and pass implementors.
//

// AddNode appends a node to the model under construction. Callable only
// while a transformation is actively visiting nodes.
func (t *Transformer) AddNode(n Node) error {
	if !t.active {
		return fmt.Errorf("AddNode called outside an active transformation: %w", ErrProtocol)
	}
	return t.model.Add(n)
}

// MapNodeOutput registers that references to oldPort in the source model
// resolve to newElements in the model under construction. Every element of
// every output port of a visited node must be mapped exactly once; mapping
// an element twice is a protocol violation.
func (t *Transformer) MapNodeOutput(oldPort *OutputPort, newElements PortElements) error {
	if !t.active {
		return fmt.Errorf("MapNodeOutput called outside an active transformation: %w", ErrProtocol)
	}
	if got := newElements.Size(); got != oldPort.Size() {
		return fmt.Errorf("mapping port %q of size %d to %d elements: %w",
			oldPort.Name(), oldPort.Size(), got, ErrSizeMismatch)
	}
	if et := newElements.Type(); oldPort.Size() > 0 && !et.Equals(oldPort.Type()) {
		return fmt.Errorf("mapping %s port %q to %s elements: %w",
			oldPort.Type().FriendlyName(), oldPort.Name(), et.FriendlyName(), ErrTypeMismatch)
	}
	refs := newElements.elements()
	for i, nref := range refs {
		key := elementRef{port: oldPort, index: i}
		if _, dup := t.current[key]; dup {
			return fmt.Errorf("element %d of port %q on node %d mapped twice: %w",
				i, oldPort.Name(), oldPort.Node().ID(), ErrProtocol)
		}
		t.current[key] = nref
	}
	return nil
}

// TransformPortElements translates a reference from the pass's source model
// into the model under construction. Valid for elements of nodes at or
// before the node currently being visited, which dependency-order traversal
// guarantees for any node's inputs.
func (t *Transformer) TransformPortElements(old PortElements) (PortElements, error) {
	if !t.active {
		return PortElements{}, fmt.Errorf("TransformPortElements called outside an active transformation: %w", ErrProtocol)
	}
	return translate(t.current, old)
}

// CorrespondingOutputs translates a reference from the original model into
// the result model. Valid only after the top-level transformation returns.
func (t *Transformer) CorrespondingOutputs(old PortElements) (PortElements, error) {
	if !t.done {
		return PortElements{}, fmt.Errorf("CorrespondingOutputs before transformation finished: %w", ErrProtocol)
	}
	return translate(t.cumulative, old)
}

// CorrespondingOutputPort is CorrespondingOutputs for a whole port.
func (t *Transformer) CorrespondingOutputPort(old *OutputPort) (PortElements, error) {
	return t.CorrespondingOutputs(Elements(old))
}

// CorrespondingInputNode returns the entry point in the result model
// corresponding to the given entry point in the original model.
func (t *Transformer) CorrespondingInputNode(old *InputNode) (*InputNode, error) {
	elems, err := t.CorrespondingOutputPort(old.Output())
	if err != nil {
		return nil, err
	}
	ranges := elems.Ranges()
	if len(ranges) != 1 {
		return nil, fmt.Errorf("input node %d no longer maps to a single port: %w", old.ID(), ErrProtocol)
	}
	nn, ok := ranges[0].Port.Node().(*InputNode)
	if !ok {
		return nil, fmt.Errorf("input node %d maps to a %q node: %w", old.ID(), ranges[0].Port.Node().Kind(), ErrProtocol)
	}
	return nn, nil
}

// Context returns the context driving the transformation.
func (t *Transformer) Context() *TransformContext { return t.tctx }

// Model returns the result model (or, mid-pass, the model under
// construction).
func (t *Transformer) Model() *Model { return t.model }

// IsModelCompilable reports whether every node of the result model is
// compilable under the transformation's context. Valid after the top-level
// call returns.
func (t *Transformer) IsModelCompilable() bool { return t.compilable }

// Iterations returns the number of refinement iterations performed.
func (t *Transformer) Iterations() int { return t.iterations }

// translate maps each referenced element through the given mapping and
// re-coalesces contiguous runs.
func translate(mapping map[elementRef]elementRef, old PortElements) (PortElements, error) {
	var out PortElements
	for _, ref := range old.elements() {
		nref, ok := mapping[ref]
		if !ok {
			return PortElements{}, fmt.Errorf("no mapping registered for element %d of port %q on node %d: %w",
				ref.index, ref.port.Name(), ref.port.Node().ID(), ErrProtocol)
		}
		if err := out.append(PortRange{Port: nref.port, Start: nref.index, Length: 1}); err != nil {
			return PortElements{}, err
		}
	}
	return out, nil
}

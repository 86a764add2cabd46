package model

// NodeAction is the per-node decision a TransformContext hands to the
// transformer during refinement.
type NodeAction int

const (
	// ActionDefault lets the node decide its own behavior: copy as-is
	// unless it voluntarily refines.
	ActionDefault NodeAction = iota
	// ActionRefine forces the node to produce a lowered replacement
	// subgraph even if it would not otherwise.
	ActionRefine
	// ActionCompile treats the node as terminal, skipping refinement.
	ActionCompile
)

func (a NodeAction) String() string {
	switch a {
	case ActionRefine:
		return "refine"
	case ActionCompile:
		return "compile"
	default:
		return "default"
	}
}

// NodeActionFunc decides how the transformer should process a single node.
// It must be pure with respect to that node: no cross-node state.
type NodeActionFunc func(Node) NodeAction

// TransformContext is the caller-supplied policy driving one transformation.
// It is consulted once per node per pass and not retained by the engine
// afterward.
type TransformContext struct {
	action NodeActionFunc
}

// NewTransformContext creates a context that applies the default action to
// every node.
func NewTransformContext() *TransformContext {
	return &TransformContext{}
}

// NewTransformContextWithAction creates a context driven by the given
// decision function.
func NewTransformContextWithAction(fn NodeActionFunc) *TransformContext {
	return &TransformContext{action: fn}
}

// NodeAction returns the decision for the given node.
func (c *TransformContext) NodeAction(n Node) NodeAction {
	if c.action == nil {
		return ActionDefault
	}
	return c.action(n)
}

// IsNodeCompilable reports whether the node needs no further refinement
// under this context: the decision function does not mark it for refinement
// and the node variant self-reports as compilable.
func (c *TransformContext) IsNodeCompilable(n Node) bool {
	return c.NodeAction(n) != ActionRefine && n.Compilable()
}

// Package model holds the graph data model and the transformation engine.
//
// A Model is an immutable, topologically ordered DAG of Nodes. Nodes expose
// typed input and output ports; an input port consumes a PortElements value,
// an ordered list of ranges over upstream output ports. Models are never
// edited in place: every transformation builds a fresh Model through a
// single-use Transformer, which maintains the authoritative mapping from old
// port elements to new ones.
//
// The package splits into three layers:
//
//   - Ports (port.go): OutputPort, InputPort, PortRange and PortElements.
//     Element types are cty.Type values, so port compatibility is checked
//     with the same type system the configuration layer uses.
//
//   - Graph (model.go, node.go): the Node capability interface, the two
//     built-in graph boundary kinds (InputNode, OutputNode), and Model
//     itself. Construction is append-only and in dependency order; Add
//     rejects any node whose inputs reference ports outside the model.
//
//   - Transformation (context.go, transformer.go): TransformContext decides
//     per node whether to copy, refine or treat it as compilable, and
//     Transformer drives CopyModel, CopySubmodel, RefineModel and
//     TransformModel. Node implementations participate through AddNode,
//     TransformPortElements and MapNodeOutput.
//
// Concrete node kinds live in internal/nodes; rewrite passes built on
// TransformModel live in internal/passes.
package model

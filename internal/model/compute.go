package model

import (
	"context"
	"fmt"

	"github.com/embedml/remodel/internal/ctxlog"
)

// Compute evaluates the model on the given feeds, one vector per input node
// name, and returns one vector per output node name. Nodes run in dependency
// order; every node's kernel sees fully gathered input vectors.
//
// Evaluation exists to exercise node kernels and to let tests confirm that a
// rewritten model computes the same function as its source. It makes no
// attempt at being a deployment runtime.
func (m *Model) Compute(ctx context.Context, feeds map[string][]float64) (map[string][]float64, error) {
	logger := ctxlog.FromContext(ctx)
	values := make(map[*OutputPort][]float64, len(m.nodes))

	for _, n := range m.nodes {
		if in, ok := n.(*InputNode); ok {
			feed, ok := feeds[in.Name()]
			if !ok {
				return nil, fmt.Errorf("no feed supplied for input %q", in.Name())
			}
			if len(feed) != in.Output().Size() {
				return nil, fmt.Errorf("feed %q has %d elements, input wants %d: %w",
					in.Name(), len(feed), in.Output().Size(), ErrSizeMismatch)
			}
			values[in.Output()] = feed
			continue
		}

		gathered := make([][]float64, len(n.Inputs()))
		for i, port := range n.Inputs() {
			vec, err := gather(port.Elements(), values)
			if err != nil {
				return nil, fmt.Errorf("gathering input %q of node %d: %w", port.Name(), n.ID(), err)
			}
			gathered[i] = vec
		}

		outs, err := n.Compute(gathered)
		if err != nil {
			return nil, fmt.Errorf("computing %q node %d: %w", n.Kind(), n.ID(), err)
		}
		ports := n.Outputs()
		if len(outs) != len(ports) {
			return nil, fmt.Errorf("%q node %d produced %d vectors for %d ports", n.Kind(), n.ID(), len(outs), len(ports))
		}
		for i, port := range ports {
			if len(outs[i]) != port.Size() {
				return nil, fmt.Errorf("%q node %d produced %d elements on port %q of size %d: %w",
					n.Kind(), n.ID(), len(outs[i]), port.Name(), port.Size(), ErrSizeMismatch)
			}
			values[port] = outs[i]
		}
	}

	results := make(map[string][]float64)
	for _, on := range m.OutputNodes() {
		results[on.Name()] = values[on.Output()]
	}
	logger.Debug("model evaluated", "nodes", len(m.nodes), "outputs", len(results))
	return results, nil
}

// gather materializes a PortElements value from computed port vectors.
func gather(elements PortElements, values map[*OutputPort][]float64) ([]float64, error) {
	out := make([]float64, 0, elements.Size())
	for _, r := range elements.Ranges() {
		vec, ok := values[r.Port]
		if !ok {
			return nil, fmt.Errorf("port %q of node %d has not been computed yet: %w",
				r.Port.Name(), r.Port.Node().ID(), ErrForwardReference)
		}
		out = append(out, vec[r.Start:r.Start+r.Length]...)
	}
	return out, nil
}

package nodes

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
)

// Normalize standardizes its input: y[i] = (x[i] - mean) / stddev. It is a
// high-level kind: it reports itself non-compilable and lowers into an
// equivalent Affine when refined, since (x-m)/s == (1/s)*x + (-m/s).
type Normalize struct {
	model.NodeBase
	mean   float64
	stddev float64
	in     *model.InputPort
	out    *model.OutputPort
}

// NewNormalize creates a normalization node. stddev must be positive.
func NewNormalize(input model.PortElements, mean, stddev float64) (*Normalize, error) {
	if stddev <= 0 {
		return nil, fmt.Errorf("normalize stddev must be positive, got %v", stddev)
	}
	n := &Normalize{NodeBase: model.NewNodeBase("normalize"), mean: mean, stddev: stddev}
	in, err := model.NewInputPort(n, "input", cty.Number, input.Size(), input)
	if err != nil {
		return nil, err
	}
	n.in = in
	n.out = model.NewOutputPort(n, "output", cty.Number, input.Size())
	n.SetPorts([]*model.InputPort{n.in}, []*model.OutputPort{n.out})
	return n, nil
}

// Mean returns the subtracted mean.
func (n *Normalize) Mean() float64 { return n.mean }

// Stddev returns the divisor.
func (n *Normalize) Stddev() float64 { return n.stddev }

// Input returns the node's single input port.
func (n *Normalize) Input() *model.InputPort { return n.in }

// Output returns the node's single output port.
func (n *Normalize) Output() *model.OutputPort { return n.out }

func (n *Normalize) Copy(t *model.Transformer) error {
	input, err := t.TransformPortElements(n.in.Elements())
	if err != nil {
		return err
	}
	nn, err := NewNormalize(input, n.mean, n.stddev)
	if err != nil {
		return err
	}
	if err := t.AddNode(nn); err != nil {
		return err
	}
	return t.MapNodeOutput(n.out, model.Elements(nn.out))
}

func (n *Normalize) Refine(t *model.Transformer) (bool, error) {
	input, err := t.TransformPortElements(n.in.Elements())
	if err != nil {
		return false, err
	}
	nn, err := NewAffine(input, 1/n.stddev, -n.mean/n.stddev)
	if err != nil {
		return false, err
	}
	if err := t.AddNode(nn); err != nil {
		return false, err
	}
	if err := t.MapNodeOutput(n.out, model.Elements(nn.Output())); err != nil {
		return false, err
	}
	return true, nil
}

func (n *Normalize) Compilable() bool { return false }

func (n *Normalize) Compute(in [][]float64) ([][]float64, error) {
	x := in[0]
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = (v - n.mean) / n.stddev
	}
	return [][]float64{y}, nil
}

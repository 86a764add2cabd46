package nodes

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
)

// Affine applies an elementwise scale and bias: y[i] = scale*x[i] + bias.
// It is the primitive the fusion pass composes chains of linear operations
// into.
type Affine struct {
	model.NodeBase
	scale float64
	bias  float64
	in    *model.InputPort
	out   *model.OutputPort
}

// NewAffine creates an affine node over the given input elements.
func NewAffine(input model.PortElements, scale, bias float64) (*Affine, error) {
	n := &Affine{NodeBase: model.NewNodeBase("affine"), scale: scale, bias: bias}
	in, err := model.NewInputPort(n, "input", cty.Number, input.Size(), input)
	if err != nil {
		return nil, err
	}
	n.in = in
	n.out = model.NewOutputPort(n, "output", cty.Number, input.Size())
	n.SetPorts([]*model.InputPort{n.in}, []*model.OutputPort{n.out})
	return n, nil
}

// Scale returns the multiplicative coefficient.
func (n *Affine) Scale() float64 { return n.scale }

// Bias returns the additive coefficient.
func (n *Affine) Bias() float64 { return n.bias }

// Input returns the node's single input port.
func (n *Affine) Input() *model.InputPort { return n.in }

// Output returns the node's single output port.
func (n *Affine) Output() *model.OutputPort { return n.out }

func (n *Affine) Copy(t *model.Transformer) error {
	input, err := t.TransformPortElements(n.in.Elements())
	if err != nil {
		return err
	}
	nn, err := NewAffine(input, n.scale, n.bias)
	if err != nil {
		return err
	}
	if err := t.AddNode(nn); err != nil {
		return err
	}
	return t.MapNodeOutput(n.out, model.Elements(nn.out))
}

func (n *Affine) Refine(t *model.Transformer) (bool, error) {
	return false, n.Copy(t)
}

func (n *Affine) Compilable() bool { return true }

func (n *Affine) Compute(in [][]float64) ([][]float64, error) {
	x := in[0]
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = n.scale*v + n.bias
	}
	return [][]float64{y}, nil
}

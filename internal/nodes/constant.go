package nodes

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
)

// Constant produces a fixed vector of values.
type Constant struct {
	model.NodeBase
	values []float64
	out    *model.OutputPort
}

// NewConstant creates a constant node producing the given values.
func NewConstant(values []float64) *Constant {
	n := &Constant{NodeBase: model.NewNodeBase("constant")}
	n.values = append([]float64(nil), values...)
	n.out = model.NewOutputPort(n, "output", cty.Number, len(n.values))
	n.SetPorts(nil, []*model.OutputPort{n.out})
	return n
}

// Values returns the constant's payload.
func (n *Constant) Values() []float64 {
	return append([]float64(nil), n.values...)
}

// Output returns the node's single output port.
func (n *Constant) Output() *model.OutputPort { return n.out }

func (n *Constant) Copy(t *model.Transformer) error {
	nn := NewConstant(n.values)
	if err := t.AddNode(nn); err != nil {
		return err
	}
	return t.MapNodeOutput(n.out, model.Elements(nn.out))
}

func (n *Constant) Refine(t *model.Transformer) (bool, error) {
	return false, n.Copy(t)
}

func (n *Constant) Compilable() bool { return true }

func (n *Constant) Compute(in [][]float64) ([][]float64, error) {
	return [][]float64{n.Values()}, nil
}

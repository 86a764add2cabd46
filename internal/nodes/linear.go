package nodes

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"gonum.org/v1/gonum/mat"

	"github.com/embedml/remodel/internal/model"
)

// Linear applies a dense layer: y = W·x + b, with W an outDim×inDim matrix.
type Linear struct {
	model.NodeBase
	weights *mat.Dense
	bias    []float64
	in      *model.InputPort
	out     *model.OutputPort
}

// NewLinear creates a dense layer node. The weight matrix's column count
// must match the input size and its row count the bias length.
func NewLinear(input model.PortElements, weights *mat.Dense, bias []float64) (*Linear, error) {
	rows, cols := weights.Dims()
	if cols != input.Size() {
		return nil, fmt.Errorf("weight matrix has %d columns for %d inputs: %w",
			cols, input.Size(), model.ErrSizeMismatch)
	}
	if len(bias) != rows {
		return nil, fmt.Errorf("bias has %d elements for %d rows: %w",
			len(bias), rows, model.ErrSizeMismatch)
	}
	n := &Linear{NodeBase: model.NewNodeBase("linear")}
	n.weights = mat.DenseCopyOf(weights)
	n.bias = append([]float64(nil), bias...)
	in, err := model.NewInputPort(n, "input", cty.Number, input.Size(), input)
	if err != nil {
		return nil, err
	}
	n.in = in
	n.out = model.NewOutputPort(n, "output", cty.Number, rows)
	n.SetPorts([]*model.InputPort{n.in}, []*model.OutputPort{n.out})
	return n, nil
}

// Weights returns the weight matrix.
func (n *Linear) Weights() *mat.Dense { return n.weights }

// Bias returns the bias vector.
func (n *Linear) Bias() []float64 {
	return append([]float64(nil), n.bias...)
}

// Input returns the node's single input port.
func (n *Linear) Input() *model.InputPort { return n.in }

// Output returns the node's single output port.
func (n *Linear) Output() *model.OutputPort { return n.out }

func (n *Linear) Copy(t *model.Transformer) error {
	input, err := t.TransformPortElements(n.in.Elements())
	if err != nil {
		return err
	}
	nn, err := NewLinear(input, n.weights, n.bias)
	if err != nil {
		return err
	}
	if err := t.AddNode(nn); err != nil {
		return err
	}
	return t.MapNodeOutput(n.out, model.Elements(nn.out))
}

func (n *Linear) Refine(t *model.Transformer) (bool, error) {
	return false, n.Copy(t)
}

func (n *Linear) Compilable() bool { return true }

func (n *Linear) Compute(in [][]float64) ([][]float64, error) {
	rows, _ := n.weights.Dims()
	x := mat.NewVecDense(len(in[0]), in[0])
	var y mat.VecDense
	y.MulVec(n.weights, x)
	out := make([]float64, rows)
	for i := range out {
		out[i] = y.AtVec(i) + n.bias[i]
	}
	return [][]float64{out}, nil
}

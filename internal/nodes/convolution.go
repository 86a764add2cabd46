package nodes

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"gonum.org/v1/gonum/mat"

	"github.com/embedml/remodel/internal/model"
)

// ConvMethod selects the implementation strategy for a convolution node.
type ConvMethod int

const (
	// MethodAuto means no strategy has been chosen yet; the node is not
	// compilable until a selection pass retargets it.
	MethodAuto ConvMethod = iota
	// MethodSimple is the direct spatial algorithm.
	MethodSimple
	// MethodUnrolled reshapes the input (im2col) and runs one GEMM.
	MethodUnrolled
	// MethodWinograd is the transform-domain F(2x2, 3x3) algorithm; only
	// valid for 3x3 filters with stride 1.
	MethodWinograd
)

func (m ConvMethod) String() string {
	switch m {
	case MethodSimple:
		return "simple"
	case MethodUnrolled:
		return "unrolled"
	case MethodWinograd:
		return "winograd"
	default:
		return "auto"
	}
}

// ConvParams describes the geometry of a 2-D convolution over a row-major
// HWC input with valid padding.
type ConvParams struct {
	InputHeight   int
	InputWidth    int
	InputChannels int
	FilterCount   int
	FilterSize    int
	Stride        int
}

// Validate checks the geometry for internal consistency.
func (p ConvParams) Validate() error {
	switch {
	case p.InputHeight <= 0 || p.InputWidth <= 0 || p.InputChannels <= 0:
		return fmt.Errorf("invalid input shape %dx%dx%d", p.InputHeight, p.InputWidth, p.InputChannels)
	case p.FilterCount <= 0 || p.FilterSize <= 0:
		return fmt.Errorf("invalid filter shape: %d filters of size %d", p.FilterCount, p.FilterSize)
	case p.Stride <= 0:
		return fmt.Errorf("invalid stride %d", p.Stride)
	case p.FilterSize > p.InputHeight || p.FilterSize > p.InputWidth:
		return fmt.Errorf("%dx%d filter larger than %dx%d input", p.FilterSize, p.FilterSize, p.InputHeight, p.InputWidth)
	}
	return nil
}

// InputSize returns the flattened input length.
func (p ConvParams) InputSize() int { return p.InputHeight * p.InputWidth * p.InputChannels }

// OutputHeight returns the number of output rows.
func (p ConvParams) OutputHeight() int { return (p.InputHeight-p.FilterSize)/p.Stride + 1 }

// OutputWidth returns the number of output columns.
func (p ConvParams) OutputWidth() int { return (p.InputWidth-p.FilterSize)/p.Stride + 1 }

// OutputSize returns the flattened output length (HWF layout).
func (p ConvParams) OutputSize() int { return p.OutputHeight() * p.OutputWidth() * p.FilterCount }

// WeightCount returns the expected flattened weight length.
func (p ConvParams) WeightCount() int {
	return p.FilterCount * p.FilterSize * p.FilterSize * p.InputChannels
}

// Convolution is a 2-D convolution node. Weights are flattened in
// [filter][row][column][channel] order; output is row-major HWF. The method
// is part of the node's identity: retargeting a convolution means replacing
// the node with one carrying a different method but identical ports.
type Convolution struct {
	model.NodeBase
	params  ConvParams
	method  ConvMethod
	weights []float64
	in      *model.InputPort
	out     *model.OutputPort
}

// NewConvolution creates a convolution node over the given input elements.
func NewConvolution(input model.PortElements, params ConvParams, weights []float64, method ConvMethod) (*Convolution, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(weights) != params.WeightCount() {
		return nil, fmt.Errorf("got %d weights, geometry wants %d: %w",
			len(weights), params.WeightCount(), model.ErrSizeMismatch)
	}
	if method == MethodWinograd && (params.FilterSize != 3 || params.Stride != 1) {
		return nil, fmt.Errorf("winograd requires a 3x3 filter with stride 1, got %dx%d stride %d",
			params.FilterSize, params.FilterSize, params.Stride)
	}
	n := &Convolution{NodeBase: model.NewNodeBase("convolution"), params: params, method: method}
	n.weights = append([]float64(nil), weights...)
	in, err := model.NewInputPort(n, "input", cty.Number, params.InputSize(), input)
	if err != nil {
		return nil, err
	}
	n.in = in
	n.out = model.NewOutputPort(n, "output", cty.Number, params.OutputSize())
	n.SetPorts([]*model.InputPort{n.in}, []*model.OutputPort{n.out})
	return n, nil
}

// Params returns the convolution geometry.
func (n *Convolution) Params() ConvParams { return n.params }

// Method returns the implementation strategy.
func (n *Convolution) Method() ConvMethod { return n.method }

// Weights returns the flattened filter weights.
func (n *Convolution) Weights() []float64 {
	return append([]float64(nil), n.weights...)
}

// Input returns the node's single input port.
func (n *Convolution) Input() *model.InputPort { return n.in }

// Output returns the node's single output port.
func (n *Convolution) Output() *model.OutputPort { return n.out }

func (n *Convolution) Copy(t *model.Transformer) error {
	input, err := t.TransformPortElements(n.in.Elements())
	if err != nil {
		return err
	}
	nn, err := NewConvolution(input, n.params, n.weights, n.method)
	if err != nil {
		return err
	}
	if err := t.AddNode(nn); err != nil {
		return err
	}
	return t.MapNodeOutput(n.out, model.Elements(nn.out))
}

func (n *Convolution) Refine(t *model.Transformer) (bool, error) {
	// Method selection is a pass concern, not self-refinement.
	return false, n.Copy(t)
}

func (n *Convolution) Compilable() bool { return n.method != MethodAuto }

func (n *Convolution) Compute(in [][]float64) ([][]float64, error) {
	switch n.method {
	case MethodUnrolled:
		return [][]float64{n.computeUnrolled(in[0])}, nil
	case MethodWinograd:
		return [][]float64{n.computeWinograd(in[0])}, nil
	case MethodSimple:
		return [][]float64{n.computeSimple(in[0])}, nil
	default:
		return nil, fmt.Errorf("convolution node %d has no method selected", n.ID())
	}
}

// computeSimple is the direct spatial loop nest.
func (n *Convolution) computeSimple(x []float64) []float64 {
	p := n.params
	outH, outW := p.OutputHeight(), p.OutputWidth()
	out := make([]float64, p.OutputSize())
	for f := 0; f < p.FilterCount; f++ {
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				sum := 0.0
				for ky := 0; ky < p.FilterSize; ky++ {
					for kx := 0; kx < p.FilterSize; kx++ {
						for c := 0; c < p.InputChannels; c++ {
							iy, ix := oy*p.Stride+ky, ox*p.Stride+kx
							sum += x[(iy*p.InputWidth+ix)*p.InputChannels+c] * n.weight(f, ky, kx, c)
						}
					}
				}
				out[(oy*outW+ox)*p.FilterCount+f] = sum
			}
		}
	}
	return out
}

// computeUnrolled lowers the convolution to one GEMM: each output pixel's
// receptive field becomes a row of the im2col matrix, multiplied against
// the filters laid out column-wise.
func (n *Convolution) computeUnrolled(x []float64) []float64 {
	p := n.params
	outH, outW := p.OutputHeight(), p.OutputWidth()
	patch := p.FilterSize * p.FilterSize * p.InputChannels

	cols := mat.NewDense(outH*outW, patch, nil)
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			row := oy*outW + ox
			i := 0
			for ky := 0; ky < p.FilterSize; ky++ {
				for kx := 0; kx < p.FilterSize; kx++ {
					for c := 0; c < p.InputChannels; c++ {
						iy, ix := oy*p.Stride+ky, ox*p.Stride+kx
						cols.Set(row, i, x[(iy*p.InputWidth+ix)*p.InputChannels+c])
						i++
					}
				}
			}
		}
	}

	filters := mat.NewDense(patch, p.FilterCount, nil)
	for f := 0; f < p.FilterCount; f++ {
		i := 0
		for ky := 0; ky < p.FilterSize; ky++ {
			for kx := 0; kx < p.FilterSize; kx++ {
				for c := 0; c < p.InputChannels; c++ {
					filters.Set(i, f, n.weight(f, ky, kx, c))
					i++
				}
			}
		}
	}

	var prod mat.Dense
	prod.Mul(cols, filters)

	// prod is (outH*outW) x FilterCount in row-major order, which is
	// exactly the HWF output layout.
	out := make([]float64, p.OutputSize())
	copy(out, prod.RawMatrix().Data)
	return out
}

func (n *Convolution) weight(f, ky, kx, c int) float64 {
	p := n.params
	return n.weights[((f*p.FilterSize+ky)*p.FilterSize+kx)*p.InputChannels+c]
}

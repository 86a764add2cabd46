package passes

import (
	"context"

	"github.com/embedml/remodel/internal/config"
	"github.com/embedml/remodel/internal/ctxlog"
	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
)

// SelectConvMethod retargets every convolution still on MethodAuto to a
// concrete implementation strategy chosen for the target: winograd for 3x3
// stride-1 filters when the target enables it and the transform workspace
// fits fast memory, otherwise unrolled when the im2col buffer fits,
// otherwise the direct loop nest. Strictly a node-for-node substitution:
// port signatures are preserved exactly and nothing else in the graph
// changes.
type SelectConvMethod struct {
	target *config.Target
}

// NewSelectConvMethod creates the selection pass for the given target.
func NewSelectConvMethod(target *config.Target) *SelectConvMethod {
	if target == nil {
		target = config.DefaultTarget()
	}
	return &SelectConvMethod{target: target}
}

// Name implements Pass.
func (p *SelectConvMethod) Name() string { return "select-conv-method" }

// Run implements Pass.
func (p *SelectConvMethod) Run(ctx context.Context, m *model.Model, tctx *model.TransformContext) (*model.Model, error) {
	logger := ctxlog.FromContext(ctx)

	fn := func(n model.Node, t *model.Transformer) error {
		cv, ok := n.(*nodes.Convolution)
		if !ok || cv.Method() != nodes.MethodAuto {
			return n.Copy(t)
		}
		method := p.choose(cv.Params())
		logger.Debug("convolution retargeted",
			"node", int(cv.ID()), "method", method.String(), "target", p.target.Name)

		input, err := t.TransformPortElements(cv.Input().Elements())
		if err != nil {
			return err
		}
		nn, err := nodes.NewConvolution(input, cv.Params(), cv.Weights(), method)
		if err != nil {
			return err
		}
		if err := t.AddNode(nn); err != nil {
			return err
		}
		return t.MapNodeOutput(cv.Output(), model.Elements(nn.Output()))
	}

	return model.NewTransformer().TransformModel(ctx, m, fn, tctx)
}

func (p *SelectConvMethod) choose(cp nodes.ConvParams) nodes.ConvMethod {
	if p.target.Winograd && cp.FilterSize == 3 && cp.Stride == 1 &&
		winogradWorkspaceBytes(cp) <= p.target.FastMemoryBytes {
		return nodes.MethodWinograd
	}
	if im2colBytes(cp) <= p.target.FastMemoryBytes {
		return nodes.MethodUnrolled
	}
	return nodes.MethodSimple
}

// im2colBytes is the size of the unrolled patch matrix.
func im2colBytes(p nodes.ConvParams) int64 {
	rows := int64(p.OutputHeight()) * int64(p.OutputWidth())
	cols := int64(p.FilterSize) * int64(p.FilterSize) * int64(p.InputChannels)
	return rows * cols * 8
}

// winogradWorkspaceBytes is the size of the transformed filters plus one
// tile's worth of transformed input per channel.
func winogradWorkspaceBytes(p nodes.ConvParams) int64 {
	filters := int64(p.FilterCount) * int64(p.InputChannels) * 16
	tiles := int64(p.InputChannels) * 16
	return (filters + tiles) * 8
}

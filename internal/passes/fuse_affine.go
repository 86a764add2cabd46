package passes

import (
	"context"

	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
)

// FuseAffine fuses chains of affine nodes on the same data path into a
// single equivalent node. For y2 = s2*(s1*x + b1) + b2 the fused node
// carries scale s2*s1 and bias s2*b1 + b2. A node is absorbed into its
// consumer only when its whole output feeds exactly one downstream affine
// and nothing else; everything outside a fusible chain is copied unchanged.
// The pass is idempotent: an already-fused model is reproduced as-is.
type FuseAffine struct{}

// NewFuseAffine creates the affine-fusion pass.
func NewFuseAffine() *FuseAffine {
	return &FuseAffine{}
}

// Name implements Pass.
func (p *FuseAffine) Name() string { return "fuse-affine" }

// Run implements Pass.
func (p *FuseAffine) Run(ctx context.Context, m *model.Model, tctx *model.TransformContext) (*model.Model, error) {
	consumers := m.ConsumerMap()

	fn := func(n model.Node, t *model.Transformer) error {
		a, ok := n.(*nodes.Affine)
		if !ok {
			return n.Copy(t)
		}

		if absorbedInto(a, consumers) != nil {
			// This node's work will be folded into its consumer; forward
			// its output references to its own (already transformed)
			// input so downstream mapping stays total.
			input, err := t.TransformPortElements(a.Input().Elements())
			if err != nil {
				return err
			}
			return t.MapNodeOutput(a.Output(), input)
		}

		// Tail of a chain (possibly of length one): compose the absorbed
		// ancestors' coefficients in application order.
		scale, bias := 1.0, 0.0
		for _, link := range chainOf(a, consumers) {
			scale = link.Scale() * scale
			bias = link.Scale()*bias + link.Bias()
		}
		input, err := t.TransformPortElements(a.Input().Elements())
		if err != nil {
			return err
		}
		fused, err := nodes.NewAffine(input, scale, bias)
		if err != nil {
			return err
		}
		if err := t.AddNode(fused); err != nil {
			return err
		}
		return t.MapNodeOutput(a.Output(), model.Elements(fused.Output()))
	}

	return model.NewTransformer().TransformModel(ctx, m, fn, tctx)
}

// absorbedInto returns the affine consumer this node will fuse into, or nil.
// Fusion requires the node's full output to be the entire input of exactly
// one downstream affine.
func absorbedInto(a *nodes.Affine, consumers map[*model.OutputPort][]*model.InputPort) *nodes.Affine {
	uses := consumers[a.Output()]
	if len(uses) != 1 {
		return nil
	}
	next, ok := uses[0].Node().(*nodes.Affine)
	if !ok {
		return nil
	}
	if soleFullProducer(next.Input()) != a.Output() {
		return nil
	}
	return next
}

// chainOf returns the fusible chain ending at tail, earliest node first.
func chainOf(tail *nodes.Affine, consumers map[*model.OutputPort][]*model.InputPort) []*nodes.Affine {
	chain := []*nodes.Affine{tail}
	cur := tail
	for {
		prod := soleFullProducer(cur.Input())
		if prod == nil {
			break
		}
		prev, ok := prod.Node().(*nodes.Affine)
		if !ok || absorbedInto(prev, consumers) != cur {
			break
		}
		chain = append([]*nodes.Affine{prev}, chain...)
		cur = prev
	}
	return chain
}

// soleFullProducer returns the single output port whose entire value feeds
// this input, or nil if the input draws on ranges or multiple producers.
func soleFullProducer(in *model.InputPort) *model.OutputPort {
	ranges := in.Elements().Ranges()
	if len(ranges) != 1 {
		return nil
	}
	r := ranges[0]
	if r.Start != 0 || r.Length != r.Port.Size() {
		return nil
	}
	return r.Port
}

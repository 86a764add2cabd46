package passes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
	"github.com/embedml/remodel/internal/passes"
	"github.com/embedml/remodel/internal/testutil"
)

func runFuse(t *testing.T, m *model.Model) *model.Model {
	t.Helper()
	out, err := passes.NewFuseAffine().Run(context.Background(), m, model.NewTransformContext())
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	return out
}

func soleAffine(t *testing.T, m *model.Model) *nodes.Affine {
	t.Helper()
	var found *nodes.Affine
	for _, n := range m.Nodes() {
		if a, ok := n.(*nodes.Affine); ok {
			require.Nil(t, found, "expected exactly one affine node")
			found = a
		}
	}
	require.NotNil(t, found, "expected exactly one affine node")
	return found
}

func TestFuseAffine(t *testing.T) {
	ctx := context.Background()

	t.Run("fuses a two-link chain", func(t *testing.T) {
		src := testutil.AffineChain(t, 3, [2]float64{2, 3}, [2]float64{5, 1})
		fused := runFuse(t, src)

		assert.Equal(t, []string{"input", "affine", "output"}, testutil.Kinds(fused))
		a := soleAffine(t, fused)
		assert.Equal(t, 10.0, a.Scale())
		assert.Equal(t, 16.0, a.Bias())

		x := testutil.Ramp(3)
		want, err := src.Compute(ctx, map[string][]float64{"x": x})
		require.NoError(t, err)
		got, err := fused.Compute(ctx, map[string][]float64{"x": x})
		require.NoError(t, err)
		assert.InDeltaSlice(t, want["y"], got["y"], 1e-12)
	})

	t.Run("fuses a longer chain in one pass", func(t *testing.T) {
		src := testutil.AffineChain(t, 2,
			[2]float64{2, 1}, [2]float64{3, 0}, [2]float64{0.5, -4})
		fused := runFuse(t, src)

		a := soleAffine(t, fused)
		// 0.5*(3*(2x+1)+0) - 4 = 3x - 2.5
		assert.InDelta(t, 3.0, a.Scale(), 1e-12)
		assert.InDelta(t, -2.5, a.Bias(), 1e-12)
	})

	t.Run("idempotent", func(t *testing.T) {
		once := runFuse(t, testutil.AffineChain(t, 4, [2]float64{2, 3}, [2]float64{5, 1}))
		twice := runFuse(t, once)

		assert.Equal(t, testutil.Kinds(once), testutil.Kinds(twice))
		a, b := soleAffine(t, once), soleAffine(t, twice)
		assert.Equal(t, a.Scale(), b.Scale())
		assert.Equal(t, a.Bias(), b.Bias())
	})

	t.Run("fan-out breaks the chain", func(t *testing.T) {
		m := model.New()
		in := model.NewInputNode("x", cty.Number, 2)
		require.NoError(t, m.Add(in))

		a1, err := nodes.NewAffine(model.Elements(in.Output()), 2, 3)
		require.NoError(t, err)
		require.NoError(t, m.Add(a1))

		a2, err := nodes.NewAffine(model.Elements(a1.Output()), 5, 1)
		require.NoError(t, err)
		require.NoError(t, m.Add(a2))

		// Second consumer of a1's output: a1 must survive fusion.
		tap, err := model.NewOutputNode("tap", model.Elements(a1.Output()))
		require.NoError(t, err)
		require.NoError(t, m.Add(tap))

		out, err := model.NewOutputNode("y", model.Elements(a2.Output()))
		require.NoError(t, err)
		require.NoError(t, m.Add(out))

		fused := runFuse(t, m)
		assert.Equal(t, testutil.Kinds(m), testutil.Kinds(fused))

		x := []float64{1, 2}
		want, err := m.Compute(ctx, map[string][]float64{"x": x})
		require.NoError(t, err)
		got, err := fused.Compute(ctx, map[string][]float64{"x": x})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("partial-range consumer is not fused", func(t *testing.T) {
		m := model.New()
		in := model.NewInputNode("x", cty.Number, 4)
		require.NoError(t, m.Add(in))

		a1, err := nodes.NewAffine(model.Elements(in.Output()), 2, 0)
		require.NoError(t, err)
		require.NoError(t, m.Add(a1))

		half, err := model.ElementsRange(a1.Output(), 0, 2)
		require.NoError(t, err)
		a2, err := nodes.NewAffine(half, 3, 1)
		require.NoError(t, err)
		require.NoError(t, m.Add(a2))

		out, err := model.NewOutputNode("y", model.Elements(a2.Output()))
		require.NoError(t, err)
		require.NoError(t, m.Add(out))

		fused := runFuse(t, m)
		assert.Equal(t, []string{"input", "affine", "affine", "output"}, testutil.Kinds(fused))
	})

	t.Run("non-affine models pass through unchanged", func(t *testing.T) {
		p := nodes.ConvParams{
			InputHeight: 3, InputWidth: 3, InputChannels: 1,
			FilterCount: 1, FilterSize: 3, Stride: 1,
		}
		src := testutil.ConvModel(t, p, testutil.Ramp(p.WeightCount()), nodes.MethodSimple)
		fused := runFuse(t, src)
		assert.Equal(t, testutil.Kinds(src), testutil.Kinds(fused))
	})
}

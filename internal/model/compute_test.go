package model_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
	"github.com/embedml/remodel/internal/testutil"
)

func TestModelCompute(t *testing.T) {
	t.Run("evaluates a chain in dependency order", func(t *testing.T) {
		m := model.New()
		in := model.NewInputNode("x", cty.Number, 3)
		require.NoError(t, m.Add(in))
		norm, err := nodes.NewNormalize(model.Elements(in.Output()), 1, 2)
		require.NoError(t, err)
		require.NoError(t, m.Add(norm))
		aff, err := nodes.NewAffine(model.Elements(norm.Output()), 3, 1)
		require.NoError(t, err)
		require.NoError(t, m.Add(aff))
		out, err := model.NewOutputNode("y", model.Elements(aff.Output()))
		require.NoError(t, err)
		require.NoError(t, m.Add(out))

		got, err := m.Compute(context.Background(), map[string][]float64{"x": {1, 3, 5}})
		require.NoError(t, err)
		// y = 3*((x-1)/2) + 1
		assert.Equal(t, []float64{1, 4, 7}, got["y"])
	})

	t.Run("gathers across multiple producers", func(t *testing.T) {
		m := model.New()
		a := model.NewInputNode("a", cty.Number, 2)
		require.NoError(t, m.Add(a))
		b := model.NewInputNode("b", cty.Number, 1)
		require.NoError(t, m.Add(b))

		joined, err := model.Concat(model.Elements(a.Output()), model.Elements(b.Output()))
		require.NoError(t, err)
		out, err := model.NewOutputNode("joined", joined)
		require.NoError(t, err)
		require.NoError(t, m.Add(out))

		got, err := m.Compute(context.Background(), map[string][]float64{
			"a": {1, 2},
			"b": {9},
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 9}, got["joined"])
	})

	t.Run("missing feed", func(t *testing.T) {
		m := testutil.AffineChain(t, 2, [2]float64{1, 0})
		_, err := m.Compute(context.Background(), nil)
		assert.ErrorContains(t, err, "no feed supplied")
	})

	t.Run("wrong feed size", func(t *testing.T) {
		m := testutil.AffineChain(t, 2, [2]float64{1, 0})
		_, err := m.Compute(context.Background(), map[string][]float64{"x": {1, 2, 3}})
		assert.ErrorIs(t, err, model.ErrSizeMismatch)
	})
}

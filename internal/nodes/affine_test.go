package nodes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
)

func TestConstant(t *testing.T) {
	n := nodes.NewConstant([]float64{1, 2, 3})

	assert.Equal(t, "constant", n.Kind())
	assert.Equal(t, 3, n.Output().Size())
	assert.True(t, n.Compilable())

	out, err := n.Compute(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, out[0])

	// The payload is not aliased.
	out[0][0] = 99
	assert.Equal(t, []float64{1, 2, 3}, n.Values())
}

func TestAffine(t *testing.T) {
	in := model.NewInputNode("x", cty.Number, 3)
	n, err := nodes.NewAffine(model.Elements(in.Output()), 2, -1)
	require.NoError(t, err)

	assert.Equal(t, "affine", n.Kind())
	assert.Equal(t, 3, n.Input().Size())
	assert.Equal(t, 3, n.Output().Size())
	assert.True(t, n.Compilable())

	out, err := n.Compute([][]float64{{0, 1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1, 3}, out[0])
}

func TestNormalize(t *testing.T) {
	in := model.NewInputNode("x", cty.Number, 2)

	t.Run("rejects non-positive stddev", func(t *testing.T) {
		_, err := nodes.NewNormalize(model.Elements(in.Output()), 0, 0)
		assert.ErrorContains(t, err, "stddev must be positive")
	})

	t.Run("computes standardization", func(t *testing.T) {
		n, err := nodes.NewNormalize(model.Elements(in.Output()), 1, 2)
		require.NoError(t, err)
		assert.False(t, n.Compilable())

		out, err := n.Compute([][]float64{{1, 5}})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 2}, out[0])
	})
}

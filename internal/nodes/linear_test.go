package nodes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"gonum.org/v1/gonum/mat"

	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
)

func TestLinear(t *testing.T) {
	in := model.NewInputNode("x", cty.Number, 3)
	w := mat.NewDense(2, 3, []float64{
		1, 0, 2,
		0, 1, -1,
	})

	t.Run("rejects mismatched shapes", func(t *testing.T) {
		_, err := nodes.NewLinear(model.Elements(in.Output()), mat.NewDense(2, 4, nil), []float64{0, 0})
		assert.ErrorIs(t, err, model.ErrSizeMismatch)

		_, err = nodes.NewLinear(model.Elements(in.Output()), w, []float64{0})
		assert.ErrorIs(t, err, model.ErrSizeMismatch)
	})

	t.Run("computes W*x + b", func(t *testing.T) {
		n, err := nodes.NewLinear(model.Elements(in.Output()), w, []float64{10, 20})
		require.NoError(t, err)
		assert.Equal(t, 3, n.Input().Size())
		assert.Equal(t, 2, n.Output().Size())

		out, err := n.Compute([][]float64{{1, 2, 3}})
		require.NoError(t, err)
		// [1*1+0*2+2*3, 0*1+1*2-1*3] + [10, 20]
		assert.Equal(t, []float64{17, 19}, out[0])
	})

	t.Run("does not alias the caller's weights", func(t *testing.T) {
		n, err := nodes.NewLinear(model.Elements(in.Output()), w, []float64{0, 0})
		require.NoError(t, err)
		w.Set(0, 0, 42)
		assert.Equal(t, 1.0, n.Weights().At(0, 0))
		w.Set(0, 0, 1)
	})
}

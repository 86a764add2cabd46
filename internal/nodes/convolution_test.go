package nodes_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
)

func randomVector(n int, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64()
	}
	return out
}

func newConv(t *testing.T, p nodes.ConvParams, weights []float64, method nodes.ConvMethod) *nodes.Convolution {
	t.Helper()
	in := model.NewInputNode("image", cty.Number, p.InputSize())
	cv, err := nodes.NewConvolution(model.Elements(in.Output()), p, weights, method)
	require.NoError(t, err)
	return cv
}

func TestConvParams(t *testing.T) {
	p := nodes.ConvParams{
		InputHeight: 5, InputWidth: 4, InputChannels: 2,
		FilterCount: 3, FilterSize: 3, Stride: 1,
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, 40, p.InputSize())
	assert.Equal(t, 3, p.OutputHeight())
	assert.Equal(t, 2, p.OutputWidth())
	assert.Equal(t, 18, p.OutputSize())
	assert.Equal(t, 54, p.WeightCount())

	t.Run("rejects bad geometry", func(t *testing.T) {
		bad := p
		bad.Stride = 0
		assert.Error(t, bad.Validate())

		bad = p
		bad.FilterSize = 6
		assert.Error(t, bad.Validate())
	})
}

func TestNewConvolution(t *testing.T) {
	p := nodes.ConvParams{
		InputHeight: 4, InputWidth: 4, InputChannels: 1,
		FilterCount: 1, FilterSize: 3, Stride: 1,
	}

	t.Run("rejects wrong weight count", func(t *testing.T) {
		in := model.NewInputNode("image", cty.Number, p.InputSize())
		_, err := nodes.NewConvolution(model.Elements(in.Output()), p, make([]float64, 5), nodes.MethodSimple)
		assert.ErrorIs(t, err, model.ErrSizeMismatch)
	})

	t.Run("rejects winograd on unsupported geometry", func(t *testing.T) {
		strided := p
		strided.Stride = 2
		in := model.NewInputNode("image", cty.Number, strided.InputSize())
		_, err := nodes.NewConvolution(model.Elements(in.Output()), strided, make([]float64, strided.WeightCount()), nodes.MethodWinograd)
		assert.ErrorContains(t, err, "winograd requires")
	})

	t.Run("auto method is not compilable", func(t *testing.T) {
		cv := newConv(t, p, make([]float64, p.WeightCount()), nodes.MethodAuto)
		assert.False(t, cv.Compilable())
		_, err := cv.Compute([][]float64{make([]float64, p.InputSize())})
		assert.ErrorContains(t, err, "no method selected")
	})
}

func TestConvolutionKnownValues(t *testing.T) {
	// 1x3x3 input, single 3x3 identity-ish filter: picks the center pixel.
	p := nodes.ConvParams{
		InputHeight: 3, InputWidth: 3, InputChannels: 1,
		FilterCount: 1, FilterSize: 3, Stride: 1,
	}
	weights := []float64{
		0, 0, 0,
		0, 1, 0,
		0, 0, 0,
	}
	cv := newConv(t, p, weights, nodes.MethodSimple)

	out, err := cv.Compute([][]float64{{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}})
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, out[0])
}

func TestConvolutionMethodsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	cases := []struct {
		name string
		p    nodes.ConvParams
	}{
		{
			name: "3x3 stride 1 multi-channel",
			p: nodes.ConvParams{
				InputHeight: 6, InputWidth: 5, InputChannels: 3,
				FilterCount: 4, FilterSize: 3, Stride: 1,
			},
		},
		{
			name: "odd output size",
			p: nodes.ConvParams{
				InputHeight: 5, InputWidth: 5, InputChannels: 2,
				FilterCount: 2, FilterSize: 3, Stride: 1,
			},
		},
		{
			name: "minimal tile",
			p: nodes.ConvParams{
				InputHeight: 3, InputWidth: 3, InputChannels: 1,
				FilterCount: 1, FilterSize: 3, Stride: 1,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			weights := randomVector(tc.p.WeightCount(), rng)
			image := randomVector(tc.p.InputSize(), rng)

			simple := newConv(t, tc.p, weights, nodes.MethodSimple)
			want, err := simple.Compute([][]float64{image})
			require.NoError(t, err)

			for _, method := range []nodes.ConvMethod{nodes.MethodUnrolled, nodes.MethodWinograd} {
				cv := newConv(t, tc.p, weights, method)
				got, err := cv.Compute([][]float64{image})
				require.NoError(t, err)
				assert.InDeltaSlice(t, want[0], got[0], 1e-9, "method %s", method)
			}
		})
	}

	t.Run("unrolled agrees under stride 2", func(t *testing.T) {
		p := nodes.ConvParams{
			InputHeight: 7, InputWidth: 7, InputChannels: 2,
			FilterCount: 3, FilterSize: 3, Stride: 2,
		}
		weights := randomVector(p.WeightCount(), rng)
		image := randomVector(p.InputSize(), rng)

		want, err := newConv(t, p, weights, nodes.MethodSimple).Compute([][]float64{image})
		require.NoError(t, err)
		got, err := newConv(t, p, weights, nodes.MethodUnrolled).Compute([][]float64{image})
		require.NoError(t, err)
		assert.InDeltaSlice(t, want[0], got[0], 1e-9)
	})
}

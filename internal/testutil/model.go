// Package testutil provides shared helpers for building small test models.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/embedml/remodel/internal/model"
	"github.com/embedml/remodel/internal/nodes"
)

// AffineChain builds input "x" -> affine(s,b)... -> output "y" with the
// given (scale, bias) pairs applied in order.
func AffineChain(t *testing.T, dim int, coeffs ...[2]float64) *model.Model {
	t.Helper()
	m := model.New()

	in := model.NewInputNode("x", cty.Number, dim)
	require.NoError(t, m.Add(in))

	cur := model.Elements(in.Output())
	for _, c := range coeffs {
		a, err := nodes.NewAffine(cur, c[0], c[1])
		require.NoError(t, err)
		require.NoError(t, m.Add(a))
		cur = model.Elements(a.Output())
	}

	out, err := model.NewOutputNode("y", cur)
	require.NoError(t, err)
	require.NoError(t, m.Add(out))
	return m
}

// ConvModel builds input "image" -> convolution -> output "features".
func ConvModel(t *testing.T, params nodes.ConvParams, weights []float64, method nodes.ConvMethod) *model.Model {
	t.Helper()
	m := model.New()

	in := model.NewInputNode("image", cty.Number, params.InputSize())
	require.NoError(t, m.Add(in))

	cv, err := nodes.NewConvolution(model.Elements(in.Output()), params, weights, method)
	require.NoError(t, err)
	require.NoError(t, m.Add(cv))

	out, err := model.NewOutputNode("features", model.Elements(cv.Output()))
	require.NoError(t, err)
	require.NoError(t, m.Add(out))
	return m
}

// Ramp returns a deterministic test vector: 0.1, 0.2, 0.3, ...
func Ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i+1) / 10
	}
	return out
}

// Kinds returns the kind discriminants of a model's nodes in dependency
// order, for compact structural assertions.
func Kinds(m *model.Model) []string {
	var out []string
	for _, n := range m.Nodes() {
		out = append(out, n.Kind())
	}
	return out
}

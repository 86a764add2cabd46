package nodes

// Winograd F(2x2, 3x3): each 4x4 input tile yields a 2x2 output tile with 36
// multiplies instead of 16*9. Filters are transformed once per call, input
// tiles per position, and the elementwise products are accumulated over
// channels in the transform domain before the inverse transform.

// Transform matrices for F(2,3).
var (
	winoG = [4][3]float64{
		{1, 0, 0},
		{0.5, 0.5, 0.5},
		{0.5, -0.5, 0.5},
		{0, 0, 1},
	}
	winoBT = [4][4]float64{
		{1, 0, -1, 0},
		{0, 1, 1, 0},
		{0, -1, 1, 0},
		{0, 1, 0, -1},
	}
	winoAT = [2][4]float64{
		{1, 1, 1, 0},
		{0, 1, -1, -1},
	}
)

func (n *Convolution) computeWinograd(x []float64) []float64 {
	p := n.params
	outH, outW := p.OutputHeight(), p.OutputWidth()
	out := make([]float64, p.OutputSize())

	// U[f][c] = G g G^T for each 3x3 filter slice.
	u := make([][][4][4]float64, p.FilterCount)
	for f := range u {
		u[f] = make([][4][4]float64, p.InputChannels)
		for c := range u[f] {
			var g [3][3]float64
			for ky := 0; ky < 3; ky++ {
				for kx := 0; kx < 3; kx++ {
					g[ky][kx] = n.weight(f, ky, kx, c)
				}
			}
			u[f][c] = transformFilter(g)
		}
	}

	tilesY := (outH + 1) / 2
	tilesX := (outW + 1) / 2
	v := make([][4][4]float64, p.InputChannels)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			y0, x0 := 2*ty, 2*tx

			// V[c] = B^T d B over the 4x4 tile at (y0, x0), zero-padded
			// past the input edge.
			for c := 0; c < p.InputChannels; c++ {
				var d [4][4]float64
				for i := 0; i < 4; i++ {
					for j := 0; j < 4; j++ {
						iy, ix := y0+i, x0+j
						if iy < p.InputHeight && ix < p.InputWidth {
							d[i][j] = x[(iy*p.InputWidth+ix)*p.InputChannels+c]
						}
					}
				}
				v[c] = transformInput(d)
			}

			for f := 0; f < p.FilterCount; f++ {
				var m [4][4]float64
				for c := 0; c < p.InputChannels; c++ {
					for i := 0; i < 4; i++ {
						for j := 0; j < 4; j++ {
							m[i][j] += u[f][c][i][j] * v[c][i][j]
						}
					}
				}
				y := inverseTransform(m)
				for i := 0; i < 2; i++ {
					for j := 0; j < 2; j++ {
						oy, ox := y0+i, x0+j
						if oy < outH && ox < outW {
							out[(oy*outW+ox)*p.FilterCount+f] = y[i][j]
						}
					}
				}
			}
		}
	}
	return out
}

// transformFilter computes G g G^T.
func transformFilter(g [3][3]float64) [4][4]float64 {
	var tmp [4][3]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				tmp[i][j] += winoG[i][k] * g[k][j]
			}
		}
	}
	var u [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 3; k++ {
				u[i][j] += tmp[i][k] * winoG[j][k]
			}
		}
	}
	return u
}

// transformInput computes B^T d B.
func transformInput(d [4][4]float64) [4][4]float64 {
	var tmp [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				tmp[i][j] += winoBT[i][k] * d[k][j]
			}
		}
	}
	var v [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				v[i][j] += tmp[i][k] * winoBT[j][k]
			}
		}
	}
	return v
}

// inverseTransform computes A^T m A.
func inverseTransform(m [4][4]float64) [2][2]float64 {
	var tmp [2][4]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				tmp[i][j] += winoAT[i][k] * m[k][j]
			}
		}
	}
	var y [2][2]float64
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 4; k++ {
				y[i][j] += tmp[i][k] * winoAT[j][k]
			}
		}
	}
	return y
}

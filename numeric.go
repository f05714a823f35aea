package spectrum

import "gonum.org/v1/gonum/floats"

// meanFloat32 reduces a float32 slice to its mean using gonum's float64
// summation, converting at the boundary since gonum/floats operates on
// []float64.
func meanFloat32(xs []float32) float32 {
	if len(xs) == 0 {
		return 0
	}
	xs64 := make([]float64, len(xs))
	for i, v := range xs {
		xs64[i] = float64(v)
	}
	return float32(floats.Sum(xs64) / float64(len(xs64)))
}

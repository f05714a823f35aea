package spectrum

import "math"

// HannWindow returns a Hann window of the given length, the default
// SignalWindow used when none is supplied in configuration.
//
//	w[n] = 0.5 * (1 - cos(2*pi*n / (N-1)))
func HannWindow(size int) []float32 {
	w := make([]float32, size)
	if size == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < size; i++ {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1))))
	}
	return w
}

// RectangularWindow returns an all-ones window: no amplitude shaping,
// used by the bin-center FFT scenarios in the test suite where the
// exact textbook magnitudes are expected.
func RectangularWindow(size int) []float32 {
	w := make([]float32, size)
	for i := range w {
		w[i] = 1
	}
	return w
}

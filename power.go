package spectrum

import "math"

// FloorDbFs16Bit is the dynamic-range floor of a 16-bit signal: no power
// reading is ever reported quieter than this.
const FloorDbFs16Bit float32 = -96.32

// Power converts one FFT result into a dBFS power frame. For bin k:
//
//	mag  = |X[k]| / (fftSize/2)
//	dbfs = mag < 1 ? 20*log10(mag) : 0
//
// mag < 1 is the ordinary case (signal below full scale) and yields a
// negative reading; mag >= 1 is clamped to the 0 dBFS ceiling rather
// than allowed to go positive. The result is clamped at FloorDbFs16Bit
// to avoid -Inf for a silent bin. Every element of the returned frame
// lies in [FloorDbFs16Bit, 0].
func Power(fft []complex64) []float32 {
	n := len(fft)
	out := make([]float32, n)
	half := float64(n) / 2

	for i, c := range fft {
		mag := math.Hypot(float64(real(c)), float64(imag(c))) / half

		var dbfs float64
		if mag < 1 {
			if mag <= 0 {
				dbfs = float64(FloorDbFs16Bit)
			} else {
				dbfs = 20 * math.Log10(mag)
				if dbfs < float64(FloorDbFs16Bit) {
					dbfs = float64(FloorDbFs16Bit)
				}
			}
		} else {
			dbfs = 0
		}
		out[i] = float32(dbfs)
	}
	return out
}

// ScalePower applies the window amplitude correction and user offset on
// top of a power frame produced by Power: out[k] = factor*(in[k]-offset).
// Unlike Power, the result is not guaranteed to stay within
// [FloorDbFs16Bit, 0] — factor and offset are operator-tunable display
// knobs, not physical constraints.
func ScalePower(power []float32, factor, offset float32) []float32 {
	out := make([]float32, len(power))
	for i, v := range power {
		out[i] = factor * (v - offset)
	}
	return out
}

// WindowAmplitudeCorrection returns 1/mean(window), the scalar that
// compensates for the amplitude loss a window function introduces.
func WindowAmplitudeCorrection(window []float32) float32 {
	mean := meanFloat32(window)
	if mean == 0 {
		return 1
	}
	return 1 / mean
}

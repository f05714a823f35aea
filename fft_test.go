package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sineWave(n int, sampleRate, freq, amplitude, phaseRad float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate+phaseRad))
	}
	return out
}

func TestStepFromOverlap_Bounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fftSize := rapid.IntRange(2, 8192).Draw(t, "fftSize")
		overlap := float32(rapid.Float64Range(-1, 2).Draw(t, "overlap"))

		step := stepFromOverlap(fftSize, overlap)
		assert.GreaterOrEqual(t, step, 1)
		assert.LessOrEqual(t, step, fftSize)

		switch {
		case overlap <= 0:
			assert.Equal(t, fftSize, step)
		case overlap >= 1:
			assert.Equal(t, 1, step)
		default:
			want := fftSize - int(math.Round(float64(overlap)*float64(fftSize)))
			if want < 1 {
				want = 1
			}
			assert.Equal(t, want, step)
		}
	})
}

func TestWelchCalculator_PureToneAtBinCenter(t *testing.T) {
	const fftSize = 8
	const sampleRate = 8000.0

	window := RectangularWindow(fftSize)
	w := NewWelchCalculator(fftSize, 0, window)

	signal := sineWave(fftSize, sampleRate, 1000, 1.0, 0)

	out := NewQueue[FFTResult](4)
	w.UpdateBuffer(signal)
	w.Calculate(out)

	result, ok := out.Poll()
	require.True(t, ok)
	require.NotNil(t, result)

	for i, c := range *result {
		mag := math.Hypot(float64(real(c)), float64(imag(c)))
		switch i {
		case 1, 7:
			assert.InDelta(t, 4.0, mag, 1e-4)
		default:
			assert.InDelta(t, 0.0, mag, 1e-4)
		}
	}
}

func TestWelchCalculator_TwoTone(t *testing.T) {
	const fftSize = 8
	const sampleRate = 8000.0

	window := RectangularWindow(fftSize)
	w := NewWelchCalculator(fftSize, 0, window)

	tone1 := sineWave(fftSize, sampleRate, 1000, 1.0, 0)
	tone2 := sineWave(fftSize, sampleRate, 2000, 0.5, 135*math.Pi/180)
	combined := make([]float32, fftSize)
	for i := range combined {
		combined[i] = tone1[i] + tone2[i]
	}

	out := NewQueue[FFTResult](4)
	w.UpdateBuffer(combined)
	w.Calculate(out)

	result, ok := out.Poll()
	require.True(t, ok)
	require.NotNil(t, result)

	normalized := make([]float64, fftSize)
	for i, c := range *result {
		normalized[i] = math.Hypot(float64(real(c)), float64(imag(c))) / (fftSize / 2)
	}

	want := []float64{0, 1.0, 0.5, 0, 0, 0, 0.5, 1.0}
	for i := range want {
		assert.InDelta(t, want[i], normalized[i], 1e-3)
	}

	phaseAt := func(i int) float64 {
		c := (*result)[i]
		return math.Atan2(float64(imag(c)), float64(real(c))) * 180 / math.Pi
	}
	assert.InDelta(t, 45.0, phaseAt(2), 1e-2)
	assert.InDelta(t, -45.0, phaseAt(6), 1e-2)
}

func TestWelchCalculator_FiftyPercentOverlap(t *testing.T) {
	const fftSize = 16
	const sampleRate = float64(fftSize)

	window := RectangularWindow(fftSize)
	w := NewWelchCalculator(fftSize, 0.5, window)
	require.Equal(t, 8, stepFromOverlap(fftSize, 0.5))

	signal := sineWave(fftSize, sampleRate, 1.0, 1.0, 0)
	twoCopies := append(append([]float32{}, signal...), signal...)

	out := NewQueue[FFTResult](8)
	w.UpdateBuffer(twoCopies)
	w.Calculate(out)

	require.Equal(t, 3, out.Size())

	wantPhase := []float64{-90, 90, -90}
	for _, want := range wantPhase {
		result, ok := out.Poll()
		require.True(t, ok)
		c := (*result)[1]
		phase := math.Atan2(float64(imag(c)), float64(real(c))) * 180 / math.Pi
		assert.InDelta(t, want, phase, 1e-2)
	}
}

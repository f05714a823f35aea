package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMaxHoldFilter_ConstantInputIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numBins := rapid.IntRange(1, 8).Draw(t, "numBins")
		window := rapid.IntRange(1, 6).Draw(t, "window")
		value := float32(rapid.Float64Range(-96.32, 0).Draw(t, "value"))

		frame := make([]float32, numBins)
		for i := range frame {
			frame[i] = value
		}

		f := newMaxHoldFilter(numBins, window, FloorDbFs16Bit)
		var out []float32
		var ok bool
		for i := 0; i < window+5; i++ {
			f.Push(append([]float32(nil), frame...))
			out, ok = f.Calculate()
		}
		require.True(t, ok)
		for _, v := range out {
			assert.InDelta(t, value, v, 1e-5)
		}
	})
}

func TestSmoothFilter_ConstantInputReachesFixedPoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numBins := rapid.IntRange(1, 8).Draw(t, "numBins")
		alpha := float32(rapid.Float64Range(0.05, 1.0).Draw(t, "alpha"))
		value := float32(rapid.Float64Range(-96.32, 0).Draw(t, "value"))

		frame := make([]float32, numBins)
		for i := range frame {
			frame[i] = value
		}

		// y starts at 0 and converges to value as (1-alpha)^n -> 0; pick
		// enough iterations that the residual is negligible even at the
		// smallest alpha in range.
		iterations := int(math.Ceil(math.Log(1e-6) / math.Log(float64(1-alpha))))
		if iterations < 1 {
			iterations = 1
		}

		f := newSmoothFilter(numBins, alpha)
		var out []float32
		var ok bool
		for i := 0; i < iterations; i++ {
			f.Push(append([]float32(nil), frame...))
			out, ok = f.Calculate()
		}
		require.True(t, ok)
		for _, v := range out {
			assert.InDelta(t, value, v, 1e-3)
		}
	})
}

func TestAverageFilter_ConstantInputIsIdempotent(t *testing.T) {
	numBins, window := 4, 3
	value := float32(-20)
	frame := []float32{value, value, value, value}

	f := newAverageFilter(numBins, window)
	var out []float32
	var ok bool
	for i := 0; i < window+2; i++ {
		f.Push(append([]float32(nil), frame...))
		out, ok = f.Calculate()
	}
	require.True(t, ok)
	for _, v := range out {
		assert.InDelta(t, value, v, 1e-4)
	}
}

func TestStatisticsChain_WaitsForAllWindowsBeforeEmitting(t *testing.T) {
	const numBins = 2
	maxHoldWindow, averageWindow := 3, 2
	chain := NewStatisticsChain(numBins, maxHoldWindow, averageWindow, 0.5)

	frame := []float32{-10, -20}

	var lastOk bool
	for i := 0; i < maxHoldWindow+averageWindow-1; i++ {
		_, lastOk = chain.Push(frame)
		if i < maxHoldWindow+averageWindow-2 {
			assert.False(t, lastOk, "chain should not emit before both windows fill, iteration %d", i)
		}
	}
	assert.True(t, lastOk)
}

func TestStatisticsChain_ConstantInputConvergesToInput(t *testing.T) {
	const numBins = 2
	chain := NewStatisticsChain(numBins, 3, 2, 1.0)
	frame := []float32{-5, -15}

	var display []float32
	var ok bool
	for i := 0; i < 20; i++ {
		display, ok = chain.Push(frame)
	}
	require.True(t, ok)
	for i, v := range display {
		assert.InDelta(t, frame[i], v, 1e-4)
	}
}

package spectrum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSelector_BinsWithinRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := uint32(rapid.IntRange(8000, 192000).Draw(t, "sampleRate"))
		fftSize := rapid.SampledFrom([]int{256, 512, 1024, 2048, 4096}).Draw(t, "fftSize")
		n := rapid.IntRange(1, 16).Draw(t, "n")

		requested := make([]float32, n)
		for i := range requested {
			requested[i] = float32(rapid.Float64Range(0, float64(sampleRate)/2).Draw(t, "freq"))
		}

		s := NewSelector(sampleRate, fftSize, requested)
		frame := make([]float32, fftSize)

		out, err := s.Apply(frame)
		require.NoError(t, err)
		assert.Len(t, out, n)

		selected := s.SelectedFrequencies()
		require.Len(t, selected, n)
		for _, f := range selected {
			assert.GreaterOrEqual(t, f, float32(0))
			assert.Less(t, f, float32(sampleRate)/2)
		}
	})
}

func TestSelector_SnapsToNearestAvailableBin(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := uint32(44100)
		fftSize := 4096
		binWidth := float32(sampleRate) / float32(fftSize)

		bin := rapid.IntRange(0, fftSize/2-1).Draw(t, "bin")
		jitter := float32(rapid.Float64Range(-0.49, 0.49).Draw(t, "jitter"))
		target := float32(bin)*binWidth + jitter*binWidth

		s := NewSelector(sampleRate, fftSize, []float32{target})
		selected := s.SelectedFrequencies()[0]

		assert.InDelta(t, float64(bin)*float64(binWidth), float64(selected), float64(binWidth)/2+1e-3)
	})
}

func TestSelector_MappingAt4096And44100(t *testing.T) {
	const sampleRate = 44100
	const fftSize = 4096

	requested := []float32{20, 100, 360, 1000, 2000, 3000}
	s := NewSelector(sampleRate, fftSize, requested)
	frame := make([]float32, fftSize)
	binWidth := float32(sampleRate) / float32(fftSize)

	for i := range frame {
		frame[i] = float32(i)
	}

	out, err := s.Apply(frame)
	require.NoError(t, err)
	require.Len(t, out, len(requested))

	selected := s.SelectedFrequencies()
	for i, want := range requested {
		assert.InDelta(t, float64(want), float64(selected[i]), float64(binWidth)/2+1e-3)
	}

	aux := []float32{25, 70, 150, 250, 700, 1400, 1600, 2200}
	want := []int{0, 1, 1, 2, 3, 3, 4, 4}
	assert.Equal(t, want, s.IndicesClosestTo(aux))
}

func TestSelector_SizeMismatchWrapsSentinel(t *testing.T) {
	s := NewSelector(44100, 4096, []float32{1000})
	_, err := s.Apply(make([]float32, 128))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameSizeMismatch)

	var mismatch *ErrSizeMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 128, mismatch.Got)
	assert.Equal(t, 4096, mismatch.Want)
}

func TestSelector_IndicesClosestTo(t *testing.T) {
	s := NewSelector(44100, 4096, []float32{500, 1000, 5000, 10000})
	selected := s.SelectedFrequencies()

	idx := s.IndicesClosestTo([]float32{990, 5010})
	require.Len(t, idx, 2)

	assert.InDelta(t, float64(selected[1]), float64(selected[idx[0]]), 1e-3)
	assert.InDelta(t, float64(selected[2]), float64(selected[idx[1]]), 1e-3)
}

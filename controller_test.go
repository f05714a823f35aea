package spectrum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestOverlapForFps_ZeroFpsIsZeroOverlap(t *testing.T) {
	assert.Equal(t, float32(0), overlapForFps(44100, 4096, 0))
}

func TestOverlapForFps_MatchesClosedForm(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := uint32(rapid.IntRange(8000, 192000).Draw(t, "sampleRate"))
		fftSize := rapid.SampledFrom([]int{256, 512, 1024, 2048, 4096}).Draw(t, "fftSize")
		fps := uint32(rapid.IntRange(1, 120).Draw(t, "fps"))

		got := overlapForFps(sampleRate, fftSize, fps)
		want := 1 - (float32(sampleRate)/float32(fps))/float32(fftSize)
		assert.InDelta(t, want, got, 1e-4)
	})
}

func TestOverlapFpsErrorTerm_ZeroWhenOnTarget(t *testing.T) {
	assert.Equal(t, float32(0), overlapFpsErrorTerm(30, 30))
}

func TestOverlapFpsErrorTerm_PositiveWhenTooSlow(t *testing.T) {
	got := overlapFpsErrorTerm(30, 20)
	assert.Greater(t, got, float32(0))
}

func TestOverlapFpsErrorTerm_NegativeWhenTooFast(t *testing.T) {
	got := overlapFpsErrorTerm(30, 40)
	assert.Less(t, got, float32(0))
}

func TestFlowController_DispQueueBacklogAddsNegativeBias(t *testing.T) {
	biased := overlapForFps(44100, 4096, 30) + overlapFpsErrorTerm(30, 30) + backlogBiasPerTick
	unbiased := overlapForFps(44100, 4096, 30) + overlapFpsErrorTerm(30, 30)

	assert.Less(t, biased, unbiased)
	assert.InDelta(t, unbiased+backlogBiasPerTick, biased, 1e-6)
}

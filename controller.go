package spectrum

import (
	"context"
	"time"
)

// backlogBiasPerTick is added to the computed overlap (it is negative,
// so it lowers it) whenever the display queue holds more than one frame: the screen is
// behind, so produce fewer frames rather than more.
const backlogBiasPerTick = -0.01

// fpsErrorGain scales the proportional correction applied for the
// difference between the desired and the actually observed frame rate.
const fpsErrorGain = 1.0

// FlowController closes the loop between how fast the FFT stage
// produces frames and how fast the renderer consumes them, by picking a
// new Welch overlap ratio once per tick and pushing it to the stage
// that owns overlap.
type FlowController struct {
	sampleRate     uint32
	fftSize        int
	desiredFps     uint32
	tickerInterval time.Duration
	obs            Observer
	dispQueueSize  func() int
}

// NewFlowController builds a controller for the given acquisition
// parameters. dispQueueSize reports the current depth of the queue
// feeding the renderer, used for the backlog bias.
func NewFlowController(sampleRate uint32, fftSize int, desiredFps uint32, obs Observer, dispQueueSize func() int) *FlowController {
	return &FlowController{
		sampleRate:     sampleRate,
		fftSize:        fftSize,
		desiredFps:     desiredFps,
		tickerInterval: 100 * time.Millisecond,
		obs:            obs,
		dispQueueSize:  dispQueueSize,
	}
}

// overlapForFps returns the overlap ratio that would make the Spectrum
// stage emit fpsActual frames per second at the configured sample rate
// and FFT size: a fraction 1-step/fftSize of each segment is shared
// with the next, and step frames worth of new samples arrive every
// 1/fpsActual seconds of audio, i.e. sampleRate/fpsActual samples.
func overlapForFps(sampleRate uint32, fftSize int, fpsActual uint32) float32 {
	if fpsActual == 0 {
		return 0
	}
	step := float32(sampleRate) / float32(fpsActual)
	return 1 - step/float32(fftSize)
}

// overlapFpsErrorTerm returns a small corrective term proportional to
// the error between the desired and actual frame rate: too few frames
// per second pushes overlap up (more shared samples, a smaller step,
// more FFT frames per second of audio), too many pulls it back down.
func overlapFpsErrorTerm(desiredFps, actualFps uint32) float32 {
	return fpsErrorGain * float32(int(desiredFps)-int(actualFps)) / float32(desiredFps)
}

// Run drives the controller until ctx is cancelled or proceed clears,
// pushing new overlap values to out at most once per tick.
func (c *FlowController) Run(ctx context.Context, proceed *ProceedFlag, out *Queue[float32]) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("controller: recovered from panic", "panic", r)
			proceed.Stop()
		}
	}()
	defer out.Stop()

	ticker := time.NewTicker(c.tickerInterval)
	defer ticker.Stop()

	for proceed.Get() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fpsActual := uint32(c.obs.CallsInLast(StageRenderer, time.Second))

		overlap := overlapForFps(c.sampleRate, c.fftSize, fpsActual)
		overlap += overlapFpsErrorTerm(c.desiredFps, fpsActual)

		if c.dispQueueSize() > 1 {
			overlap += backlogBiasPerTick
		}

		if overlap >= 0 && overlap < 1 {
			out.Push(&overlap)
		}
	}
}

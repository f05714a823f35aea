package spectrum

import (
	"context"
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// FFTResult is a forward complex DFT of length fftSize. For real input,
// the upper half is the conjugate mirror of the lower half; only bins
// 0..fftSize/2 carry unique information.
type FFTResult []complex64

// WelchCalculator buffers incoming time-domain samples and emits one
// windowed FFT per Welch segment, advancing the buffer by a step that
// depends on the configured overlap. Overlap may be updated between
// calls to Calculate (the only parameter mutable mid-run, fed from the
// flow controller's Q_ctrl).
type WelchCalculator struct {
	fftSize int
	overlap float32
	step    int
	window  []float32
	buf     []float32
}

// NewWelchCalculator creates a calculator for the given FFT size,
// initial overlap ratio, and window (length must equal fftSize).
func NewWelchCalculator(fftSize int, overlap float32, window []float32) *WelchCalculator {
	w := &WelchCalculator{
		fftSize: fftSize,
		overlap: overlap,
		window:  window,
	}
	w.step = stepFromOverlap(fftSize, overlap)
	return w
}

// stepFromOverlap computes the Welch segment advance for a given FFT
// size and overlap ratio: overlap<=0 means no overlap (advance by a
// full segment), overlap>=1 is clamped to advance by a single sample,
// otherwise the advance is the fraction (1-overlap) of the segment.
func stepFromOverlap(fftSize int, overlap float32) int {
	if overlap <= 0 {
		return fftSize
	}
	if overlap >= 1 {
		return 1
	}
	step := fftSize - int(math.Round(float64(overlap)*float64(fftSize)))
	if step < 1 {
		step = 1
	}
	return step
}

// UpdateBuffer appends newly acquired samples to the internal
// time-domain buffer.
func (w *WelchCalculator) UpdateBuffer(frame []float32) {
	w.buf = append(w.buf, frame...)
}

// UpdateOverlap replaces the overlap ratio and recomputes the step used
// by subsequent calls to Calculate.
func (w *WelchCalculator) UpdateOverlap(overlap float32) {
	w.overlap = overlap
	w.step = stepFromOverlap(w.fftSize, overlap)
}

// Calculate drains as many fftSize-length, window-multiplied segments
// as the buffer currently holds, pushing one FFTResult per segment into
// out and advancing the buffer by step samples each time.
func (w *WelchCalculator) Calculate(out *Queue[FFTResult]) {
	for len(w.buf) >= w.fftSize {
		segment := make([]complex128, w.fftSize)
		for i := 0; i < w.fftSize; i++ {
			segment[i] = complex(float64(w.buf[i]*w.window[i]), 0)
		}

		spectrum := fft.FFT(segment)
		result := make(FFTResult, w.fftSize)
		for i, c := range spectrum {
			result[i] = complex64(complex(real(c), imag(c)))
		}
		out.Push(&result)

		step := w.step
		if step > len(w.buf) {
			step = len(w.buf)
		}
		w.buf = w.buf[step:]
	}
}

// RunFFTStage drives the Spectrum stage's worker loop: pull raw sample
// frames from in, apply any pending overlap update from ctrl, run Welch
// segmentation, and push FFT results to out. Exits when proceed flips;
// a nil sentinel from in means "no data this tick" and the loop goes
// back to recheck proceed.
func RunFFTStage(ctx context.Context, w *WelchCalculator, in *Queue[[]float32], ctrl *Queue[float32], out *Queue[FFTResult], proceed *ProceedFlag, obs Observer) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("fft: recovered from panic", "panic", r)
			proceed.Stop()
		}
	}()
	defer out.Stop()

	for proceed.Get() {
		frame, ok := in.Get(ctx)
		if !ok {
			continue
		}
		if newOverlap, ok := ctrl.Poll(); ok && newOverlap != nil {
			w.UpdateOverlap(*newOverlap)
		}
		if frame == nil {
			continue
		}

		obs.RecordCall(StageFFT)
		w.UpdateBuffer(*frame)
		w.Calculate(out)
	}
}

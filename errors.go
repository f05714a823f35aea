package spectrum

import "errors"

// Sentinel error kinds, each documented with its recovery policy
// (log-and-continue, or flip ProceedFlag and unwind). Errors returned
// by this package wrap them so callers can match with errors.Is.
var (
	// ErrDeviceInitFailure means the audio source could not be opened
	// (unsupported sampling rate, no input device, etc). Fatal.
	ErrDeviceInitFailure = errors.New("spectrum: audio device initialization failed")

	// ErrFrameSizeMismatch means an FFT output and the selector's
	// expected size diverged. Indicates a programming error. Fatal.
	ErrFrameSizeMismatch = errors.New("spectrum: frame size mismatch")

	// ErrTransientInputUnderflow means Poll returned fewer samples than
	// expected for one tick. Recoverable: log and skip the tick.
	ErrTransientInputUnderflow = errors.New("spectrum: transient input underflow")

	// ErrOverflowDrain is not propagated as an error return; it names
	// the condition an Observer.OverflowDrain call records when a
	// queue exceeded capacity and was drained down to its newest item.
	ErrOverflowDrain = errors.New("spectrum: queue overflow drain")
)

package spectrum

import "sync/atomic"

// ProceedFlag is the shared cooperative-shutdown signal every stage
// polls at the top of its loop. It starts true, is flipped to false
// exactly once (on close request or unrecoverable error), and is never
// set back to true.
type ProceedFlag struct {
	v atomic.Bool
}

// NewProceedFlag returns a flag initialized to true (run).
func NewProceedFlag() *ProceedFlag {
	f := &ProceedFlag{}
	f.v.Store(true)
	return f
}

// Get reports whether stages should keep running.
func (f *ProceedFlag) Get() bool {
	return f.v.Load()
}

// Stop flips the flag to false. Safe to call more than once or from
// multiple goroutines.
func (f *ProceedFlag) Stop() {
	f.v.Store(false)
}

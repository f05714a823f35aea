package spectrum

import "time"

// DynamicMaxHolder tracks, per bin, the highest dBFS value seen
// recently, decaying it back down over time once nothing new exceeds
// it. Unlike maxHoldFilter's fixed sliding window, it decays
// continuously against a wall-clock rate rather than a frame count, so
// it is driven by Calculate calls at whatever cadence the caller likes.
type DynamicMaxHolder struct {
	msPerDb     float32
	accelerate  bool
	values      []float32
	lastUpdated []time.Time
}

// NewDynamicMaxHolder creates a holder for numBins bins, initialized to
// the floor. msPerDb is how many milliseconds of untouched decay it
// takes to fall one dB; accelerate selects whether repeated decay ticks
// without a new peak fall faster (true) or at the same linear rate
// (false).
func NewDynamicMaxHolder(numBins int, msPerDb float32, accelerate bool) *DynamicMaxHolder {
	now := time.Now()
	values := make([]float32, numBins)
	lastUpdated := make([]time.Time, numBins)
	for i := range values {
		values[i] = FloorDbFs16Bit
		lastUpdated[i] = now
	}
	return &DynamicMaxHolder{msPerDb: msPerDb, accelerate: accelerate, values: values, lastUpdated: lastUpdated}
}

// Calculate folds one new dBFS frame into the held values: a bin that
// exceeds its decayed value is raised to the new peak and its decay
// clock restarts; otherwise the decayed value is kept.
//
// In accelerating mode, a bin that keeps losing to its own decay never
// has its clock reset, so the elapsed time driving the decay keeps
// growing and the fall speeds up the longer a peak goes unbeaten.
func (h *DynamicMaxHolder) Calculate(dbfs []float32) {
	now := time.Now()
	for i := range h.values {
		elapsedMs := float32(now.Sub(h.lastUpdated[i]).Milliseconds())
		decayed := h.values[i] - elapsedMs/h.msPerDb
		if decayed < FloorDbFs16Bit {
			decayed = FloorDbFs16Bit
		}

		if dbfs[i] > decayed {
			h.values[i] = dbfs[i]
			h.lastUpdated[i] = now
			continue
		}

		h.values[i] = decayed
		if !h.accelerate {
			h.lastUpdated[i] = now
		}
	}
}

// Get returns a snapshot of the currently held values.
func (h *DynamicMaxHolder) Get() []float32 {
	out := make([]float32, len(h.values))
	copy(out, h.values)
	return out
}

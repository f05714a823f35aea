package spectrum

import (
	"fmt"
	"sort"
)

// ErrSizeMismatch is returned by Selector.Apply when the power frame's
// length does not equal the FFT size the selector was built for. It
// wraps ErrFrameSizeMismatch so callers can check the kind with
// errors.Is without caring about the bin counts.
type ErrSizeMismatch struct {
	Got, Want int
}

func (e *ErrSizeMismatch) Error() string {
	return fmt.Sprintf("selector: size mismatch: got %d power-frame elements, want %d", e.Got, e.Want)
}

func (e *ErrSizeMismatch) Unwrap() error {
	return ErrFrameSizeMismatch
}

// barFreq pairs the FFT bin index a bar reads from with the snapped
// frequency it actually represents.
type barFreq struct {
	bin  int
	freq float32
}

// Selector maps a fixed list of requested frequencies onto the nearest
// available FFT bins, once, at construction. The set of available
// frequencies is {sr*i/fftSize : 0 <= i < fftSize/2}.
type Selector struct {
	fftSize    int
	bars       []barFreq
	availFreqs []float32 // ascending, index i holds sr*i/fftSize
}

// NewSelector builds the frequency index table for sampleRate, fftSize,
// and the requested bar frequencies.
func NewSelector(sampleRate uint32, fftSize int, requested []float32) *Selector {
	half := fftSize / 2
	avail := make([]float32, half)
	for i := 0; i < half; i++ {
		avail[i] = float32(sampleRate) * float32(i) / float32(fftSize)
	}

	s := &Selector{fftSize: fftSize, availFreqs: avail}
	s.bars = make([]barFreq, len(requested))
	for i, f := range requested {
		bin, snapped := snapToSorted(avail, f)
		s.bars[i] = barFreq{bin: bin, freq: snapped}
	}
	return s
}

// snapToSorted finds the index into an ascending slice closest to f,
// tie-breaking toward the lower neighbor.
func snapToSorted(avail []float32, f float32) (index int, snapped float32) {
	if len(avail) == 0 {
		return 0, 0
	}
	if f <= avail[0] {
		return 0, avail[0]
	}

	// sort.Search finds the first index where avail[i] >= f.
	upper := sort.Search(len(avail), func(i int) bool { return avail[i] >= f })

	if upper >= len(avail) {
		return len(avail) - 1, avail[len(avail)-1]
	}
	if upper == 0 {
		return 0, avail[0]
	}

	lower := upper - 1
	if f-avail[lower] <= avail[upper]-f {
		return lower, avail[lower]
	}
	return upper, avail[upper]
}

// Apply returns, for each bar, powerFrame[binIndex]. powerFrame must
// have length fftSize (the FFT size this Selector was built for).
func (s *Selector) Apply(powerFrame []float32) ([]float32, error) {
	if len(powerFrame) != s.fftSize {
		return nil, &ErrSizeMismatch{Got: len(powerFrame), Want: s.fftSize}
	}

	out := make([]float32, len(s.bars))
	for i, b := range s.bars {
		out[i] = powerFrame[b.bin]
	}
	return out, nil
}

// SelectedFrequencies returns the snapped frequency assigned to each
// bar, in bar order.
func (s *Selector) SelectedFrequencies() []float32 {
	out := make([]float32, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.freq
	}
	return out
}

// IndicesClosestTo snaps each of auxFreqs against the already-selected
// bar frequencies (not the full FFT bin set) and returns, for each aux
// frequency, the bar index whose snapped frequency is closest.
func (s *Selector) IndicesClosestTo(auxFreqs []float32) []int {
	type entry struct {
		freq   float32
		barIdx int
	}
	sorted := make([]entry, len(s.bars))
	for i, b := range s.bars {
		sorted[i] = entry{freq: b.freq, barIdx: i}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].freq < sorted[j].freq })

	sortedFreqs := make([]float32, len(sorted))
	for i, e := range sorted {
		sortedFreqs[i] = e.freq
	}

	out := make([]int, len(auxFreqs))
	for i, f := range auxFreqs {
		pos, _ := snapToSorted(sortedFreqs, f)
		out[i] = sorted[pos].barIdx
	}
	return out
}

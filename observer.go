package spectrum

import (
	"sync"
	"time"
)

// Stage names used as Observer keys. The controller reads call rates
// keyed by these names (StageRenderer in particular, to compute fps).
const (
	StageAcquirer   = "samplesUpdater"
	StageFFT        = "fftCalculator"
	StageStatistics = "processing"
	StageRenderer   = "drafter"
	StageController = "flowController"
)

// Observer is the explicit side-channel each stage and the controller
// are handed, replacing a process-wide call-timing map guarded by a
// single global mutex. RecordCall marks one invocation of a named
// stage; CallsInLast answers "how many times was this stage invoked
// within the trailing window"; QueueDepth lets an Observer
// implementation additionally publish queue sizes (e.g. as Prometheus
// gauges) without every stage needing to know about metrics wiring.
type Observer interface {
	RecordCall(stage string)
	CallsInLast(stage string, window time.Duration) int
	QueueDepth(queueName string, size int)
	OverflowDrain(queueName string)
}

// memoryObserver is an in-process ring of call timestamps per stage
// name, guarded by one mutex (mirroring the original's per-name deque,
// without exposing a package-level singleton). Used by tests, and in
// production as the first member of a multiObserver, which answers
// CallsInLast from it.
type memoryObserver struct {
	mu      sync.Mutex
	calls   map[string][]time.Time
	maxKeep time.Duration
	now     func() time.Time
}

// NewMemoryObserver returns an Observer that keeps, per stage, call
// timestamps from the trailing maxKeep window (the original kept a
// fixed 3s trailing window; callers needing longer CallsInLast windows
// should size maxKeep accordingly).
func NewMemoryObserver(maxKeep time.Duration) Observer {
	return &memoryObserver{
		calls:   make(map[string][]time.Time),
		maxKeep: maxKeep,
		now:     time.Now,
	}
}

func (o *memoryObserver) RecordCall(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	q := append(o.calls[stage], now)

	cut := 0
	for cut < len(q) && now.Sub(q[cut]) > o.maxKeep {
		cut++
	}
	o.calls[stage] = q[cut:]
}

func (o *memoryObserver) CallsInLast(stage string, window time.Duration) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	q := o.calls[stage]
	now := o.now()
	count := 0
	for i := len(q) - 1; i >= 0; i-- {
		if now.Sub(q[i]) < window {
			count++
		} else {
			break
		}
	}
	return count
}

func (o *memoryObserver) QueueDepth(string, int)    {}
func (o *memoryObserver) OverflowDrain(string)      {}

// multiObserver fans RecordCall/QueueDepth/OverflowDrain out to several
// Observers (e.g. the in-memory one the controller reads fps from, plus
// a Prometheus-backed one for external scraping) so production wiring
// never has to choose just one.
type multiObserver struct {
	observers []Observer
}

// NewMultiObserver combines several Observers. CallsInLast is answered
// by the first observer passed (conventionally the in-memory one, since
// it is the cheapest to query synchronously from the controller's
// 100ms tick).
func NewMultiObserver(observers ...Observer) Observer {
	return &multiObserver{observers: observers}
}

func (m *multiObserver) RecordCall(stage string) {
	for _, o := range m.observers {
		o.RecordCall(stage)
	}
}

func (m *multiObserver) CallsInLast(stage string, window time.Duration) int {
	if len(m.observers) == 0 {
		return 0
	}
	return m.observers[0].CallsInLast(stage, window)
}

func (m *multiObserver) QueueDepth(queueName string, size int) {
	for _, o := range m.observers {
		o.QueueDepth(queueName, size)
	}
}

func (m *multiObserver) OverflowDrain(queueName string) {
	for _, o := range m.observers {
		o.OverflowDrain(queueName)
	}
}

package spectrum

import (
	"context"
	"time"
)

// Pipeline wires together the five stages — Acquirer, Spectrum,
// Statistics, Renderer, and Controller — with the bounded queues
// connecting them, and owns their shared shutdown flag.
type Pipeline struct {
	cfg Config

	proceed *ProceedFlag
	obs     Observer

	rawQueue  *Queue[[]float32]
	fftQueue  *Queue[FFTResult]
	ctrlQueue *Queue[float32]
	dispQueue *Queue[[]float32]

	source   SampleSource
	sink     DisplaySink
	welch    *WelchCalculator
	selector *Selector
	stats    *StatisticsChain
	holder   *DynamicMaxHolder
	ctrl     *FlowController
}

// NewPipeline constructs every stage from cfg and wires their queues;
// nothing runs until Run is called.
func NewPipeline(cfg Config, source SampleSource, sink DisplaySink, obs Observer) *Pipeline {
	cfg.fillDerivedDefaults()
	queueCap := int(cfg.MaxQueueSize)

	p := &Pipeline{
		cfg:       cfg,
		proceed:   NewProceedFlag(),
		obs:       obs,
		rawQueue:  NewQueue[[]float32](queueCap),
		fftQueue:  NewQueue[FFTResult](queueCap),
		ctrlQueue: NewQueue[float32](queueCap),
		dispQueue: NewQueue[[]float32](queueCap),
		source:    source,
		sink:      sink,
	}

	p.welch = NewWelchCalculator(int(cfg.NumberOfSamples), cfg.initialOverlap(), cfg.SignalWindow)
	p.selector = NewSelector(cfg.SamplingRate, int(cfg.NumberOfSamples), cfg.Freqs)
	p.stats = NewStatisticsChain(len(cfg.Freqs), int(cfg.NumberOfSignalsForMaxHold), int(cfg.NumberOfSignalsForAveraging), cfg.AlphaFactor)
	p.holder = NewDynamicMaxHolder(len(cfg.Freqs), cfg.DynamicMaxHoldSpeedOfFalling, cfg.DynamicMaxHoldAccelerationStateOfFalling)
	p.ctrl = NewFlowController(cfg.SamplingRate, int(cfg.NumberOfSamples), cfg.DesiredFrameRate, obs, p.dispQueue.Size)

	return p
}

// initialOverlap derives a starting overlap from the desired frame
// rate, the same formula the flow controller converges toward at
// steady state.
func (c *Config) initialOverlap() float32 {
	return overlapForFps(c.SamplingRate, int(c.NumberOfSamples), c.DesiredFrameRate)
}

// Run starts every stage's goroutine and blocks until the shared
// ProceedFlag is cleared (by Stop, by the sink asking to close, or by
// a fatal stage error); cancelling ctx alone does not make it return. It also
// logs the per-second diagnostic lines the original's flow controller
// wrote to stdout.
func (p *Pipeline) Run(ctx context.Context) error {
	if ok, err := p.source.Initialize(p.cfg.NumberOfSamples, p.cfg.SamplingRate); !ok {
		p.proceed.Stop()
		return err
	}
	defer p.source.Close()

	go RunAcquirerStage(p.proceed, p.source, p.cfg.NumberOfSamples, p.rawQueue, p.obs)
	go RunFFTStage(ctx, p.welch, p.rawQueue, p.ctrlQueue, p.fftQueue, p.proceed, p.obs)
	go p.runStatisticsStage(ctx)
	go p.ctrl.Run(ctx, p.proceed, p.ctrlQueue)
	go p.logDiagnostics(ctx)

	return RunRendererStage(p.proceed, p.dispQueue, p.sink, p.obs)
}

// Stop requests a graceful shutdown; every stage observes ProceedFlag
// going false on its own loop condition and unwinds.
func (p *Pipeline) Stop() {
	p.proceed.Stop()
}

// RawQueue exposes the Acquirer->Spectrum queue, for diagnostics
// consumers like MQTTTelemetryPublisher built outside the pipeline.
func (p *Pipeline) RawQueue() *Queue[[]float32] {
	return p.rawQueue
}

// DispQueue exposes the Statistics->Renderer queue, for the same
// reason as RawQueue.
func (p *Pipeline) DispQueue() *Queue[[]float32] {
	return p.dispQueue
}

// runStatisticsStage reads FFT frames, converts them to power,
// selects bars, folds them through the statistics chain and the
// dynamic max-holder, and pushes the combined display frame.
func (p *Pipeline) runStatisticsStage(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("statistics: recovered from panic", "panic", r)
			p.proceed.Stop()
		}
	}()
	defer p.dispQueue.Stop()

	for p.proceed.Get() {
		fftFrame, ok := p.fftQueue.Get(ctx)
		if !ok {
			return
		}
		if fftFrame == nil {
			continue
		}

		power := Power(*fftFrame)
		power = ScalePower(power, p.cfg.ScalingFactor, p.cfg.OffsetFactor)

		barPower, err := p.selector.Apply(power)
		if err != nil {
			Logger.Error("statistics: selector apply failed", "err", err)
			p.proceed.Stop()
			return
		}

		display, ok := p.stats.Push(barPower)
		if !ok {
			continue
		}

		p.holder.Calculate(display)
		combined := p.holder.Get()

		p.obs.RecordCall(StageStatistics)
		if p.dispQueue.Push(&combined) {
			p.obs.OverflowDrain("dispFrames")
		}
	}
}

// logDiagnostics writes one line per second summarizing throughput at
// both ends of the pipeline, mirroring the original's console output
// but through the structured logger and also exposed via the Observer
// to whichever metrics backend is wired in.
func (p *Pipeline) logDiagnostics(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.proceed.Get() {
				return
			}
			Logger.Info("samples updated",
				"perSecond", p.obs.CallsInLast(StageAcquirer, time.Second),
				"queueSize", p.rawQueue.Size())
			Logger.Info("plots updated",
				"perSecond", p.obs.CallsInLast(StageRenderer, time.Second),
				"queueSize", p.dispQueue.Size())

			p.obs.QueueDepth("rawSamples", p.rawQueue.Size())
			p.obs.QueueDepth("fftFrames", p.fftQueue.Size())
			p.obs.QueueDepth("dispFrames", p.dispQueue.Size())
		}
	}
}

package spectrum

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver backs production deployments: every RecordCall
// increments a per-stage counter and every QueueDepth/OverflowDrain call
// updates a per-queue gauge/counter, all scrapeable from the listen
// address passed to ServeMetrics.
type PrometheusObserver struct {
	calls     *prometheus.CounterVec
	depth     *prometheus.GaugeVec
	overflows *prometheus.CounterVec
}

// NewPrometheusObserver registers the pipeline's metrics with reg (pass
// prometheus.NewRegistry() for isolated tests, or
// prometheus.DefaultRegisterer for the process-wide default).
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	factory := promauto.With(reg)
	return &PrometheusObserver{
		calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectrumcore",
			Name:      "stage_calls_total",
			Help:      "Number of times a pipeline stage completed one unit of work.",
		}, []string{"stage"}),
		depth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spectrumcore",
			Name:      "queue_depth",
			Help:      "Current number of items queued between pipeline stages.",
		}, []string{"queue"}),
		overflows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spectrumcore",
			Name:      "queue_overflow_drains_total",
			Help:      "Number of times a queue exceeded capacity and was drained.",
		}, []string{"queue"}),
	}
}

func (p *PrometheusObserver) RecordCall(stage string) {
	p.calls.WithLabelValues(stage).Inc()
}

// CallsInLast is not answerable from a monotonic counter; the
// PrometheusObserver is meant to be combined with a memoryObserver via
// NewMultiObserver, which answers CallsInLast from the latter.
func (p *PrometheusObserver) CallsInLast(string, time.Duration) int {
	return 0
}

func (p *PrometheusObserver) QueueDepth(queueName string, size int) {
	p.depth.WithLabelValues(queueName).Set(float64(size))
}

func (p *PrometheusObserver) OverflowDrain(queueName string) {
	p.overflows.WithLabelValues(queueName).Inc()
}

// ServeMetrics starts an HTTP server exposing /metrics on addr. It runs
// until the process exits; callers typically launch it in its own
// goroutine during startup.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

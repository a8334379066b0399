package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan outcomes
const (
	OutcomeOK      = "ok"
	OutcomeFlagged = "flagged"
	OutcomeError   = "error"
)

// Registry holds the service's Prometheus collectors. A nil *Registry records nothing.
type Registry struct {
	reg *prometheus.Registry

	ScansTotal         *prometheus.CounterVec
	StageLatencySec    *prometheus.HistogramVec
	HallucinationFlags *prometheus.CounterVec
	Confidence         *prometheus.HistogramVec
	InFlight           prometheus.Gauge
}

func New() *Registry {
	r := prometheus.NewRegistry()
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docscan_scans_total",
		Help: "Scans by document type and outcome.",
	}, []string{"document", "outcome"})
	stageLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docscan_stage_latency_seconds",
		Help:    "Latency of pipeline stages.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
	}, []string{"document", "stage"})
	flags := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "docscan_hallucination_flags_total",
		Help: "Documents flagged as likely fabricated.",
	}, []string{"document"})
	conf := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "docscan_confidence",
		Help:    "Overall confidence of successful scans.",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	}, []string{"document"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "docscan_scans_in_flight",
		Help: "Scans currently being processed.",
	})

	r.MustRegister(scans, stageLatency, flags, conf, inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:                r,
		ScansTotal:         scans,
		StageLatencySec:    stageLatency,
		HallucinationFlags: flags,
		Confidence:         conf,
		InFlight:           inFlight,
	}
}

// ObserveStage records how long a pipeline stage took
func (r *Registry) ObserveStage(document, stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.StageLatencySec.WithLabelValues(document, stage).Observe(d.Seconds())
}

// ScanFinished records a scan outcome
func (r *Registry) ScanFinished(document, outcome string) {
	if r == nil {
		return
	}
	r.ScansTotal.WithLabelValues(document, outcome).Inc()
}

// Flagged records a document the hallucination detector rejected
func (r *Registry) Flagged(document string) {
	if r == nil {
		return
	}
	r.HallucinationFlags.WithLabelValues(document).Inc()
}

// ObserveConfidence records the overall confidence of a scan
func (r *Registry) ObserveConfidence(document string, v float64) {
	if r == nil {
		return
	}
	r.Confidence.WithLabelValues(document).Observe(v)
}

// TrackInFlight increments the in-flight gauge and returns its decrement
func (r *Registry) TrackInFlight() func() {
	if r == nil {
		return func() {}
	}
	r.InFlight.Inc()
	return r.InFlight.Dec
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

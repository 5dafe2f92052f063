// Package metrics exposes Prometheus instrumentation for the dispatch
// pipeline and its transports.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline holds the collectors maintained by a dispatch pipeline. A nil
// *Pipeline is valid and records nothing, so instrumentation stays optional.
type Pipeline struct {
	requests     *prometheus.CounterVec
	inFlight     prometheus.Gauge
	duration     prometheus.Histogram
	reorderDepth prometheus.Gauge
}

// NewPipeline creates and registers the pipeline collectors. Pass
// prometheus.DefaultRegisterer unless the caller owns its own registry.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "onerpc",
			Name:      "requests_total",
			Help:      "Processed call messages by outcome. Code is empty on success.",
		}, []string{"kind", "code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onerpc",
			Name:      "requests_in_flight",
			Help:      "Call messages currently being processed.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "onerpc",
			Name:      "request_duration_seconds",
			Help:      "Wall time from acceptance to completion of a call message.",
			Buckets:   prometheus.DefBuckets,
		}),
		reorderDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "onerpc",
			Name:      "reorder_buffer_depth",
			Help:      "Completed responses withheld by ordered mode.",
		}),
	}
	if reg != nil {
		reg.MustRegister(p.requests, p.inFlight, p.duration, p.reorderDepth)
	}
	return p
}

// RequestStarted records intake of one call message.
func (p *Pipeline) RequestStarted() {
	if p == nil {
		return
	}
	p.inFlight.Inc()
}

// RequestFinished records completion of one call message. code is 0 on
// success, the response error code otherwise.
func (p *Pipeline) RequestFinished(kind string, code int, seconds float64) {
	if p == nil {
		return
	}
	p.inFlight.Dec()
	p.duration.Observe(seconds)
	label := ""
	if code != 0 {
		label = strconv.Itoa(code)
	}
	p.requests.WithLabelValues(kind, label).Inc()
}

// ReorderDepth records the ordered-mode buffer depth.
func (p *Pipeline) ReorderDepth(depth int) {
	if p == nil {
		return
	}
	p.reorderDepth.Set(float64(depth))
}

// Handler returns the scrape endpoint for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package metrics exposes run statistics as Prometheus collectors.
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tenderkg"

type Recorder struct {
	identifiers     prometheus.Counter
	committed       prometheus.Counter
	filtered        *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	previewRejected prometheus.Counter
	errors          *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them on reg when it is
// not nil.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		identifiers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_total",
			Help:      "Tender identifiers handed to the orchestrator.",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_committed_total",
			Help:      "Candidate units written to the knowledge store.",
		}),
		filtered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_filtered_total",
			Help:      "Candidate units rejected by the content filter, by reason.",
		}, []string{"reason"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_duplicate_total",
			Help:      "Candidate units skipped as duplicates, by detecting layer.",
		}, []string{"layer"}),
		previewRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preview_rejected_total",
			Help:      "Candidate units withheld by the preview gate.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Counted errors, by pipeline stage.",
		}, []string{"stage"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent retrieving one tender page, retries and jitter included.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			r.identifiers, r.committed, r.filtered, r.duplicates,
			r.previewRejected, r.errors, r.fetchDuration,
		)
	}
	return r
}

func (r *Recorder) IdentifierProcessed() {
	if r == nil {
		return
	}
	r.identifiers.Inc()
}

func (r *Recorder) UnitCommitted() {
	if r == nil {
		return
	}
	r.committed.Inc()
}

func (r *Recorder) UnitsFiltered(reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.filtered.WithLabelValues(reason).Add(float64(n))
}

func (r *Recorder) UnitDuplicate(layer string) {
	if r == nil {
		return
	}
	r.duplicates.WithLabelValues(layer).Inc()
}

func (r *Recorder) PreviewRejected(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.previewRejected.Add(float64(n))
}

func (r *Recorder) Error(stage string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(stage).Inc()
}

// ObserveFetch records one Fetch call under the given outcome label.
func (r *Recorder) ObserveFetch(d time.Duration, outcome string) {
	if r == nil {
		return
	}
	r.fetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

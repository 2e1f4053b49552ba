package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for a harvest run.
type Metrics struct {
	Registry *prometheus.Registry

	Dispatches        *prometheus.CounterVec
	BackendErrors     *prometheus.CounterVec
	CandidatesEmitted prometheus.Counter
	Fetches           *prometheus.CounterVec
	FetchDuration     prometheus.Histogram
	EmailsFound       *prometheus.GaugeVec
}

// New creates the collectors on a private registry so that several runs in
// one process (tests included) never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emailhunter_dispatches_total",
			Help: "Total number of search requests sent, by backend",
		}, []string{"backend"}),
		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emailhunter_backend_errors_total",
			Help: "Total number of failed search requests, by backend",
		}, []string{"backend"}),
		CandidatesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "emailhunter_candidates_total",
			Help: "Total number of candidate documents handed to the fetch pool",
		}),
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emailhunter_fetches_total",
			Help: "Total number of candidate fetches, by outcome",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emailhunter_fetch_duration_seconds",
			Help:    "Time spent fetching and extracting one candidate",
			Buckets: prometheus.DefBuckets,
		}),
		EmailsFound: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "emailhunter_emails",
			Help: "Current number of distinct emails, by mapping",
		}, []string{"kind"}),
	}
}

// The helpers below are nil safe so components can run without metrics.

func (m *Metrics) IncrementDispatches(backend string) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(backend).Inc()
}

func (m *Metrics) IncrementBackendErrors(backend string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(backend).Inc()
}

func (m *Metrics) IncrementCandidates() {
	if m == nil {
		return
	}
	m.CandidatesEmitted.Inc()
}

func (m *Metrics) ObserveFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(seconds)
}

func (m *Metrics) SetEmails(kind string, count int) {
	if m == nil {
		return
	}
	m.EmailsFound.WithLabelValues(kind).Set(float64(count))
}

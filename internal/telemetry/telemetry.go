package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks gateway and session counters exposed on /metrics.
type Metrics struct {
	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
}

// New registers the service metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intervu_llm_requests_total",
			Help: "Completion requests by prompt kind and outcome.",
		}, []string{"kind", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intervu_llm_request_seconds",
			Help:    "Completion request latency by prompt kind.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"kind"}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervu_sessions_started_total",
			Help: "Interview sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intervu_sessions_completed_total",
			Help: "Interview sessions that reached the final evaluation.",
		}),
	}
	reg.MustRegister(m.llmRequests, m.llmLatency, m.sessionsStarted, m.sessionsCompleted)
	return m
}

// NewNop returns metrics registered on a throwaway registry, for tests
// and for callers that run without telemetry.
func NewNop() *Metrics { return New(prometheus.NewRegistry()) }

// ObserveLLMRequest records one gateway call.
func (m *Metrics) ObserveLLMRequest(kind string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmRequests.WithLabelValues(kind, outcome).Inc()
	m.llmLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// SessionStarted counts one started interview.
func (m *Metrics) SessionStarted() { m.sessionsStarted.Inc() }

// SessionCompleted counts one finished interview.
func (m *Metrics) SessionCompleted() { m.sessionsCompleted.Inc() }

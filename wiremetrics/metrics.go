// Package wiremetrics exposes a Prometheus surface for session and query
// counts. A nil *Collector is valid and every method on it is a no-op, so
// callers can wire metrics in only when a registry is configured.
package wiremetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics for one server instance.
type Collector struct {
	Registry       *prometheus.Registry
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	queriesTotal   *prometheus.CounterVec
	queryDuration  prometheus.Histogram
}

// New creates and registers the server's metrics on a fresh registry. Safe
// to call more than once (e.g. in tests): each call owns an independent
// registry.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pgwire_sessions_active",
			Help: "Number of currently open client sessions.",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pgwire_sessions_total",
			Help: "Total number of client sessions accepted.",
		}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pgwire_queries_total",
			Help: "Total number of simple queries processed, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pgwire_query_duration_seconds",
			Help:    "Duration of simple query execution.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.sessionsActive, c.sessionsTotal, c.queriesTotal, c.queryDuration)
	return c
}

// SessionOpened increments the active and total session counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}

	c.sessionsActive.Inc()
	c.sessionsTotal.Inc()
}

// SessionClosed decrements the active session gauge.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}

	c.sessionsActive.Dec()
}

// QueryOutcome is the label recorded on pgwire_queries_total.
type QueryOutcome string

const (
	OutcomeOK    QueryOutcome = "ok"
	OutcomeError QueryOutcome = "error"
	OutcomeFatal QueryOutcome = "fatal"
)

// QueryObserved records one query's outcome and wall-clock duration.
func (c *Collector) QueryObserved(outcome QueryOutcome, d time.Duration) {
	if c == nil {
		return
	}

	c.queriesTotal.WithLabelValues(string(outcome)).Inc()
	c.queryDuration.Observe(d.Seconds())
}

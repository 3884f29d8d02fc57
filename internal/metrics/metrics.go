// Package metrics exposes Prometheus collectors for generation, conversion
// and delivery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akannigil/oxygen-documentor-sub000/internal/model"
)

const (
	namespace = "documentor"

	statusLabel   = "status"
	stateLabel    = "state"
	strategyLabel = "strategy"
	outcomeLabel  = "outcome"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Collector owns the service's metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	rows        *prometheus.CounterVec
	jobs        *prometheus.CounterVec
	conversions *prometheus.CounterVec
	emails      *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

// New creates a Collector with its own registry, including the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows processed, by resulting document status.",
		}, []string{statusLabel}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Generation jobs finished, by final state.",
		}, []string{stateLabel}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion attempts, by strategy and outcome.",
		}, []string{strategyLabel, outcomeLabel}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Email deliveries, by outcome.",
		}, []string{outcomeLabel}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of generation jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	c.registry.MustRegister(
		c.rows, c.jobs, c.conversions, c.emails, c.jobDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveRow counts a row outcome.
func (c *Collector) ObserveRow(status model.DocumentStatus) {
	c.rows.With(prometheus.Labels{statusLabel: string(status)}).Inc()
}

// ObserveJob counts a finished job and records its duration.
func (c *Collector) ObserveJob(state model.JobState, d time.Duration) {
	c.jobs.With(prometheus.Labels{stateLabel: string(state)}).Inc()
	c.jobDuration.Observe(d.Seconds())
}

// ObserveConversion counts a conversion attempt.
func (c *Collector) ObserveConversion(strategy, outcome string) {
	c.conversions.With(prometheus.Labels{strategyLabel: strategy, outcomeLabel: outcome}).Inc()
}

// ObserveEmail counts a delivery.
func (c *Collector) ObserveEmail(success bool) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	c.emails.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

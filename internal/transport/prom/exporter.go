// Package prom exposes sampled vitals and probe health in the Prometheus
// text format.
package prom

import (
	"context"
	"net/http"
	"time"

	"rpimon/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Exporter struct {
	vitals   *prometheus.GaugeVec
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewExporter registers the rpimon collectors on a fresh registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	e := newExporter(reg)
	e.gatherer = reg
	return e
}

func newExporter(reg prometheus.Registerer) *Exporter {
	vitals := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rpimon_vital",
		Help: "Most recent value of a sampled vital.",
	}, []string{"path", "unit"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rpimon_probe_runs_total",
		Help: "Probe pipelines executed, per family.",
	}, []string{"family"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rpimon_probe_failures_total",
		Help: "Probe pipelines that failed, per family and error kind.",
	}, []string{"family", "kind"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpimon_probe_duration_seconds",
		Help:    "Wall time of a probe pipeline, command plus parse.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"family"})

	reg.MustRegister(vitals, runs, failures, latency)

	return &Exporter{
		vitals:   vitals,
		runs:     runs,
		failures: failures,
		latency:  latency,
	}
}

func (e *Exporter) PublishValue(ctx context.Context, s domain.Sample) error {
	e.vitals.WithLabelValues(s.Path.String(), s.Unit.String()).Set(s.Value)
	return nil
}

func (e *Exporter) ObserveProbe(family domain.Family, d time.Duration, samples int, err error) {
	f := string(family)
	e.runs.WithLabelValues(f).Inc()
	e.latency.WithLabelValues(f).Observe(d.Seconds())
	if err != nil {
		e.failures.WithLabelValues(f, domain.ErrorKind(err)).Inc()
	}
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}

// Package metrics exposes pipeline health as Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "xtpatterns"

	subsystemSolver   = "solver"
	subsystemPipeline = "pipeline"
	subsystemOpenData = "opendata"
)

// Request outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeRetry = "retry"
	OutcomeError = "error"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// SolverIterations is the number of value-iteration rounds of the last fit.
	SolverIterations prometheus.Gauge
	// SolverConverged is 1 when the last fit met its tolerance.
	SolverConverged prometheus.Gauge
	// SolverDelta is the final max|V_new - V| of the last fit.
	SolverDelta prometheus.Gauge

	SequencesBuilt prometheus.Gauge
	PatternsMined  prometheus.Gauge
	PatternsScored prometheus.Gauge

	// StageDuration measures pipeline stages. Labels: stage.
	StageDuration *prometheus.HistogramVec

	// Requests counts open-data HTTP attempts. Labels: outcome (ok, retry, error).
	Requests *prometheus.CounterVec
	// CacheHits counts documents served from the local cache.
	CacheHits prometheus.Counter
}

// New builds the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SolverIterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystemSolver,
			Name: "iterations", Help: "Value-iteration rounds used by the last fit",
		}),
		SolverConverged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystemSolver,
			Name: "converged", Help: "1 if the last fit converged within tolerance",
		}),
		SolverDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystemSolver,
			Name: "final_delta", Help: "Max absolute change in the last iteration",
		}),
		SequencesBuilt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystemPipeline,
			Name: "sequences", Help: "Possession sequences built",
		}),
		PatternsMined: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystemPipeline,
			Name: "patterns_mined", Help: "Frequent patterns mined",
		}),
		PatternsScored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystemPipeline,
			Name: "patterns_scored", Help: "Patterns that produced a scored record",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystemPipeline,
			Name:    "stage_duration_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"stage"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystemOpenData,
			Name: "requests_total", Help: "Open-data HTTP attempts by outcome",
		}, []string{"outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystemOpenData,
			Name: "cache_hits_total", Help: "Documents served from the local cache",
		}),
	}
	reg.MustRegister(
		m.SolverIterations, m.SolverConverged, m.SolverDelta,
		m.SequencesBuilt, m.PatternsMined, m.PatternsScored,
		m.StageDuration, m.Requests, m.CacheHits,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// ObserveFit records a solver result.
func (m *Metrics) ObserveFit(iterations int, converged bool, delta float64) {
	if m == nil {
		return
	}
	m.SolverIterations.Set(float64(iterations))
	m.SolverDelta.Set(delta)
	if converged {
		m.SolverConverged.Set(1)
	} else {
		m.SolverConverged.Set(0)
	}
}

// ObserveCounts records the corpus and pattern counts of a run.
func (m *Metrics) ObserveCounts(sequences, mined, scored int) {
	if m == nil {
		return
	}
	m.SequencesBuilt.Set(float64(sequences))
	m.PatternsMined.Set(float64(mined))
	m.PatternsScored.Set(float64(scored))
}

// Stage starts a timer; call the returned func when the stage ends.
func (m *Metrics) Stage(name string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// Request counts one HTTP attempt.
func (m *Metrics) Request(outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

// CacheHit counts one cache hit.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry()); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

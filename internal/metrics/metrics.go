// Package metrics exposes Prometheus counters and histograms for the
// inspection pipeline, grounded in the teacher's
// cmd/pulse-sensor-proxy/metrics.go: a private registry, a nil-receiver-safe
// recorder so call sites never need to check whether metrics are enabled,
// and a standalone /metrics HTTP server.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const defaultAddr = "127.0.0.1:9219"

// Metrics holds every Prometheus collector the inspection pipeline updates.
type Metrics struct {
	cyclesTotal     *prometheus.CounterVec
	nodesProcessed  *prometheus.CounterVec
	probeRuns       *prometheus.CounterVec
	probeLatency    *prometheus.HistogramVec
	sshDialFailures *prometheus.CounterVec
	alertsDispatched *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	activeIssues    prometheus.Gauge
	buildInfo       *prometheus.GaugeVec

	server   *http.Server
	registry *prometheus.Registry
}

// New creates and registers every collector.
func New(version string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpu_inspector_cycles_total",
				Help: "Inspection cycles run, by task class.",
			},
			[]string{"class"},
		),
		nodesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpu_inspector_nodes_processed_total",
				Help: "Nodes processed per cycle, by task class and outcome.",
			},
			[]string{"class", "outcome"},
		),
		probeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpu_inspector_probe_runs_total",
				Help: "Probe executions by probe name and result.",
			},
			[]string{"probe", "result"},
		),
		probeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gpu_inspector_probe_latency_seconds",
				Help:    "Probe command latency.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"probe"},
		),
		sshDialFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpu_inspector_ssh_dial_failures_total",
				Help: "SSH dial failures by classified error.",
			},
			[]string{"reason"},
		),
		alertsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpu_inspector_alerts_dispatched_total",
				Help: "Alerts dispatched by priority and transition.",
			},
			[]string{"priority", "transition"},
		),
		alertsSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpu_inspector_alerts_suppressed_total",
				Help: "Failure findings that produced no dispatch, by reason.",
			},
			[]string{"reason"},
		),
		activeIssues: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gpu_inspector_active_issues",
				Help: "Currently active (unresolved) issue records.",
			},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gpu_inspector_build_info",
				Help: "Build metadata.",
			},
			[]string{"version"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.cyclesTotal,
		m.nodesProcessed,
		m.probeRuns,
		m.probeLatency,
		m.sshDialFailures,
		m.alertsDispatched,
		m.alertsSuppressed,
		m.activeIssues,
		m.buildInfo,
	)
	m.buildInfo.WithLabelValues(version).Set(1)

	return m
}

// Start serves /metrics on addr. An empty or "disabled" addr is a no-op,
// matching the teacher's metrics server convention.
func (m *Metrics) Start(addr string) error {
	if addr == "" || strings.EqualFold(addr, "disabled") {
		log.Info().Msg("metrics server disabled")
		return nil
	}
	if addr == "default" {
		addr = defaultAddr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped unexpectedly")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics server started")
	return nil
}

// Shutdown gracefully stops the metrics server, if running.
func (m *Metrics) Shutdown(ctx context.Context) {
	if m == nil || m.server == nil {
		return
	}
	_ = m.server.Shutdown(ctx)
}

func (m *Metrics) RecordCycle(class string) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(class).Inc()
}

func (m *Metrics) RecordNodeOutcome(class, outcome string) {
	if m == nil {
		return
	}
	m.nodesProcessed.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) RecordProbe(probe string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.probeRuns.WithLabelValues(probe, result).Inc()
	m.probeLatency.WithLabelValues(probe).Observe(duration.Seconds())
}

func (m *Metrics) RecordSSHDialFailure(reason string) {
	if m == nil {
		return
	}
	m.sshDialFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordDispatch(priority, transition string) {
	if m == nil {
		return
	}
	m.alertsDispatched.WithLabelValues(priority, transition).Inc()
}

func (m *Metrics) RecordSuppressed(reason string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetActiveIssues(count int) {
	if m == nil {
		return
	}
	m.activeIssues.Set(float64(count))
}

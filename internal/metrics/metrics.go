// Package metrics provides Prometheus instrumentation for prisk.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for prisk.
// A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	Recomputes        *prometheus.CounterVec
	RecomputeDuration *prometheus.HistogramVec
	RegimeSwitches    *prometheus.CounterVec
	VarianceClamps    *prometheus.CounterVec
	PayloadRefreshes  *prometheus.CounterVec
	PayloadAge        prometheus.Gauge
	ActiveSessions    prometheus.Gauge
	JobRuns           *prometheus.CounterVec
}

// NewRegistry creates a registry with all prisk metrics plus Go and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Recomputes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prisk_recomputes_total",
				Help: "Total number of risk view recomputations by regime and override state",
			},
			[]string{"regime", "override"},
		),

		RecomputeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "prisk_recompute_duration_seconds",
				Help:    "Duration of risk view recomputation in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"regime"},
		),

		RegimeSwitches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prisk_regime_switches_total",
				Help: "Total number of scenario regime switches by from/to regime",
			},
			[]string{"from_regime", "to_regime"},
		),

		VarianceClamps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prisk_variance_clamps_total",
				Help: "Total number of negative portfolio variances clamped to zero",
			},
			[]string{"regime"},
		),

		PayloadRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prisk_payload_refreshes_total",
				Help: "Total number of payload refresh attempts by source and result",
			},
			[]string{"source", "result"},
		),

		PayloadAge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "prisk_payload_loaded_timestamp_seconds",
				Help: "Unix time at which the current payload snapshot was loaded",
			},
		),

		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "prisk_active_sessions",
				Help: "Number of live scenario sessions",
			},
		),

		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prisk_job_runs_total",
				Help: "Total number of scheduled job runs by job and result",
			},
			[]string{"job", "result"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.Recomputes,
		r.RecomputeDuration,
		r.RegimeSwitches,
		r.VarianceClamps,
		r.PayloadRefreshes,
		r.PayloadAge,
		r.ActiveSessions,
		r.JobRuns,
	)

	return r
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveRecompute records one recomputation.
func (r *Registry) ObserveRecompute(regime string, override bool, d time.Duration) {
	if r == nil {
		return
	}
	r.Recomputes.WithLabelValues(regime, strconv.FormatBool(override)).Inc()
	r.RecomputeDuration.WithLabelValues(regime).Observe(d.Seconds())
}

// RecordRegimeSwitch records a scenario regime transition.
func (r *Registry) RecordRegimeSwitch(from, to string) {
	if r == nil {
		return
	}
	r.RegimeSwitches.WithLabelValues(from, to).Inc()
}

// RecordVarianceClamp records a negative variance clamped to zero.
func (r *Registry) RecordVarianceClamp(regime string) {
	if r == nil {
		return
	}
	r.VarianceClamps.WithLabelValues(regime).Inc()
}

// RecordPayloadRefresh records a refresh attempt; result is "ok" or "error".
func (r *Registry) RecordPayloadRefresh(source string, err error) {
	if r == nil {
		return
	}
	r.PayloadRefreshes.WithLabelValues(source, result(err)).Inc()
	if err == nil {
		r.PayloadAge.SetToCurrentTime()
	}
}

// SetActiveSessions sets the live session gauge.
func (r *Registry) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.ActiveSessions.Set(float64(n))
}

// RecordJobRun records a scheduled job execution.
func (r *Registry) RecordJobRun(job string, err error) {
	if r == nil {
		return
	}
	r.JobRuns.WithLabelValues(job, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

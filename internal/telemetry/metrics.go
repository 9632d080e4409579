package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики системы.
//
// Orchestrator использует runs/jobs counters и active_runs gauge,
// Worker — step duration и gate polls.
type Metrics struct {
	// RunsFinished — завершённые runs по итоговому статусу.
	RunsFinished *prometheus.CounterVec

	// JobsFinished — завершённые jobs по статусу и причине падения.
	JobsFinished *prometheus.CounterVec

	// ActiveRuns — количество runs в обработке.
	ActiveRuns prometheus.Gauge

	// MatrixJobs — размер развёртки матрицы на run.
	MatrixJobs prometheus.Histogram

	// GatePolls — количество health-проверок до готовности сервиса.
	GatePolls *prometheus.HistogramVec

	// StepDuration — продолжительность шагов в секундах.
	StepDuration *prometheus.HistogramVec
}

// NewMetrics регистрирует метрики в указанном Registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conveyor",
			Name:      "runs_finished_total",
			Help:      "Finished runs by terminal status.",
		}, []string{"status"}),

		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conveyor",
			Name:      "jobs_finished_total",
			Help:      "Finished jobs by terminal status and failure kind.",
		}, []string{"status", "failure_kind"}),

		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "conveyor",
			Name:      "active_runs",
			Help:      "Runs currently tracked by the orchestrator.",
		}),

		MatrixJobs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "conveyor",
			Name:      "matrix_jobs",
			Help:      "Jobs produced by matrix expansion per run.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		GatePolls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conveyor",
			Name:      "gate_polls",
			Help:      "Health check attempts until a service became ready.",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}, []string{"service"}),

		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conveyor",
			Name:      "step_duration_seconds",
			Help:      "Step execution duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"step", "status"}),
	}
}

// DefaultMetrics регистрирует метрики в глобальном registry.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

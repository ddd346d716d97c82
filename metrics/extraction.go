package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faturas/model"
)

// Extraction exposes run progress and outcomes. A nil *Extraction is valid
// and records nothing.
type Extraction struct {
	registry *prometheus.Registry

	outcomes        *prometheus.CounterVec
	accountDuration *prometheus.HistogramVec
	progress        prometheus.Gauge
	runs            *prometheus.CounterVec
}

func NewExtraction() *Extraction {
	registry := prometheus.NewRegistry()

	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faturas",
			Subsystem: "extraction",
			Name:      "account_outcomes_total",
			Help:      "Final account outcomes by category.",
		},
		[]string{"outcome"},
	)
	accountDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faturas",
			Subsystem: "extraction",
			Name:      "account_duration_seconds",
			Help:      "Time spent processing one account.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"distributor"},
	)
	progress := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faturas",
			Subsystem: "extraction",
			Name:      "progress_ratio",
			Help:      "Fraction of the current run's accounts already processed.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faturas",
			Subsystem: "extraction",
			Name:      "runs_total",
			Help:      "Finished runs by status.",
		},
		[]string{"status"},
	)

	registry.MustRegister(outcomes, accountDuration, progress, runs)

	return &Extraction{
		registry:        registry,
		outcomes:        outcomes,
		accountDuration: accountDuration,
		progress:        progress,
		runs:            runs,
	}
}

func (m *Extraction) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Extraction) ObserveAccount(distributor string, d time.Duration) {
	if m == nil {
		return
	}
	m.accountDuration.WithLabelValues(distributor).Observe(d.Seconds())
}

func (m *Extraction) SetProgress(done, total int) {
	if m == nil || total <= 0 {
		return
	}
	m.progress.Set(float64(done) / float64(total))
}

// ObserveRun records the final outcome counts of a run.
func (m *Extraction) ObserveRun(counts map[model.Outcome]int, cancelled bool) {
	if m == nil {
		return
	}
	for o, n := range counts {
		if n > 0 {
			m.outcomes.WithLabelValues(string(o)).Add(float64(n))
		}
	}
	status := "completed"
	if cancelled {
		status = "cancelled"
	}
	m.runs.WithLabelValues(status).Inc()
}

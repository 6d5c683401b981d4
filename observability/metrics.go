package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bonus service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	Registry *prometheus.Registry

	calculationDuration prometheus.Histogram
	personsComputed     prometheus.Counter
	storeErrors         *prometheus.CounterVec
	reportsGenerated    prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests build as many
// instances as they like.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		calculationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bonus_calculation_duration_seconds",
				Help:    "Duration of one roster calculation.",
				Buckets: prometheus.DefBuckets,
			},
		),
		personsComputed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bonus_persons_computed_total",
				Help: "Total person breakdowns computed.",
			},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bonus_store_errors_total",
				Help: "Total store failures by operation.",
			},
			[]string{"op"},
		),
		reportsGenerated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bonus_reports_generated_total",
				Help: "Total Excel reports generated.",
			},
		),
	}
}

// ObserveCalculation records one roster calculation over persons people.
func (m *Metrics) ObserveCalculation(d time.Duration, persons int) {
	m.calculationDuration.Observe(d.Seconds())
	m.personsComputed.Add(float64(persons))
}

// IncrStoreError increments the store error counter for op.
func (m *Metrics) IncrStoreError(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

// IncrReport increments the generated report counter.
func (m *Metrics) IncrReport() {
	m.reportsGenerated.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
